package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/visit-service/internal/domain"
)

//go:generate mockgen -source=person_repository.go -destination=mocks/mocks.go -package=mocks PersonDirectory

// PersonDirectory resolves externally owned custodied persons and visitors.
// Missing records are reported as ErrNotFound.
type PersonDirectory interface {
	GetCustodiedPerson(ctx context.Context, id string) (*domain.CustodiedPerson, error)
	GetVisitor(ctx context.Context, id string) (*domain.Visitor, error)
}

type personRepository struct {
	pool *pgxpool.Pool
}

// NewPersonRepository returns a Postgres-backed directory over the registry tables.
func NewPersonRepository(pool *pgxpool.Pool) PersonDirectory {
	return &personRepository{pool: pool}
}

func (r *personRepository) GetCustodiedPerson(ctx context.Context, id string) (*domain.CustodiedPerson, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	const query = `
        SELECT id, full_name, facility_id
        FROM custodied_persons WHERE id=$1`

	var person domain.CustodiedPerson
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&person.ID,
		&person.FullName,
		&person.FacilityID,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &person, nil
}

func (r *personRepository) GetVisitor(ctx context.Context, id string) (*domain.Visitor, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	const query = `
        SELECT id, full_name
        FROM visitors WHERE id=$1`

	var visitor domain.Visitor
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&visitor.ID,
		&visitor.FullName,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &visitor, nil
}
