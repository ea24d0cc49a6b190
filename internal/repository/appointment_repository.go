package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/visit-service/internal/domain"
)

const (
	pgExclusionViolation  = "23P01"
	pgForeignKeyViolation = "23503"
)

// referenceConstraints maps the foreign keys of the appointments table to their columns.
var referenceConstraints = map[string]string{
	"appointments_custodied_person_id_fkey": FieldCustodiedPersonID,
	"appointments_visitor_id_fkey":          FieldVisitorID,
}

const appointmentColumns = `id, custodied_person_id, visitor_id, scheduled_at, status, note, created_at, updated_at`

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type appointmentRepository struct {
	pool      *pgxpool.Pool
	txTimeout time.Duration
	queries   appointmentQueries
}

// NewAppointmentRepository returns a Postgres-backed AppointmentStore.
func NewAppointmentRepository(pool *pgxpool.Pool, txTimeout time.Duration) AppointmentStore {
	return &appointmentRepository{
		pool:      pool,
		txTimeout: txTimeout,
		queries:   appointmentQueries{db: pool},
	}
}

func (r *appointmentRepository) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	return r.queries.GetByID(ctx, id)
}

func (r *appointmentRepository) Find(ctx context.Context, criteria Criteria) ([]domain.Appointment, error) {
	return r.queries.Find(ctx, criteria)
}

func (r *appointmentRepository) Count(ctx context.Context, criteria Criteria) (int, error) {
	return r.queries.Count(ctx, criteria)
}

func (r *appointmentRepository) RunInTx(ctx context.Context, fn func(tx AppointmentTx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && r.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.txTimeout)
		defer cancel()
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&appointmentTx{tx: tx, appointmentQueries: appointmentQueries{db: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapWriteError(err)
	}
	return nil
}

type appointmentTx struct {
	appointmentQueries
	tx pgx.Tx
}

// Lock takes transaction-scoped advisory locks in a stable order.
func (t *appointmentTx) Lock(ctx context.Context, keys ...string) error {
	for _, key := range sortedUnique(keys) {
		if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
	}
	return nil
}

func (t *appointmentTx) GetForUpdate(ctx context.Context, id string) (*domain.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id=$1 FOR UPDATE`
	return scanAppointment(t.tx.QueryRow(ctx, query, id))
}

func (t *appointmentTx) Create(ctx context.Context, appt *domain.Appointment) error {
	const query = `
        INSERT INTO appointments (custodied_person_id, visitor_id, scheduled_at, status, note, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	err := t.tx.QueryRow(ctx, query,
		appt.CustodiedPersonID,
		appt.VisitorID,
		appt.ScheduledAt,
		appt.Status,
		appt.Note,
		appt.CreatedAt,
		appt.UpdatedAt,
	).Scan(&appt.ID)
	return mapWriteError(err)
}

func (t *appointmentTx) Update(ctx context.Context, appt *domain.Appointment) error {
	const query = `
        UPDATE appointments SET custodied_person_id=$1, visitor_id=$2, scheduled_at=$3, status=$4, note=$5, updated_at=$6
        WHERE id=$7`
	cmd, err := t.tx.Exec(ctx, query,
		appt.CustodiedPersonID,
		appt.VisitorID,
		appt.ScheduledAt,
		appt.Status,
		appt.Note,
		appt.UpdatedAt,
		appt.ID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type appointmentQueries struct {
	db dbtx
}

func (q appointmentQueries) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id=$1`
	return scanAppointment(q.db.QueryRow(ctx, query, id))
}

func (q appointmentQueries) Find(ctx context.Context, criteria Criteria) ([]domain.Appointment, error) {
	where, args := buildWhere(criteria)
	direction := "DESC"
	if criteria.ascending() {
		direction = "ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE %s ORDER BY scheduled_at %s, id %s`,
		appointmentColumns, where, direction, direction)
	if criteria.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", criteria.Limit)
	}
	if criteria.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", criteria.Offset)
	}

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (q appointmentQueries) Count(ctx context.Context, criteria Criteria) (int, error) {
	where, args := buildWhere(criteria)
	var count int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE `+where, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func buildWhere(criteria Criteria) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if criteria.CustodiedPersonID != "" {
		args = append(args, criteria.CustodiedPersonID)
		clauses = append(clauses, fmt.Sprintf("custodied_person_id=$%d", len(args)))
	}
	if criteria.VisitorID != "" {
		args = append(args, criteria.VisitorID)
		clauses = append(clauses, fmt.Sprintf("visitor_id=$%d", len(args)))
	}
	if criteria.ScheduledFrom != nil {
		args = append(args, *criteria.ScheduledFrom)
		clauses = append(clauses, fmt.Sprintf("scheduled_at >= $%d", len(args)))
	}
	if criteria.ScheduledTo != nil {
		args = append(args, *criteria.ScheduledTo)
		clauses = append(clauses, fmt.Sprintf("scheduled_at <= $%d", len(args)))
	}
	if criteria.ExcludeID != "" {
		args = append(args, criteria.ExcludeID)
		clauses = append(clauses, fmt.Sprintf("id::text <> $%d", len(args)))
	}
	if len(criteria.Statuses) > 0 {
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", statusPlaceholders(criteria.Statuses, &args)))
	}
	if len(criteria.ExcludeStatuses) > 0 {
		clauses = append(clauses, fmt.Sprintf("status NOT IN (%s)", statusPlaceholders(criteria.ExcludeStatuses, &args)))
	}
	return strings.Join(clauses, " AND "), args
}

func statusPlaceholders(statuses []domain.AppointmentStatus, args *[]any) string {
	placeholders := make([]string, len(statuses))
	for i, status := range statuses {
		*args = append(*args, string(status))
		placeholders[i] = fmt.Sprintf("$%d", len(*args))
	}
	return strings.Join(placeholders, ",")
}

func scanAppointment(row pgx.Row) (*domain.Appointment, error) {
	var appt domain.Appointment
	if err := row.Scan(
		&appt.ID,
		&appt.CustodiedPersonID,
		&appt.VisitorID,
		&appt.ScheduledAt,
		&appt.Status,
		&appt.Note,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &appt, nil
}

func scanAppointments(rows pgx.Rows) ([]domain.Appointment, error) {
	result := []domain.Appointment{}
	for rows.Next() {
		var appt domain.Appointment
		if err := rows.Scan(
			&appt.ID,
			&appt.CustodiedPersonID,
			&appt.VisitorID,
			&appt.ScheduledAt,
			&appt.Status,
			&appt.Note,
			&appt.CreatedAt,
			&appt.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, appt)
	}
	return result, rows.Err()
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation:
			return fmt.Errorf("%w: %s", ErrOverlap, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return &MissingReferenceError{
				Field:      referenceConstraints[pgErr.ConstraintName],
				Constraint: pgErr.ConstraintName,
			}
		}
	}
	return err
}

func sortedUnique(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	result := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, key)
	}
	sort.Strings(result)
	return result
}
