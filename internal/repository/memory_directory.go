package repository

import (
	"context"
	"sync"

	"github.com/spec-kit/visit-service/internal/domain"
)

// MemoryDirectory is an in-process PersonDirectory.
type MemoryDirectory struct {
	mu        sync.RWMutex
	custodied map[string]domain.CustodiedPerson
	visitors  map[string]domain.Visitor
}

// NewMemoryDirectory returns an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		custodied: make(map[string]domain.CustodiedPerson),
		visitors:  make(map[string]domain.Visitor),
	}
}

// PutCustodiedPerson registers or replaces a custodied person.
func (d *MemoryDirectory) PutCustodiedPerson(person domain.CustodiedPerson) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.custodied[person.ID] = person
}

// PutVisitor registers or replaces a visitor.
func (d *MemoryDirectory) PutVisitor(visitor domain.Visitor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visitors[visitor.ID] = visitor
}

func (d *MemoryDirectory) GetCustodiedPerson(_ context.Context, id string) (*domain.CustodiedPerson, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	person, ok := d.custodied[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &person, nil
}

func (d *MemoryDirectory) GetVisitor(_ context.Context, id string) (*domain.Visitor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	visitor, ok := d.visitors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &visitor, nil
}
