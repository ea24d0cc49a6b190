package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/visit-service/internal/domain"
)

// MemoryAppointmentStore keeps appointments in process memory.
// Transactions are serialized by a store-wide lock and writes are staged until commit.
type MemoryAppointmentStore struct {
	txMu         sync.Mutex
	mu           sync.RWMutex
	appointments map[string]domain.Appointment
}

// NewMemoryAppointmentStore returns an empty store.
func NewMemoryAppointmentStore() *MemoryAppointmentStore {
	return &MemoryAppointmentStore{
		appointments: make(map[string]domain.Appointment),
	}
}

func (s *MemoryAppointmentStore) GetByID(_ context.Context, id string) (*domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appt, ok := s.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &appt, nil
}

func (s *MemoryAppointmentStore) Find(_ context.Context, criteria Criteria) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(s.matching(criteria), criteria), nil
}

func (s *MemoryAppointmentStore) Count(_ context.Context, criteria Criteria) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matching(criteria)), nil
}

func (s *MemoryAppointmentStore) RunInTx(ctx context.Context, fn func(tx AppointmentTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memoryAppointmentTx{store: s, staged: make(map[string]domain.Appointment)}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, appt := range tx.staged {
		s.appointments[id] = appt
	}
	return nil
}

func (s *MemoryAppointmentStore) matching(criteria Criteria) []domain.Appointment {
	result := []domain.Appointment{}
	for _, appt := range s.appointments {
		if criteria.Matches(&appt) {
			result = append(result, appt)
		}
	}
	ascending := criteria.ascending()
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.ScheduledAt.Equal(b.ScheduledAt) {
			if ascending {
				return a.ScheduledAt.Before(b.ScheduledAt)
			}
			return a.ScheduledAt.After(b.ScheduledAt)
		}
		if ascending {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
	return result
}

func paginate(items []domain.Appointment, criteria Criteria) []domain.Appointment {
	if criteria.Offset > 0 {
		if criteria.Offset >= len(items) {
			return []domain.Appointment{}
		}
		items = items[criteria.Offset:]
	}
	if criteria.Limit > 0 && criteria.Limit < len(items) {
		items = items[:criteria.Limit]
	}
	return items
}

// memoryAppointmentTx reads committed state; staged writes become visible on commit.
type memoryAppointmentTx struct {
	store  *MemoryAppointmentStore
	staged map[string]domain.Appointment
}

func (t *memoryAppointmentTx) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	return t.store.GetByID(ctx, id)
}

func (t *memoryAppointmentTx) Find(ctx context.Context, criteria Criteria) ([]domain.Appointment, error) {
	return t.store.Find(ctx, criteria)
}

func (t *memoryAppointmentTx) Count(ctx context.Context, criteria Criteria) (int, error) {
	return t.store.Count(ctx, criteria)
}

// Lock is a no-op: the store-wide transaction lock already serializes writers.
func (t *memoryAppointmentTx) Lock(context.Context, ...string) error {
	return nil
}

func (t *memoryAppointmentTx) GetForUpdate(ctx context.Context, id string) (*domain.Appointment, error) {
	return t.store.GetByID(ctx, id)
}

func (t *memoryAppointmentTx) Create(_ context.Context, appt *domain.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	t.staged[appt.ID] = *appt
	return nil
}

func (t *memoryAppointmentTx) Update(ctx context.Context, appt *domain.Appointment) error {
	if _, err := t.store.GetByID(ctx, appt.ID); err != nil {
		return err
	}
	t.staged[appt.ID] = *appt
	return nil
}
