package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/visit-service/internal/domain"
	"github.com/spec-kit/visit-service/internal/events"
	"github.com/spec-kit/visit-service/internal/repository"
	apperrors "github.com/spec-kit/visit-service/pkg/util/errorutil"
)

const (
	custodiedUUID = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"
	visitorUUID   = "6c1d6d0e-7a55-4d2f-b3c9-2a6f0d3e8b11"
	otherVisitor  = "9e2b1c4d-1f0a-4b8e-a7d6-5c3e2f1a0b22"
	thirdVisitor  = "c4a7f1e2-8d3b-4f6a-9e0c-1b2d3e4f5a6b"
)

// lockRecordingStore records every key passed to Lock.
type lockRecordingStore struct {
	*repository.MemoryAppointmentStore

	mu   sync.Mutex
	keys []string
	// createErr replaces the result of tx.Create when set.
	createErr error
}

func (s *lockRecordingStore) RunInTx(ctx context.Context, fn func(tx repository.AppointmentTx) error) error {
	return s.MemoryAppointmentStore.RunInTx(ctx, func(tx repository.AppointmentTx) error {
		return fn(&lockRecordingTx{AppointmentTx: tx, store: s})
	})
}

func (s *lockRecordingStore) lockedWith(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, key := range s.keys {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	return out
}

type lockRecordingTx struct {
	repository.AppointmentTx
	store *lockRecordingStore
}

func (t *lockRecordingTx) Lock(ctx context.Context, keys ...string) error {
	t.store.mu.Lock()
	t.store.keys = append(t.store.keys, keys...)
	t.store.mu.Unlock()
	return t.AppointmentTx.Lock(ctx, keys...)
}

func (t *lockRecordingTx) Create(ctx context.Context, appt *domain.Appointment) error {
	if t.store.createErr != nil {
		return t.store.createErr
	}
	return t.AppointmentTx.Create(ctx, appt)
}

func newRecordingService(t *testing.T) (*AppointmentService, *lockRecordingStore, *[]events.Event) {
	t.Helper()
	directory := repository.NewMemoryDirectory()
	directory.PutCustodiedPerson(domain.CustodiedPerson{ID: custodiedUUID, FullName: "Carlos Andrade"})
	for _, id := range []string{visitorUUID, otherVisitor, thirdVisitor} {
		directory.PutVisitor(domain.Visitor{ID: id, FullName: "visitor " + id[:4]})
	}
	store := &lockRecordingStore{MemoryAppointmentStore: repository.NewMemoryAppointmentStore()}

	published := &[]events.Event{}
	dispatcher := events.NewInMemoryDispatcher(nil)
	dispatcher.Subscribe(events.EventAppointmentUpdated, func(_ context.Context, event events.Event) error {
		*published = append(*published, event)
		return nil
	})

	svc := NewAppointmentService(AppointmentDependencies{
		Store:      store,
		Directory:  directory,
		Dispatcher: dispatcher,
		Now:        func() time.Time { return jan(2, 8, 0) },
	})
	return svc, store, published
}

func TestCanonicalID(t *testing.T) {
	for _, spelling := range []string{
		custodiedUUID,
		strings.ToUpper(custodiedUUID),
		"{" + custodiedUUID + "}",
		"urn:uuid:" + custodiedUUID,
		"  " + strings.ReplaceAll(custodiedUUID, "-", "") + " ",
	} {
		assert.Equal(t, custodiedUUID, canonicalID(spelling), spelling)
	}
	assert.Equal(t, "C1", canonicalID(" C1 "))
}

func TestCreateLocksOneKeyPerPersonWhateverTheSpelling(t *testing.T) {
	svc, store, _ := newRecordingService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateAppointmentInput{CustodiedPersonID: custodiedUUID, VisitorID: visitorUUID, ScheduledAt: jan(3, 9, 0)})
	require.NoError(t, err)
	second, err := svc.Create(ctx, CreateAppointmentInput{
		CustodiedPersonID: strings.ToUpper(custodiedUUID),
		VisitorID:         "urn:uuid:" + otherVisitor,
		ScheduledAt:       jan(3, 11, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, custodiedUUID, first.CustodiedPersonID)
	assert.Equal(t, custodiedUUID, second.CustodiedPersonID)
	assert.Equal(t, otherVisitor, second.VisitorID)
	assert.Equal(t,
		[]string{repository.CustodiedLockKey(custodiedUUID), repository.CustodiedLockKey(custodiedUUID)},
		store.lockedWith("custodied:"))

	// the cap applies across spellings of the same person
	_, err = svc.Create(ctx, CreateAppointmentInput{
		CustodiedPersonID: "{" + strings.ToUpper(custodiedUUID) + "}",
		VisitorID:         thirdVisitor,
		ScheduledAt:       jan(3, 13, 0),
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeSchedulingConflict))
}

func TestUpdateIgnoresIDSpelling(t *testing.T) {
	svc, _, published := newRecordingService(t)
	ctx := context.Background()

	appt, err := svc.Create(ctx, CreateAppointmentInput{CustodiedPersonID: custodiedUUID, VisitorID: visitorUUID, ScheduledAt: jan(3, 10, 0)})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, strings.ToUpper(appt.ID), UpdateAppointmentInput{
		CustodiedPersonID: strings.ToUpper(custodiedUUID),
		VisitorID:         "{" + visitorUUID + "}",
		ScheduledAt:       jan(3, 10, 0),
		Note:              "bring documents",
	})
	require.NoError(t, err)
	assert.Equal(t, custodiedUUID, updated.CustodiedPersonID)
	assert.Equal(t, visitorUUID, updated.VisitorID)

	require.Len(t, *published, 1)
	payload := (*published)[0].Payload.(events.AppointmentUpdatedPayload)
	assert.Equal(t, []string{"note"}, payload.ChangedFields)

	got, err := svc.Get(ctx, strings.ToUpper(appt.ID))
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)
}

func TestCreateReportsVanishedReferenceByName(t *testing.T) {
	svc, store, _ := newRecordingService(t)
	store.createErr = &repository.MissingReferenceError{Field: repository.FieldVisitorID, Constraint: "appointments_visitor_id_fkey"}

	_, err := svc.Create(context.Background(), CreateAppointmentInput{CustodiedPersonID: custodiedUUID, VisitorID: visitorUUID, ScheduledAt: jan(3, 10, 0)})
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeNotFound, domainErr.Code)
	assert.Equal(t, "visitor not found", domainErr.Message)
	assert.Equal(t, visitorUUID, domainErr.Details["visitor_id"])

	store.createErr = &repository.MissingReferenceError{Field: repository.FieldCustodiedPersonID}
	_, err = svc.Create(context.Background(), CreateAppointmentInput{CustodiedPersonID: custodiedUUID, VisitorID: visitorUUID, ScheduledAt: jan(3, 10, 0)})
	assert.Equal(t, "custodied person not found", apperrors.ToDomainError(err).Message)
}
