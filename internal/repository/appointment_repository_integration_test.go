//go:build integration

package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/spec-kit/visit-service/internal/domain"
	"github.com/spec-kit/visit-service/internal/repository"
	"github.com/spec-kit/visit-service/internal/testutil/containers"
)

type AppointmentRepositorySuite struct {
	suite.Suite
	pg        *containers.PostgresContainer
	store     repository.AppointmentStore
	custodied string
	visitor   string
}

func TestAppointmentRepositorySuite(t *testing.T) {
	suite.Run(t, new(AppointmentRepositorySuite))
}

func (s *AppointmentRepositorySuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = repository.NewAppointmentRepository(s.pg.Pool, 5*time.Second)
}

func (s *AppointmentRepositorySuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background()))
	s.custodied = s.pg.SeedCustodiedPerson(s.T(), "Ana Souza")
	s.visitor = s.pg.SeedVisitor(s.T(), "Bruno Lima")
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, time.UTC)
}

func (s *AppointmentRepositorySuite) insert(custodied, visitor string, when time.Time, status domain.AppointmentStatus) (*domain.Appointment, error) {
	appt := &domain.Appointment{
		CustodiedPersonID: custodied,
		VisitorID:         visitor,
		ScheduledAt:       when,
		Status:            status,
		CreatedAt:         when.Add(-24 * time.Hour),
		UpdatedAt:         when.Add(-24 * time.Hour),
	}
	err := s.store.RunInTx(context.Background(), func(tx repository.AppointmentTx) error {
		return tx.Create(context.Background(), appt)
	})
	return appt, err
}

func (s *AppointmentRepositorySuite) TestCreateAndGet() {
	created, err := s.insert(s.custodied, s.visitor, at(3, 10, 0), domain.AppointmentStatusScheduled)
	s.Require().NoError(err)
	s.NotEmpty(created.ID)

	loaded, err := s.store.GetByID(context.Background(), created.ID)
	s.Require().NoError(err)
	s.Equal(s.custodied, loaded.CustodiedPersonID)
	s.Equal(s.visitor, loaded.VisitorID)
	s.True(loaded.ScheduledAt.Equal(at(3, 10, 0)))
	s.Equal(domain.AppointmentStatusScheduled, loaded.Status)
}

func (s *AppointmentRepositorySuite) TestGetUnknownAndMalformedIDs() {
	_, err := s.store.GetByID(context.Background(), "5b0c1c1e-4c1a-4a55-9f61-0d4bde8f7e10")
	s.ErrorIs(err, repository.ErrNotFound)

	_, err = s.store.GetByID(context.Background(), "not-a-uuid")
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *AppointmentRepositorySuite) TestExclusionConstraintRejectsOverlap() {
	_, err := s.insert(s.custodied, s.visitor, at(3, 10, 0), domain.AppointmentStatusScheduled)
	s.Require().NoError(err)

	other := s.pg.SeedVisitor(s.T(), "Carla Dias")
	// exactly one hour apart still collides: the window is closed
	_, err = s.insert(s.custodied, other, at(3, 11, 0), domain.AppointmentStatusScheduled)
	s.ErrorIs(err, repository.ErrOverlap)

	_, err = s.insert(s.custodied, other, at(3, 11, 1), domain.AppointmentStatusScheduled)
	s.NoError(err)
}

func (s *AppointmentRepositorySuite) TestCanceledAppointmentsDoNotBlock() {
	_, err := s.insert(s.custodied, s.visitor, at(3, 10, 0), domain.AppointmentStatusCanceled)
	s.Require().NoError(err)

	_, err = s.insert(s.custodied, s.visitor, at(3, 10, 0), domain.AppointmentStatusScheduled)
	s.NoError(err)
}

func (s *AppointmentRepositorySuite) TestUnknownReferenceNamesTheField() {
	_, err := s.insert("5b0c1c1e-4c1a-4a55-9f61-0d4bde8f7e10", s.visitor, at(3, 10, 0), domain.AppointmentStatusScheduled)
	s.Require().ErrorIs(err, repository.ErrMissingReference)
	var missing *repository.MissingReferenceError
	s.Require().ErrorAs(err, &missing)
	s.Equal(repository.FieldCustodiedPersonID, missing.Field)

	_, err = s.insert(s.custodied, "5b0c1c1e-4c1a-4a55-9f61-0d4bde8f7e10", at(3, 10, 0), domain.AppointmentStatusScheduled)
	s.Require().ErrorAs(err, &missing)
	s.Equal(repository.FieldVisitorID, missing.Field)
}

func (s *AppointmentRepositorySuite) TestFailedTransactionLeavesNoTrace() {
	boom := errors.New("boom")
	err := s.store.RunInTx(context.Background(), func(tx repository.AppointmentTx) error {
		appt := &domain.Appointment{
			CustodiedPersonID: s.custodied,
			VisitorID:         s.visitor,
			ScheduledAt:       at(3, 10, 0),
			Status:            domain.AppointmentStatusScheduled,
			CreatedAt:         at(2, 10, 0),
			UpdatedAt:         at(2, 10, 0),
		}
		if err := tx.Create(context.Background(), appt); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	count, err := s.store.Count(context.Background(), repository.NewCriteria())
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *AppointmentRepositorySuite) TestUpdate() {
	created, err := s.insert(s.custodied, s.visitor, at(3, 10, 0), domain.AppointmentStatusScheduled)
	s.Require().NoError(err)

	err = s.store.RunInTx(context.Background(), func(tx repository.AppointmentTx) error {
		appt, err := tx.GetForUpdate(context.Background(), created.ID)
		if err != nil {
			return err
		}
		appt.Status = domain.AppointmentStatusConfirmed
		appt.Note = "bring documents"
		appt.UpdatedAt = at(2, 12, 0)
		return tx.Update(context.Background(), appt)
	})
	s.Require().NoError(err)

	loaded, err := s.store.GetByID(context.Background(), created.ID)
	s.Require().NoError(err)
	s.Equal(domain.AppointmentStatusConfirmed, loaded.Status)
	s.Equal("bring documents", loaded.Note)
	s.True(loaded.CreatedAt.Equal(created.CreatedAt))
}

func (s *AppointmentRepositorySuite) TestFindOrderingAndFilters() {
	_, err := s.insert(s.custodied, s.visitor, at(4, 10, 0), domain.AppointmentStatusScheduled)
	s.Require().NoError(err)
	_, err = s.insert(s.custodied, s.visitor, at(3, 10, 0), domain.AppointmentStatusCanceled)
	s.Require().NoError(err)
	_, err = s.insert(s.custodied, s.visitor, at(3, 14, 0), domain.AppointmentStatusConfirmed)
	s.Require().NoError(err)

	ctx := context.Background()
	all, err := s.store.Find(ctx, repository.NewCriteria().ForCustodiedPerson(s.custodied))
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.True(all[0].ScheduledAt.Equal(at(4, 10, 0)))
	s.True(all[2].ScheduledAt.Equal(at(3, 10, 0)))

	day, err := s.store.Find(ctx, repository.NewCriteria().
		ForCustodiedPerson(s.custodied).
		ScheduledBetween(at(3, 0, 0), at(3, 23, 59)))
	s.Require().NoError(err)
	s.Require().Len(day, 2)
	s.True(day[0].ScheduledAt.Equal(at(3, 10, 0)))

	live, err := s.store.Count(ctx, repository.NewCriteria().
		ForVisitor(s.visitor).
		ExcludingStatuses(domain.AppointmentStatusCanceled))
	s.Require().NoError(err)
	s.Equal(2, live)

	page, err := s.store.Find(ctx, repository.NewCriteria().Paginate(1, 1))
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.True(page[0].ScheduledAt.Equal(at(3, 14, 0)))

	others, err := s.store.Count(ctx, repository.NewCriteria().ExcludingID(all[0].ID))
	s.Require().NoError(err)
	s.Equal(2, others)
}

func (s *AppointmentRepositorySuite) TestLockSerializesTransactions() {
	ctx := context.Background()
	key := repository.CustodiedLockKey(s.custodied)

	locked := make(chan struct{})
	release := make(chan struct{})
	var order []string
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, name)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		err := s.store.RunInTx(ctx, func(tx repository.AppointmentTx) error {
			if err := tx.Lock(ctx, key); err != nil {
				return err
			}
			close(locked)
			<-release
			record("first")
			return nil
		})
		assert.NoError(s.T(), err)
	}()
	go func() {
		defer wg.Done()
		<-locked
		err := s.store.RunInTx(ctx, func(tx repository.AppointmentTx) error {
			if err := tx.Lock(ctx, repository.VisitorLockKey(s.visitor), key); err != nil {
				return err
			}
			record("second")
			return nil
		})
		assert.NoError(s.T(), err)
	}()

	<-locked
	time.Sleep(200 * time.Millisecond)
	close(release)
	wg.Wait()

	s.Equal([]string{"first", "second"}, order)
}

func TestPersonRepository(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	id := pg.SeedCustodiedPerson(t, "Ana Souza")
	visitorID := pg.SeedVisitor(t, "Bruno Lima")
	directory := repository.NewPersonRepository(pg.Pool)
	ctx := context.Background()

	person, err := directory.GetCustodiedPerson(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", person.FullName)
	assert.Equal(t, "north", person.FacilityID)

	visitor, err := directory.GetVisitor(ctx, visitorID)
	require.NoError(t, err)
	assert.Equal(t, "Bruno Lima", visitor.FullName)

	_, err = directory.GetVisitor(ctx, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = directory.GetCustodiedPerson(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCachedDirectoryWithRedis(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	origin := repository.NewMemoryDirectory()
	origin.PutVisitor(domain.Visitor{ID: "V1", FullName: "Bruno Lima"})
	cached := repository.NewCachedDirectory(origin, rc.Client, time.Minute, zap.NewNop())
	ctx := context.Background()

	visitor, err := cached.GetVisitor(ctx, "V1")
	require.NoError(t, err)
	assert.Equal(t, "Bruno Lima", visitor.FullName)

	ttl, err := rc.Client.TTL(ctx, "visit:directory:visitor:V1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	// a second reader over an empty origin is served from redis
	rewired := repository.NewCachedDirectory(repository.NewMemoryDirectory(), rc.Client, time.Minute, zap.NewNop())
	visitor, err = rewired.GetVisitor(ctx, "V1")
	require.NoError(t, err)
	assert.Equal(t, "Bruno Lima", visitor.FullName)

	_, err = cached.GetCustodiedPerson(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	exists, err := rc.Client.Exists(ctx, "visit:directory:custodied:missing").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}
