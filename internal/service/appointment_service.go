package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/visit-service/internal/domain"
	"github.com/spec-kit/visit-service/internal/events"
	"github.com/spec-kit/visit-service/internal/repository"
	"github.com/spec-kit/visit-service/internal/scheduling"
	apperrors "github.com/spec-kit/visit-service/pkg/util/errorutil"
)

const (
	maxNoteLength   = 1000
	defaultPageSize = 20
	maxPageSize     = 100
)

// Scheduler operation names used for metrics and spans.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpCancel = "cancel"
)

// SchedulerMetrics records scheduler outcomes.
type SchedulerMetrics interface {
	AppointmentCreated()
	SchedulingRejected(reason string)
	ObserveOperation(op, outcome string, elapsed time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) AppointmentCreated()                            {}
func (noopMetrics) SchedulingRejected(string)                      {}
func (noopMetrics) ObserveOperation(string, string, time.Duration) {}

// AppointmentService creates, updates and cancels visit appointments, each as one store transaction.
type AppointmentService struct {
	store      repository.AppointmentStore
	directory  repository.PersonDirectory
	window     scheduling.WindowPolicy
	conflicts  scheduling.ConflictDetector
	dailyLimit scheduling.DailyLimitPolicy
	dispatcher events.Dispatcher
	metrics    SchedulerMetrics
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// AppointmentDependencies bundles collaborators for the appointment service.
type AppointmentDependencies struct {
	Store      repository.AppointmentStore
	Directory  repository.PersonDirectory
	Window     scheduling.WindowPolicy
	Conflicts  scheduling.ConflictDetector
	DailyLimit scheduling.DailyLimitPolicy
	Dispatcher events.Dispatcher
	Metrics    SchedulerMetrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// CreateAppointmentInput describes a new appointment.
type CreateAppointmentInput struct {
	CustodiedPersonID string
	VisitorID         string
	ScheduledAt       time.Time
	Note              string
}

// UpdateAppointmentInput carries the full replacement values for an appointment.
// Status is optional; nil leaves the status untouched.
type UpdateAppointmentInput struct {
	CustodiedPersonID string
	VisitorID         string
	ScheduledAt       time.Time
	Note              string
	Status            *string
}

// AppointmentQuery filters a listing. Zero values mean no constraint.
type AppointmentQuery struct {
	CustodiedPersonID string
	VisitorID         string
	From              *time.Time
	To                *time.Time
	Statuses          []domain.AppointmentStatus
	Page              int
	PageSize          int
}

// AppointmentPage is one page of a listing.
type AppointmentPage struct {
	Items    []domain.Appointment
	Total    int
	Page     int
	PageSize int
}

// AppointmentDetails is an appointment with the display names of its references.
type AppointmentDetails struct {
	domain.Appointment
	CustodiedPersonName string
	VisitorName         string
}

// NewAppointmentService constructs the service.
func NewAppointmentService(deps AppointmentDependencies) *AppointmentService {
	svc := &AppointmentService{
		store:      deps.Store,
		directory:  deps.Directory,
		window:     deps.Window,
		conflicts:  deps.Conflicts,
		dailyLimit: deps.DailyLimit,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		tracer:     otel.Tracer("github.com/spec-kit/visit-service/internal/service"),
		now:        deps.Now,
	}
	if svc.window == nil {
		svc.window = scheduling.MidweekWindow{Location: time.UTC}
	}
	if svc.conflicts.Window <= 0 {
		svc.conflicts = scheduling.NewConflictDetector(0, svc.conflicts.IgnoreCanceledVisitorAppointments)
	}
	if svc.dailyLimit.Cap <= 0 {
		svc.dailyLimit = scheduling.NewDailyLimitPolicy(0, true, nil)
	}
	if svc.metrics == nil {
		svc.metrics = noopMetrics{}
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// Create schedules a new appointment in status SCHEDULED.
func (s *AppointmentService) Create(ctx context.Context, input CreateAppointmentInput) (appt *domain.Appointment, err error) {
	ctx, finish := s.begin(ctx, OpCreate)
	defer func() { finish(err) }()

	input.CustodiedPersonID = canonicalID(input.CustodiedPersonID)
	input.VisitorID = canonicalID(input.VisitorID)
	input.Note = strings.TrimSpace(input.Note)
	if err := validateAppointmentFields(input.CustodiedPersonID, input.VisitorID, input.ScheduledAt, input.Note); err != nil {
		return nil, err
	}
	if err := s.checkWindow(input.ScheduledAt); err != nil {
		return nil, err
	}
	if err := s.resolveReferences(ctx, input.CustodiedPersonID, input.VisitorID); err != nil {
		return nil, err
	}

	now := s.now()
	created := &domain.Appointment{
		CustodiedPersonID: input.CustodiedPersonID,
		VisitorID:         input.VisitorID,
		ScheduledAt:       input.ScheduledAt,
		Status:            scheduling.InitialStatus,
		Note:              input.Note,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err = s.store.RunInTx(ctx, func(tx repository.AppointmentTx) error {
		if err := tx.Lock(ctx, repository.CustodiedLockKey(created.CustodiedPersonID), repository.VisitorLockKey(created.VisitorID)); err != nil {
			return err
		}
		if err := s.dailyLimit.Check(ctx, tx, created.CustodiedPersonID, created.ScheduledAt, ""); err != nil {
			return err
		}
		if err := s.conflicts.Check(ctx, tx, created.CustodiedPersonID, created.VisitorID, created.ScheduledAt, ""); err != nil {
			return err
		}
		return tx.Create(ctx, created)
	})
	if err != nil {
		return nil, translateWriteError(err, created.CustodiedPersonID, created.VisitorID)
	}

	s.metrics.AppointmentCreated()
	s.logger.Info("appointment created",
		zap.String("appointment_id", created.ID),
		zap.String("custodied_person_id", created.CustodiedPersonID),
		zap.String("visitor_id", created.VisitorID),
		zap.Time("scheduled_at", created.ScheduledAt))
	s.publishEvent(ctx, events.Event{
		Type:          events.EventAppointmentCreated,
		AppointmentID: created.ID,
		Payload: events.AppointmentCreatedPayload{
			CustodiedPersonID: created.CustodiedPersonID,
			VisitorID:         created.VisitorID,
			ScheduledAt:       created.ScheduledAt,
			Status:            created.Status,
		},
	})
	return created, nil
}

// Update replaces the mutable fields of an appointment and optionally moves its status.
func (s *AppointmentService) Update(ctx context.Context, id string, input UpdateAppointmentInput) (appt *domain.Appointment, err error) {
	ctx, finish := s.begin(ctx, OpUpdate)
	defer func() { finish(err) }()

	id = canonicalID(id)
	input.CustodiedPersonID = canonicalID(input.CustodiedPersonID)
	input.VisitorID = canonicalID(input.VisitorID)
	input.Note = strings.TrimSpace(input.Note)
	if id == "" {
		return nil, apperrors.NewValidationError("appointment id is required", map[string]any{"field": "id"})
	}
	if err := validateAppointmentFields(input.CustodiedPersonID, input.VisitorID, input.ScheduledAt, input.Note); err != nil {
		return nil, err
	}

	var (
		updated   domain.Appointment
		previous  domain.Appointment
		changed   []string
		newStatus domain.AppointmentStatus
	)
	err = s.store.RunInTx(ctx, func(tx repository.AppointmentTx) error {
		current, err := s.lockAppointment(ctx, tx, id,
			repository.CustodiedLockKey(input.CustodiedPersonID),
			repository.VisitorLockKey(input.VisitorID))
		if err != nil {
			return err
		}
		previous = *current

		if current.Status.Terminal() {
			return apperrors.NewInvalidOperation("appointment can no longer be modified", map[string]any{
				"appointment_id": current.ID,
				"status":         current.Status,
			})
		}
		if err := s.checkWindow(input.ScheduledAt); err != nil {
			return err
		}

		custodiedChanged := current.CustodiedPersonID != input.CustodiedPersonID
		visitorChanged := current.VisitorID != input.VisitorID
		timeChanged := !current.ScheduledAt.Equal(input.ScheduledAt)

		if custodiedChanged {
			if err := s.resolveCustodiedPerson(ctx, input.CustodiedPersonID); err != nil {
				return err
			}
		}
		if visitorChanged {
			if err := s.resolveVisitor(ctx, input.VisitorID); err != nil {
				return err
			}
		}
		if custodiedChanged || timeChanged {
			if err := s.dailyLimit.Check(ctx, tx, input.CustodiedPersonID, input.ScheduledAt, current.ID); err != nil {
				return err
			}
		}
		if custodiedChanged || visitorChanged || timeChanged {
			if err := s.conflicts.Check(ctx, tx, input.CustodiedPersonID, input.VisitorID, input.ScheduledAt, current.ID); err != nil {
				return err
			}
		}

		newStatus = current.Status
		if input.Status != nil {
			requested, err := scheduling.ParseStatus(*input.Status)
			if err != nil {
				return err
			}
			if requested != current.Status {
				if err := scheduling.Transition(current.Status, requested); err != nil {
					return err
				}
				newStatus = requested
			}
		}

		changed = changedFields(current, input)
		updated = *current
		updated.CustodiedPersonID = input.CustodiedPersonID
		updated.VisitorID = input.VisitorID
		updated.ScheduledAt = input.ScheduledAt
		updated.Note = input.Note
		updated.Status = newStatus
		updated.UpdatedAt = s.now()
		return tx.Update(ctx, &updated)
	})
	if err != nil {
		return nil, translateWriteError(err, input.CustodiedPersonID, input.VisitorID)
	}

	s.logger.Info("appointment updated",
		zap.String("appointment_id", updated.ID),
		zap.Strings("changed_fields", changed),
		zap.String("status", string(updated.Status)))
	if len(changed) > 0 {
		s.publishEvent(ctx, events.Event{
			Type:          events.EventAppointmentUpdated,
			AppointmentID: updated.ID,
			Payload: events.AppointmentUpdatedPayload{
				ChangedFields:     changed,
				CustodiedPersonID: updated.CustodiedPersonID,
				VisitorID:         updated.VisitorID,
				ScheduledAt:       updated.ScheduledAt,
			},
		})
	}
	if previous.Status != updated.Status {
		s.publishEvent(ctx, events.Event{
			Type:          events.EventAppointmentStatusChanged,
			AppointmentID: updated.ID,
			Payload: events.AppointmentStatusChangedPayload{
				OldStatus: previous.Status,
				NewStatus: updated.Status,
			},
		})
	}
	return &updated, nil
}

// Cancel moves an appointment to CANCELED. Canceling twice fails.
func (s *AppointmentService) Cancel(ctx context.Context, id string) (appt *domain.Appointment, err error) {
	ctx, finish := s.begin(ctx, OpCancel)
	defer func() { finish(err) }()

	id = canonicalID(id)
	if id == "" {
		return nil, apperrors.NewValidationError("appointment id is required", map[string]any{"field": "id"})
	}

	var canceled domain.Appointment
	var previousStatus domain.AppointmentStatus
	err = s.store.RunInTx(ctx, func(tx repository.AppointmentTx) error {
		current, err := s.lockAppointment(ctx, tx, id)
		if err != nil {
			return err
		}
		switch current.Status {
		case domain.AppointmentStatusCanceled:
			return apperrors.NewInvalidOperation("appointment is already canceled", map[string]any{
				"appointment_id": current.ID,
			})
		case domain.AppointmentStatusCompleted:
			return apperrors.NewInvalidOperation("completed appointment cannot be canceled", map[string]any{
				"appointment_id": current.ID,
			})
		}
		if err := scheduling.Transition(current.Status, domain.AppointmentStatusCanceled); err != nil {
			return err
		}
		previousStatus = current.Status
		canceled = *current
		canceled.Status = domain.AppointmentStatusCanceled
		canceled.UpdatedAt = s.now()
		return tx.Update(ctx, &canceled)
	})
	if err != nil {
		return nil, translateStoreError(err)
	}

	s.logger.Info("appointment canceled",
		zap.String("appointment_id", canceled.ID),
		zap.String("previous_status", string(previousStatus)))
	s.publishEvent(ctx, events.Event{
		Type:          events.EventAppointmentCanceled,
		AppointmentID: canceled.ID,
		Payload: events.AppointmentCanceledPayload{
			PreviousStatus: previousStatus,
			ScheduledAt:    canceled.ScheduledAt,
		},
	})
	return &canceled, nil
}

// Get returns one appointment.
func (s *AppointmentService) Get(ctx context.Context, id string) (*domain.Appointment, error) {
	appt, err := s.store.GetByID(ctx, canonicalID(id))
	if err != nil {
		return nil, translateStoreError(err)
	}
	return appt, nil
}

// List returns a page of appointments. Queries with a date range ascend by scheduled time,
// other listings descend.
func (s *AppointmentService) List(ctx context.Context, query AppointmentQuery) (*AppointmentPage, error) {
	if query.From != nil && query.To != nil && query.From.After(*query.To) {
		return nil, apperrors.NewValidationError("from must not be after to", map[string]any{
			"from": query.From,
			"to":   query.To,
		})
	}
	page, pageSize := query.Page, query.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	criteria := repository.NewCriteria().
		ForCustodiedPerson(canonicalID(query.CustodiedPersonID)).
		ForVisitor(canonicalID(query.VisitorID)).
		WithStatuses(query.Statuses...)
	if query.From != nil {
		criteria = criteria.ScheduledFromTime(*query.From)
	}
	if query.To != nil {
		criteria = criteria.ScheduledUntil(*query.To)
	}

	result := &AppointmentPage{Page: page, PageSize: pageSize}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.store.Find(gctx, criteria.Paginate(pageSize, (page-1)*pageSize))
		result.Items = items
		return err
	})
	g.Go(func() error {
		total, err := s.store.Count(gctx, criteria)
		result.Total = total
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Describe attaches display names to appointments. References missing from the directory
// leave the name empty.
func (s *AppointmentService) Describe(ctx context.Context, appts ...domain.Appointment) ([]AppointmentDetails, error) {
	details := make([]AppointmentDetails, len(appts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range appts {
		details[i].Appointment = appts[i]
		g.Go(func() error {
			person, err := s.directory.GetCustodiedPerson(gctx, appts[i].CustodiedPersonID)
			switch {
			case err == nil:
				details[i].CustodiedPersonName = person.FullName
			case !errors.Is(err, repository.ErrNotFound):
				return err
			}
			visitor, err := s.directory.GetVisitor(gctx, appts[i].VisitorID)
			switch {
			case err == nil:
				details[i].VisitorName = visitor.FullName
			case !errors.Is(err, repository.ErrNotFound):
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return details, nil
}

// lockAppointment locks the given keys plus the keys of the stored record, then
// loads the record with a row lock.
func (s *AppointmentService) lockAppointment(ctx context.Context, tx repository.AppointmentTx, id string, keys ...string) (*domain.Appointment, error) {
	peek, err := tx.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	keys = append(keys,
		repository.CustodiedLockKey(peek.CustodiedPersonID),
		repository.VisitorLockKey(peek.VisitorID))
	if err := tx.Lock(ctx, keys...); err != nil {
		return nil, err
	}
	current, err := tx.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.CustodiedPersonID != peek.CustodiedPersonID || current.VisitorID != peek.VisitorID {
		if err := tx.Lock(ctx,
			repository.CustodiedLockKey(current.CustodiedPersonID),
			repository.VisitorLockKey(current.VisitorID)); err != nil {
			return nil, err
		}
	}
	return current, nil
}

func (s *AppointmentService) checkWindow(at time.Time) error {
	if s.window.Permits(at) {
		return nil
	}
	return apperrors.NewDisallowedTime("scheduled time is outside the visiting window", map[string]any{
		"scheduled_at": at,
		"window":       s.window.Describe(),
	})
}

func (s *AppointmentService) resolveReferences(ctx context.Context, custodiedID, visitorID string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.resolveCustodiedPerson(gctx, custodiedID) })
	g.Go(func() error { return s.resolveVisitor(gctx, visitorID) })
	return g.Wait()
}

func (s *AppointmentService) resolveCustodiedPerson(ctx context.Context, id string) error {
	if _, err := s.directory.GetCustodiedPerson(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("custodied person", map[string]any{"custodied_person_id": id})
		}
		return err
	}
	return nil
}

func (s *AppointmentService) resolveVisitor(ctx context.Context, id string) error {
	if _, err := s.directory.GetVisitor(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("visitor", map[string]any{"visitor_id": id})
		}
		return err
	}
	return nil
}

// begin opens a span and returns a func that records the operation outcome.
func (s *AppointmentService) begin(ctx context.Context, op string) (context.Context, func(error)) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "AppointmentService."+op, trace.WithAttributes(attribute.String("scheduler.op", op)))
	return ctx, func(err error) {
		outcome := "success"
		if err != nil {
			outcome = "rejected"
			domainErr := apperrors.ToDomainError(err)
			if domainErr.Code == apperrors.CodeInternal {
				outcome = "error"
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				s.logger.Error("scheduler operation failed", zap.String("op", op), zap.Error(err))
			} else {
				reason := rejectionReason(domainErr)
				span.SetAttributes(attribute.String("scheduler.rejection", reason))
				s.metrics.SchedulingRejected(reason)
				s.logger.Info("scheduler operation rejected",
					zap.String("op", op),
					zap.String("reason", reason),
					zap.String("message", domainErr.Message))
			}
		}
		s.metrics.ObserveOperation(op, outcome, time.Since(started))
		span.End()
	}
}

func (s *AppointmentService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	event.Actor = events.ActorFromContext(ctx)
	_ = s.dispatcher.Publish(ctx, event)
}

// canonicalID trims an id and rewrites any accepted UUID spelling (upper case, braces,
// urn:uuid:) to its lower-case hyphenated form. Lock keys and change detection rely on it.
func canonicalID(raw string) string {
	raw = strings.TrimSpace(raw)
	if parsed, err := uuid.Parse(raw); err == nil {
		return parsed.String()
	}
	return raw
}

func validateAppointmentFields(custodiedID, visitorID string, at time.Time, note string) error {
	switch {
	case custodiedID == "":
		return apperrors.NewValidationError("custodied person id is required", map[string]any{"field": "custodied_person_id"})
	case visitorID == "":
		return apperrors.NewValidationError("visitor id is required", map[string]any{"field": "visitor_id"})
	case at.IsZero():
		return apperrors.NewValidationError("scheduled time is required", map[string]any{"field": "scheduled_at"})
	case utf8.RuneCountInString(note) > maxNoteLength:
		return apperrors.NewValidationError("note is too long", map[string]any{"field": "note", "max_length": maxNoteLength})
	}
	return nil
}

func changedFields(current *domain.Appointment, input UpdateAppointmentInput) []string {
	changed := []string{}
	if current.CustodiedPersonID != input.CustodiedPersonID {
		changed = append(changed, "custodied_person_id")
	}
	if current.VisitorID != input.VisitorID {
		changed = append(changed, "visitor_id")
	}
	if !current.ScheduledAt.Equal(input.ScheduledAt) {
		changed = append(changed, "scheduled_at")
	}
	if current.Note != input.Note {
		changed = append(changed, "note")
	}
	return changed
}

// translateStoreError maps persistence sentinels onto domain errors.
func translateStoreError(err error) error {
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("appointment", nil)
	case errors.Is(err, repository.ErrOverlap):
		return apperrors.NewSchedulingConflict("appointment overlaps another appointment of the custodied person", map[string]any{
			"reason": scheduling.ReasonCustodiedOverlap,
		})
	}
	return err
}

// translateWriteError reports a reference that vanished between resolution and write
// (a stale directory cache entry, say) against the person it names.
func translateWriteError(err error, custodiedID, visitorID string) error {
	var missing *repository.MissingReferenceError
	if errors.As(err, &missing) {
		switch missing.Field {
		case repository.FieldCustodiedPersonID:
			return apperrors.NewNotFound("custodied person", map[string]any{"custodied_person_id": custodiedID})
		case repository.FieldVisitorID:
			return apperrors.NewNotFound("visitor", map[string]any{"visitor_id": visitorID})
		}
		return apperrors.NewNotFound("referenced record", map[string]any{"constraint": missing.Constraint})
	}
	return translateStoreError(err)
}

func rejectionReason(err *apperrors.DomainError) string {
	if reason, ok := err.Details["reason"].(string); ok && reason != "" {
		return reason
	}
	return strings.ToLower(err.Code)
}
