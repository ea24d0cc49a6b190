package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/visit-service/internal/api/dto"
	"github.com/spec-kit/visit-service/internal/domain"
	"github.com/spec-kit/visit-service/internal/scheduling"
	"github.com/spec-kit/visit-service/internal/service"
	apperrors "github.com/spec-kit/visit-service/pkg/util/errorutil"
)

// AppointmentsHandler exposes the visit scheduler over HTTP.
type AppointmentsHandler struct {
	service *service.AppointmentService
}

// NewAppointmentsHandler constructs handler.
func NewAppointmentsHandler(appointmentService *service.AppointmentService) *AppointmentsHandler {
	return &AppointmentsHandler{service: appointmentService}
}

// Create POST /appointments.
func (h *AppointmentsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := requireUUIDs(
		idField{"custodied_person_id", req.CustodiedPersonID},
		idField{"visitor_id", req.VisitorID},
	); err != nil {
		return err
	}
	input := service.CreateAppointmentInput{
		CustodiedPersonID: req.CustodiedPersonID,
		VisitorID:         req.VisitorID,
		Note:              req.Note,
	}
	if req.ScheduledAt != nil {
		input.ScheduledAt = *req.ScheduledAt
	}

	appt, err := h.service.Create(c.UserContext(), input)
	if err != nil {
		return err
	}
	return h.respondOne(c, http.StatusCreated, appt)
}

// List GET /appointments.
func (h *AppointmentsHandler) List(c *fiber.Ctx) error {
	query, err := parseAppointmentQuery(c)
	if err != nil {
		return err
	}
	return h.respondPage(c, query)
}

// ListForCustodiedPerson GET /custodied-persons/:id/appointments.
func (h *AppointmentsHandler) ListForCustodiedPerson(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := requireUUIDs(idField{"id", id}); err != nil {
		return err
	}
	query, err := parseAppointmentQuery(c)
	if err != nil {
		return err
	}
	query.CustodiedPersonID = id
	return h.respondPage(c, query)
}

// ListForVisitor GET /visitors/:id/appointments.
func (h *AppointmentsHandler) ListForVisitor(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := requireUUIDs(idField{"id", id}); err != nil {
		return err
	}
	query, err := parseAppointmentQuery(c)
	if err != nil {
		return err
	}
	query.VisitorID = id
	return h.respondPage(c, query)
}

// Get GET /appointments/:id.
func (h *AppointmentsHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := requireUUIDs(idField{"id", id}); err != nil {
		return err
	}
	appt, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return h.respondOne(c, http.StatusOK, appt)
}

// Update PUT /appointments/:id.
func (h *AppointmentsHandler) Update(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := requireUUIDs(idField{"id", id}); err != nil {
		return err
	}
	var req dto.UpdateAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := requireUUIDs(
		idField{"custodied_person_id", req.CustodiedPersonID},
		idField{"visitor_id", req.VisitorID},
	); err != nil {
		return err
	}
	input := service.UpdateAppointmentInput{
		CustodiedPersonID: req.CustodiedPersonID,
		VisitorID:         req.VisitorID,
		Note:              req.Note,
		Status:            req.Status,
	}
	if req.ScheduledAt != nil {
		input.ScheduledAt = *req.ScheduledAt
	}

	appt, err := h.service.Update(c.UserContext(), id, input)
	if err != nil {
		return err
	}
	return h.respondOne(c, http.StatusOK, appt)
}

// Cancel POST /appointments/:id/cancel.
func (h *AppointmentsHandler) Cancel(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := requireUUIDs(idField{"id", id}); err != nil {
		return err
	}
	appt, err := h.service.Cancel(c.UserContext(), id)
	if err != nil {
		return err
	}
	return h.respondOne(c, http.StatusOK, appt)
}

func (h *AppointmentsHandler) respondOne(c *fiber.Ctx, status int, appt *domain.Appointment) error {
	details, err := h.service.Describe(c.UserContext(), *appt)
	if err != nil {
		return err
	}
	return c.Status(status).JSON(fiber.Map{"data": appointmentResponse(details[0])})
}

func (h *AppointmentsHandler) respondPage(c *fiber.Ctx, query service.AppointmentQuery) error {
	page, err := h.service.List(c.UserContext(), query)
	if err != nil {
		return err
	}
	details, err := h.service.Describe(c.UserContext(), page.Items...)
	if err != nil {
		return err
	}
	items := make([]dto.AppointmentResponse, 0, len(details))
	for i := range details {
		items = append(items, appointmentResponse(details[i]))
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": dto.PageMeta{Page: page.Page, PageSize: page.PageSize, Total: page.Total},
	})
}

func parseAppointmentQuery(c *fiber.Ctx) (service.AppointmentQuery, error) {
	query := service.AppointmentQuery{
		CustodiedPersonID: strings.TrimSpace(c.Query("custodied_person_id")),
		VisitorID:         strings.TrimSpace(c.Query("visitor_id")),
	}
	ids := []idField{}
	if query.CustodiedPersonID != "" {
		ids = append(ids, idField{"custodied_person_id", query.CustodiedPersonID})
	}
	if query.VisitorID != "" {
		ids = append(ids, idField{"visitor_id", query.VisitorID})
	}
	if err := requireUUIDs(ids...); err != nil {
		return query, err
	}

	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			status, err := scheduling.ParseStatus(part)
			if err != nil {
				return query, err
			}
			query.Statuses = append(query.Statuses, status)
		}
	}

	var err error
	if query.From, err = parseTime("from", c.Query("from")); err != nil {
		return query, err
	}
	if query.To, err = parseTime("to", c.Query("to")); err != nil {
		return query, err
	}
	if query.Page, err = parseInt("page", c.Query("page"), 1); err != nil {
		return query, err
	}
	if query.PageSize, err = parseInt("page_size", c.Query("page_size"), 20); err != nil {
		return query, err
	}
	return query, nil
}

func parseTime(field, val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid timestamp, expected RFC3339", map[string]any{"field": field})
	}
	return &t, nil
}

func parseInt(field, val string, def int) (int, error) {
	if val == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return 0, apperrors.NewValidationError("must be a positive integer", map[string]any{"field": field})
	}
	return parsed, nil
}

type idField struct {
	name  string
	value string
}

func requireUUIDs(fields ...idField) error {
	for _, field := range fields {
		if strings.TrimSpace(field.value) == "" {
			return apperrors.NewValidationError(field.name+" is required", map[string]any{"field": field.name})
		}
		if _, err := uuid.Parse(field.value); err != nil {
			return apperrors.NewValidationError(field.name+" must be a UUID", map[string]any{"field": field.name})
		}
	}
	return nil
}

func appointmentResponse(details service.AppointmentDetails) dto.AppointmentResponse {
	return dto.AppointmentResponse{
		ID:                  details.ID,
		CustodiedPersonID:   details.CustodiedPersonID,
		CustodiedPersonName: details.CustodiedPersonName,
		VisitorID:           details.VisitorID,
		VisitorName:         details.VisitorName,
		ScheduledAt:         details.ScheduledAt,
		Status:              details.Status,
		Note:                details.Note,
		CreatedAt:           details.CreatedAt,
		UpdatedAt:           details.UpdatedAt,
	}
}
