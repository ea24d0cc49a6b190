package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/spec-kit/visit-service/internal/api/http/handlers"
	"github.com/spec-kit/visit-service/internal/auth"
	"github.com/spec-kit/visit-service/internal/domain"
	"github.com/spec-kit/visit-service/internal/observability"
	"github.com/spec-kit/visit-service/internal/repository"
	"github.com/spec-kit/visit-service/internal/scheduling"
	"github.com/spec-kit/visit-service/internal/service"
)

const (
	custodiedID = "0b6f3a52-9a39-4f0e-8a53-3f1f1c2f7a01"
	visitorOne  = "6c1d6d0e-7a55-4d2f-b3c9-2a6f0d3e8b11"
	visitorTwo  = "9e2b1c4d-1f0a-4b8e-a7d6-5c3e2f1a0b22"
	unknownID   = "f0f0f0f0-0000-4000-8000-000000000000"
)

type staticPinger struct{ err error }

func (p staticPinger) Ping(context.Context) error { return p.err }

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]int  `json:"meta"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type RouterSuite struct {
	suite.Suite

	app     *fiber.App
	tokens  *auth.TokenManager
	officer string
	viewer  string
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	directory := repository.NewMemoryDirectory()
	directory.PutCustodiedPerson(domain.CustodiedPerson{ID: custodiedID, FullName: "Carlos Andrade", FacilityID: "F1"})
	directory.PutVisitor(domain.Visitor{ID: visitorOne, FullName: "Ana Souza"})
	directory.PutVisitor(domain.Visitor{ID: visitorTwo, FullName: "Beatriz Reis"})

	svc := service.NewAppointmentService(service.AppointmentDependencies{
		Store:      repository.NewMemoryAppointmentStore(),
		Directory:  directory,
		Window:     scheduling.MidweekWindow{Location: time.UTC},
		Conflicts:  scheduling.NewConflictDetector(time.Hour, false),
		DailyLimit: scheduling.NewDailyLimitPolicy(2, true, time.UTC),
	})

	s.tokens = auth.NewTokenManager("router-secret", 15)
	s.officer = s.token("officer-1", auth.RoleOfficer)
	s.viewer = s.token("viewer-1", auth.RoleViewer)

	metrics := observability.NewMetrics()
	s.app = fiber.New()
	RegisterMiddlewares(s.app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(s.app, RouteConfig{
		Health: handlers.NewHealthHandler("visit-scheduling-service", "test", map[string]handlers.Pinger{
			"postgres": staticPinger{},
		}),
		Appointments:   handlers.NewAppointmentsHandler(svc),
		AuthMiddleware: auth.NewAuthMiddleware(s.tokens),
		Metrics:        metrics,
	})
}

func (s *RouterSuite) token(subject string, role auth.Role) string {
	raw, _, err := s.tokens.GenerateToken(subject, role)
	s.Require().NoError(err)
	return raw
}

func (s *RouterSuite) do(method, path, token string, body any) (int, envelope) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var out envelope
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		s.Require().NoError(json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *RouterSuite) createBody(visitorID, at string) map[string]any {
	return map[string]any{
		"custodied_person_id": custodiedID,
		"visitor_id":          visitorID,
		"scheduled_at":        at,
		"note":                "first visit",
	}
}

func (s *RouterSuite) TestCreateAndFetch() {
	status, body := s.do(http.MethodPost, "/api/v1/appointments", s.officer, s.createBody(visitorOne, "2024-01-03T10:00:00Z"))
	s.Require().Equal(http.StatusCreated, status)

	var created map[string]any
	s.Require().NoError(json.Unmarshal(body.Data, &created))
	s.Equal("SCHEDULED", created["status"])
	s.Equal("Carlos Andrade", created["custodied_person_name"])
	s.Equal("Ana Souza", created["visitor_name"])
	id := created["id"].(string)

	status, body = s.do(http.MethodGet, "/api/v1/appointments/"+id, s.viewer, nil)
	s.Require().Equal(http.StatusOK, status)
	var fetched map[string]any
	s.Require().NoError(json.Unmarshal(body.Data, &fetched))
	s.Equal(id, fetched["id"])
	s.Equal("first visit", fetched["note"])
}

func (s *RouterSuite) TestErrorMapping() {
	status, body := s.do(http.MethodPost, "/api/v1/appointments", s.officer, s.createBody(visitorOne, "2024-01-01T10:00:00Z"))
	s.Equal(http.StatusUnprocessableEntity, status)
	s.Equal("DISALLOWED_TIME", body.Error.Code)

	status, _ = s.do(http.MethodPost, "/api/v1/appointments", s.officer, s.createBody(visitorOne, "2024-01-03T10:00:00Z"))
	s.Require().Equal(http.StatusCreated, status)

	status, body = s.do(http.MethodPost, "/api/v1/appointments", s.officer, s.createBody(visitorTwo, "2024-01-03T10:30:00Z"))
	s.Equal(http.StatusConflict, status)
	s.Equal("SCHEDULING_CONFLICT", body.Error.Code)
	s.Equal(scheduling.ReasonCustodiedOverlap, body.Error.Details["reason"])

	status, body = s.do(http.MethodPost, "/api/v1/appointments", s.officer, map[string]any{
		"custodied_person_id": unknownID,
		"visitor_id":          visitorOne,
		"scheduled_at":        "2024-01-04T10:00:00Z",
	})
	s.Equal(http.StatusNotFound, status)
	s.Equal("RESOURCE_NOT_FOUND", body.Error.Code)

	status, body = s.do(http.MethodPost, "/api/v1/appointments", s.officer, map[string]any{
		"custodied_person_id": "C1",
		"visitor_id":          visitorOne,
	})
	s.Equal(http.StatusBadRequest, status)
	s.Equal("VALIDATION_FAILED", body.Error.Code)

	status, body = s.do(http.MethodGet, "/api/v1/appointments/"+unknownID, s.viewer, nil)
	s.Equal(http.StatusNotFound, status)
	s.Equal("RESOURCE_NOT_FOUND", body.Error.Code)
}

func (s *RouterSuite) TestCancelTwice() {
	_, body := s.do(http.MethodPost, "/api/v1/appointments", s.officer, s.createBody(visitorOne, "2024-01-03T10:00:00Z"))
	var created map[string]any
	s.Require().NoError(json.Unmarshal(body.Data, &created))
	path := "/api/v1/appointments/" + created["id"].(string) + "/cancel"

	status, body := s.do(http.MethodPost, path, s.officer, nil)
	s.Require().Equal(http.StatusOK, status)
	var canceled map[string]any
	s.Require().NoError(json.Unmarshal(body.Data, &canceled))
	s.Equal("CANCELED", canceled["status"])

	status, body = s.do(http.MethodPost, path, s.officer, nil)
	s.Equal(http.StatusConflict, status)
	s.Equal("INVALID_OPERATION", body.Error.Code)
}

func (s *RouterSuite) TestUpdateStatus() {
	_, body := s.do(http.MethodPost, "/api/v1/appointments", s.officer, s.createBody(visitorOne, "2024-01-03T10:00:00Z"))
	var created map[string]any
	s.Require().NoError(json.Unmarshal(body.Data, &created))
	path := "/api/v1/appointments/" + created["id"].(string)

	update := s.createBody(visitorOne, "2024-01-03T10:00:00Z")
	update["status"] = "COMPLETED"
	status, body := s.do(http.MethodPut, path, s.officer, update)
	s.Equal(http.StatusConflict, status)
	s.Equal("INVALID_OPERATION", body.Error.Code)

	update["status"] = "CONFIRMED"
	status, body = s.do(http.MethodPut, path, s.officer, update)
	s.Require().Equal(http.StatusOK, status)
	var updated map[string]any
	s.Require().NoError(json.Unmarshal(body.Data, &updated))
	s.Equal("CONFIRMED", updated["status"])
}

func (s *RouterSuite) TestListings() {
	for _, at := range []string{"2024-01-03T09:00:00Z", "2024-01-04T14:00:00Z"} {
		status, _ := s.do(http.MethodPost, "/api/v1/appointments", s.officer, s.createBody(visitorOne, at))
		s.Require().Equal(http.StatusCreated, status)
	}

	status, body := s.do(http.MethodGet, "/api/v1/custodied-persons/"+custodiedID+"/appointments", s.viewer, nil)
	s.Require().Equal(http.StatusOK, status)
	var items []map[string]any
	s.Require().NoError(json.Unmarshal(body.Data, &items))
	s.Require().Len(items, 2)
	s.Equal("2024-01-04T14:00:00Z", items[0]["scheduled_at"])
	s.Equal(2, body.Meta["total"])

	status, body = s.do(http.MethodGet, "/api/v1/appointments?from=2024-01-01T00:00:00Z&to=2024-01-31T00:00:00Z&page_size=1", s.viewer, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Require().NoError(json.Unmarshal(body.Data, &items))
	s.Require().Len(items, 1)
	s.Equal("2024-01-03T09:00:00Z", items[0]["scheduled_at"])
	s.Equal(2, body.Meta["total"])

	status, body = s.do(http.MethodGet, "/api/v1/visitors/"+visitorOne+"/appointments?status=canceled", s.viewer, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Require().NoError(json.Unmarshal(body.Data, &items))
	s.Empty(items)

	status, body = s.do(http.MethodGet, "/api/v1/appointments?from=yesterday", s.viewer, nil)
	s.Equal(http.StatusBadRequest, status)
	s.Equal("from", body.Error.Details["field"])
}

func (s *RouterSuite) TestAuthorization() {
	status, body := s.do(http.MethodGet, "/api/v1/appointments", "", nil)
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("UNAUTHORIZED", body.Error.Code)

	status, body = s.do(http.MethodPost, "/api/v1/appointments", s.viewer, s.createBody(visitorOne, "2024-01-03T10:00:00Z"))
	s.Equal(http.StatusForbidden, status)
	s.Equal("FORBIDDEN", body.Error.Code)
}

func (s *RouterSuite) TestUnknownRoute() {
	status, body := s.do(http.MethodGet, "/nope", "", nil)
	s.Equal(http.StatusNotFound, status)
	s.Equal("RESOURCE_NOT_FOUND", body.Error.Code)
}

func (s *RouterSuite) TestHealthAndMetrics() {
	status, _ := s.do(http.MethodGet, "/health/live", "", nil)
	s.Equal(http.StatusOK, status)

	status, _ = s.do(http.MethodGet, "/health/ready", "", nil)
	s.Equal(http.StatusOK, status)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(string(raw), "visit_http_requests_total")
}

func TestReadinessReportsFailingDependency(t *testing.T) {
	app := fiber.New()
	health := handlers.NewHealthHandler("visit-scheduling-service", "test", map[string]handlers.Pinger{
		"postgres": staticPinger{},
		"redis":    staticPinger{err: errors.New("connection refused")},
	})
	app.Get("/health/ready", health.Ready)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "connection refused", body.Error.Details["redis"])
	assert.Equal(t, "ok", body.Error.Details["postgres"])
}
