package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sgea-api/internal/middleware"
	"github.com/noah-isme/sgea-api/internal/models"
	"github.com/noah-isme/sgea-api/internal/service"
	appErrors "github.com/noah-isme/sgea-api/pkg/errors"
	"github.com/noah-isme/sgea-api/pkg/export"
)

func newContext(method, target string, body interface{}, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

const (
	eventUUID       = "5b0f6c1e-2d4a-4c8e-9a71-3f2e1d0c9b8a"
	enrollmentUUID  = "8e3a9d2c-7f61-4b5a-8c04-6d1e2f3a4b5c"
	certificateUUID = "c47d1e90-3a2b-4f6c-b8d5-0e9f8a7b6c5d"
	pendingUserUUID = "1a2b3c4d-5e6f-4a8b-9c0d-1e2f3a4b5c6d"
)

var student = &models.JWTClaims{UserID: "u1", Role: models.RoleStudent, Name: "Ana"}

type authServiceStub struct {
	resp *models.LoginResponse
	err  error
}

func (s authServiceStub) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	return s.resp, s.err
}

type registrationStub struct {
	baseURL   string
	confirmed [2]string
	err       error
}

func (s *registrationStub) Register(ctx context.Context, req service.RegisterUserRequest, baseURL string) (*models.User, error) {
	s.baseURL = baseURL
	if s.err != nil {
		return nil, s.err
	}
	return &models.User{ID: "new", Name: req.Name, Login: req.Login, Role: req.Role}, nil
}

func (s *registrationStub) ConfirmEmail(ctx context.Context, userID, token string, now time.Time) (*models.User, error) {
	s.confirmed = [2]string{userID, token}
	if s.err != nil {
		return nil, s.err
	}
	return &models.User{ID: userID, Active: true}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	h := NewAuthHandler(authServiceStub{resp: &models.LoginResponse{Token: "tok", UserID: "u1", UserName: "Ana", Message: "Login realizado com sucesso!"}}, &registrationStub{}, "http://localhost")

	c, w := newContext(http.MethodPost, "/auth/login", `{"login":`, nil)
	h.Login(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newContext(http.MethodPost, "/auth/login", models.LoginRequest{Login: "ana", Password: "x"}, nil)
	h.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "u1", data["usuario_id"])
	assert.Equal(t, "Ana", data["usuario_nome"])
	assert.Equal(t, "tok", data["token"])

	h = NewAuthHandler(authServiceStub{err: appErrors.Clone(appErrors.ErrInvalidCredentials, "")}, &registrationStub{}, "")
	c, w = newContext(http.MethodPost, "/auth/login", models.LoginRequest{Login: "ana", Password: "x"}, nil)
	h.Login(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerRegisterAndConfirm(t *testing.T) {
	users := &registrationStub{}
	h := NewAuthHandler(authServiceStub{}, users, "https://sgea.example")

	c, w := newContext(http.MethodPost, "/auth/register", service.RegisterUserRequest{Name: "Ana", Login: "ana", Role: models.RoleStudent}, nil)
	h.Register(c)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "https://sgea.example", users.baseURL)
	assert.NotContains(t, w.Body.String(), "password_hash")

	c, w = newContext(http.MethodGet, "/auth/confirm/u9/abc", nil, nil)
	c.Params = gin.Params{{Key: "uid", Value: pendingUserUUID}, {Key: "token", Value: "abc"}}
	h.Confirm(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]string{pendingUserUUID, "abc"}, users.confirmed)

	users.err = appErrors.Validation("invalid or expired activation link", nil)
	c, w = newContext(http.MethodGet, "/auth/confirm/u9/abc", nil, nil)
	c.Params = gin.Params{{Key: "uid", Value: pendingUserUUID}, {Key: "token", Value: "abc"}}
	h.Confirm(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type enrollmentServiceStub struct {
	eventID   string
	confirmed *bool
	err       error
}

func (s *enrollmentServiceStub) Enroll(ctx context.Context, userID, eventID string, now time.Time) (*models.Enrollment, error) {
	s.eventID = eventID
	if s.err != nil {
		return nil, s.err
	}
	return &models.Enrollment{ID: "en1", UserID: userID, EventID: eventID}, nil
}

func (s *enrollmentServiceStub) ConfirmAttendance(ctx context.Context, organizerID, enrollmentID string, confirmed bool) (*models.Enrollment, error) {
	s.confirmed = &confirmed
	return &models.Enrollment{ID: enrollmentID, AttendanceConfirmed: confirmed}, s.err
}

func (s *enrollmentServiceStub) ListForUser(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	return []models.EnrollmentDetail{{Enrollment: models.Enrollment{ID: "en1", UserID: userID}}}, nil
}

func TestEnrollmentHandlerCreate(t *testing.T) {
	svc := &enrollmentServiceStub{}
	h := NewEnrollmentHandler(svc)

	c, w := newContext(http.MethodPost, "/enrollments", map[string]string{}, student)
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newContext(http.MethodPost, "/enrollments", CreateEnrollmentRequest{EventID: eventUUID}, nil)
	h.Create(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newContext(http.MethodPost, "/enrollments", CreateEnrollmentRequest{EventID: eventUUID}, student)
	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, eventUUID, svc.eventID)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "Inscrição realizada com sucesso!", data["mensagem"])

	svc.err = appErrors.Clone(appErrors.ErrCapacityExceeded, "")
	c, w = newContext(http.MethodPost, "/enrollments", CreateEnrollmentRequest{EventID: eventUUID}, student)
	h.Create(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "CAPACITY_EXCEEDED", errBody["code"])
}

func TestEnrollmentHandlerAttendance(t *testing.T) {
	svc := &enrollmentServiceStub{}
	h := NewEnrollmentHandler(svc)
	organizer := &models.JWTClaims{UserID: "org", Role: models.RoleOrganizer}

	c, w := newContext(http.MethodPatch, "/enrollments/en1/attendance", map[string]string{}, organizer)
	c.Params = gin.Params{{Key: "id", Value: enrollmentUUID}}
	h.Attendance(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newContext(http.MethodPatch, "/enrollments/en1/attendance", map[string]bool{"confirmed": false}, organizer)
	c.Params = gin.Params{{Key: "id", Value: enrollmentUUID}}
	h.Attendance(c)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.confirmed)
	assert.False(t, *svc.confirmed)
}

type certificateServiceStub struct {
	err error
}

func (s certificateServiceStub) RenderDownload(ctx context.Context, userID, certificateID string) (*models.CertificateDownload, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.CertificateDownload{Filename: "certificado_Workshop_A_Ana.txt", ContentType: "text/plain; charset=utf-8", Content: []byte("\nSGEA")}, nil
}

func (s certificateServiceStub) ListForUser(ctx context.Context, userID string) ([]models.CertificateDetail, error) {
	return nil, s.err
}

func TestCertificateHandlerDownload(t *testing.T) {
	h := NewCertificateHandler(certificateServiceStub{})
	c, w := newContext(http.MethodGet, "/certificates/c1/download", nil, student)
	c.Params = gin.Params{{Key: "id", Value: certificateUUID}}
	h.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="certificado_Workshop_A_Ana.txt"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "\nSGEA", w.Body.String())

	h = NewCertificateHandler(certificateServiceStub{err: appErrors.Clone(appErrors.ErrNotFound, "certificate not found")})
	c, w = newContext(http.MethodGet, "/certificates/c1/download", nil, student)
	c.Params = gin.Params{{Key: "id", Value: certificateUUID}}
	h.Download(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type eventServiceStub struct {
	viewer string
}

func (s *eventServiceStub) Create(ctx context.Context, organizerID string, req service.CreateEventRequest, now time.Time) (*models.Event, error) {
	return &models.Event{ID: "ev1", Name: req.Name, OrganizerID: organizerID}, nil
}

func (s *eventServiceStub) Update(ctx context.Context, organizerID, eventID string, req service.UpdateEventRequest, now time.Time) (*models.Event, error) {
	return nil, appErrors.Clone(appErrors.ErrNotOwner, "")
}

func (s *eventServiceStub) Get(ctx context.Context, id string) (*models.Event, error) {
	return &models.Event{ID: id, Capacity: 10}, nil
}

func (s *eventServiceStub) ListUpcomingViaAPI(ctx context.Context, viewerID string, now time.Time) ([]models.EventSummary, error) {
	s.viewer = viewerID
	return []models.EventSummary{{ID: "ev1", Name: "Workshop A", OrganizerName: "Olga"}}, nil
}

func (s *eventServiceStub) ListByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error) {
	return nil, nil
}

type rosterStub struct{}

func (rosterStub) ListForEvent(ctx context.Context, organizerID, eventID string) ([]models.EnrollmentDetail, error) {
	return nil, appErrors.Clone(appErrors.ErrNotOwner, "")
}

func (rosterStub) AvailableSeats(ctx context.Context, eventID string) (int, error) { return 7, nil }

func (rosterStub) Cancel(ctx context.Context, userID, eventID string, now time.Time) error {
	return appErrors.Clone(appErrors.ErrEventClosed, "")
}

type exporterStub struct {
	format export.Format
}

func (s *exporterStub) Roster(ctx context.Context, organizerID, eventID string, format export.Format) (*service.ExportResult, error) {
	s.format = format
	return &service.ExportResult{Filename: "inscritos_Workshop_A.csv", ContentType: "text/csv; charset=utf-8", Content: []byte("Nome\n")}, nil
}

type issuerStub struct{}

func (issuerStub) IssueForEvent(ctx context.Context, organizerID, eventID string, now time.Time) (*models.IssuanceResult, error) {
	return &models.IssuanceResult{EventID: eventID, Issued: 3}, nil
}

func TestEventHandler(t *testing.T) {
	events := &eventServiceStub{}
	exports := &exporterStub{}
	h := NewEventHandler(events, rosterStub{}, exports, issuerStub{})
	organizer := &models.JWTClaims{UserID: "org", Role: models.RoleOrganizer}

	c, w := newContext(http.MethodGet, "/events", nil, student)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", events.viewer)
	assert.Equal(t, float64(1), decodeEnvelope(t, w)["meta"].(map[string]interface{})["count"])

	c, w = newContext(http.MethodGet, "/events/ev1", nil, student)
	c.Params = gin.Params{{Key: "id", Value: eventUUID}}
	h.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(7), decodeEnvelope(t, w)["meta"].(map[string]interface{})["available_seats"])

	c, w = newContext(http.MethodPut, "/events/ev1", service.EventRequest{Name: "X", ResponsibleProfessorID: pendingUserUUID}, organizer)
	c.Params = gin.Params{{Key: "id", Value: eventUUID}}
	h.Update(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	c, w = newContext(http.MethodGet, "/events/ev1/enrollments", nil, organizer)
	c.Params = gin.Params{{Key: "id", Value: eventUUID}}
	h.Enrollments(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	c, w = newContext(http.MethodGet, "/events/ev1/roster?format=pdf", nil, organizer)
	c.Params = gin.Params{{Key: "id", Value: eventUUID}}
	h.Roster(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.FormatPDF, exports.format)

	c, w = newContext(http.MethodPost, "/events/ev1/certificates", nil, organizer)
	c.Params = gin.Params{{Key: "id", Value: eventUUID}}
	h.IssueCertificates(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decodeEnvelope(t, w)["data"].(map[string]interface{})["issued"])

	c, w = newContext(http.MethodDelete, "/events/ev1/enrollment", nil, student)
	c.Params = gin.Params{{Key: "id", Value: eventUUID}}
	h.CancelEnrollment(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

type auditServiceStub struct {
	query service.AuditQuery
}

func (s *auditServiceStub) Query(ctx context.Context, q service.AuditQuery) ([]models.AuditEntry, error) {
	s.query = q
	return []models.AuditEntry{{ID: "a1", Action: "Login via API: ana"}}, nil
}

func TestAuditHandlerBindsFilters(t *testing.T) {
	svc := &auditServiceStub{}
	h := NewAuditHandler(svc)

	c, w := newContext(http.MethodGet, "/audit?date=2026-03-01&user_id="+pendingUserUUID+"&category=API&limit=10", nil, nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.AuditQuery{Date: "2026-03-01", ActorID: pendingUserUUID, Category: "API", Limit: 10}, svc.query)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": pingerFunc(func(ctx context.Context) error { return nil }),
		"redis":    pingerFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	})

	c, w := newContext(http.MethodGet, "/ready", nil, nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	c, w = newContext(http.MethodGet, "/metrics", nil, nil)
	h.Prometheus(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandlersRejectMalformedIDs(t *testing.T) {
	organizer := &models.JWTClaims{UserID: "org", Role: models.RoleOrganizer}
	events := NewEventHandler(&eventServiceStub{}, rosterStub{}, &exporterStub{}, issuerStub{})
	enrollments := &enrollmentServiceStub{}

	notFound := []struct {
		name   string
		run    func(c *gin.Context)
		claims *models.JWTClaims
		body   interface{}
	}{
		{name: "event detail", run: events.Get, claims: student},
		{name: "event update", run: events.Update, claims: organizer, body: service.EventRequest{Name: "X", ResponsibleProfessorID: pendingUserUUID}},
		{name: "event enrollments", run: events.Enrollments, claims: organizer},
		{name: "event roster", run: events.Roster, claims: organizer},
		{name: "certificate issuance", run: events.IssueCertificates, claims: organizer},
		{name: "enrollment cancellation", run: events.CancelEnrollment, claims: student},
		{name: "attendance", run: NewEnrollmentHandler(enrollments).Attendance, claims: organizer, body: map[string]bool{"confirmed": true}},
		{name: "certificate download", run: NewCertificateHandler(certificateServiceStub{}).Download, claims: student},
	}
	for _, tc := range notFound {
		t.Run(tc.name, func(t *testing.T) {
			c, w := newContext(http.MethodGet, "/x/not-a-uuid", tc.body, tc.claims)
			c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
			tc.run(c)
			require.Equal(t, http.StatusNotFound, w.Code)
			errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
			assert.Equal(t, appErrors.ErrNotFound.Code, errBody["code"])
		})
	}
	assert.Nil(t, enrollments.confirmed)

	c, w := newContext(http.MethodPost, "/enrollments", CreateEnrollmentRequest{EventID: "ev1"}, student)
	NewEnrollmentHandler(enrollments).Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, enrollments.eventID)
	assert.Contains(t, w.Body.String(), "event_id")

	c, w = newContext(http.MethodPost, "/events", service.EventRequest{Name: "Semana de TI", ResponsibleProfessorID: "prof"}, organizer)
	events.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "responsible_professor_id")

	users := &registrationStub{}
	c, w = newContext(http.MethodGet, "/auth/confirm/u9/abc", nil, nil)
	c.Params = gin.Params{{Key: "uid", Value: "u9"}, {Key: "token", Value: "abc"}}
	NewAuthHandler(authServiceStub{}, users, "").Confirm(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, users.confirmed[0])

	audits := &auditServiceStub{}
	c, w = newContext(http.MethodGet, "/audit?user_id=u1", nil, nil)
	NewAuditHandler(audits).List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, audits.query.ActorID)
}
