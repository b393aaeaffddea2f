package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/appointment"
	"github.com/hackgods/clinic-queue/internal/config"
	"github.com/hackgods/clinic-queue/internal/identity"
	"github.com/hackgods/clinic-queue/internal/observability/metrics"
	"github.com/hackgods/clinic-queue/internal/schedule"
)

const (
	testSecret  = "router-test-secret"
	clinicOwner = "clinic-owner-1"
)

// Saturday; the first working day after it is Monday 2025-12-22.
var fixedNow = time.Date(2025, 12, 20, 10, 0, 0, 0, time.UTC)

type testServer struct {
	router   http.Handler
	handler  *Handler
	dir      *identity.MemoryDirectory
	clinicID uuid.UUID
	registry *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	dir := identity.NewMemoryDirectory()
	store := schedule.NewMemoryStore()

	clinic, err := dir.SaveClinic(ctx, identity.ClinicProfile{
		OwnerUserID:         clinicOwner,
		DoctorName:          "Dr. Hala Mostafa",
		Specialty:           "Pediatrics",
		SlotDurationMinutes: 30,
	})
	require.NoError(t, err)
	_, err = store.ReplaceWorkingDays(ctx, clinic.ID, []schedule.WorkingDay{
		{DayOfWeek: time.Monday, StartTime: schedule.NewClock(9, 0), EndTime: schedule.NewClock(12, 0)},
		{DayOfWeek: time.Tuesday, StartTime: schedule.NewClock(9, 0), EndTime: schedule.NewClock(17, 0)},
		{DayOfWeek: time.Wednesday, IsClosed: true},
	})
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.RetryBackoff = 0
	reg := prometheus.NewRegistry()

	calc := schedule.NewCalculator(store, schedule.NewMemoryCache(), cfg.CapacityCacheTTL, zap.NewNop())
	appts := appointment.NewService(appointment.NewMemoryRepository(), appointment.NewLocalLocker(time.Second), calc, dir, cfg, zap.NewNop(),
		appointment.WithClock(func() time.Time { return fixedNow }),
		appointment.WithMetrics(metrics.NewBookingMetrics(reg)),
	)
	h := NewHandler(appts, schedule.NewService(store, calc, zap.NewNop()), calc, dir, time.UTC, zap.NewNop())
	h.now = func() time.Time { return fixedNow }

	return &testServer{
		router: NewRouter(RouterConfig{
			Handler:   h,
			JWTSecret: testSecret,
			Gatherer:  reg,
			Env:       "test",
			Version:   "v0.0.0-test",
		}),
		handler:  h,
		dir:      dir,
		clinicID: clinic.ID,
		registry: reg,
	}
}

func token(t *testing.T, userID string, role identity.Role) string {
	t.Helper()
	tok, err := identity.IssueToken(testSecret, userID, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) book(t *testing.T, patientID, date string) AppointmentResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/appointments/book", token(t, patientID, identity.RolePatient),
		BookAppointmentRequest{ClinicID: s.clinicID.String(), Date: date})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[AppointmentResponse](t, rec)
}

func TestBookAppointmentEndpoint(t *testing.T) {
	s := newTestServer(t)

	first := s.book(t, "patient-1", "2025-12-22")
	assert.Equal(t, 1, first.QueueNumber)
	assert.Equal(t, schedule.NewClock(9, 0), first.Time)
	assert.Equal(t, "booked", first.Status)
	assert.Equal(t, "2025-12-22", first.Date)

	second := s.book(t, "patient-2", "2025-12-22")
	assert.Equal(t, 2, second.QueueNumber)
	assert.Equal(t, schedule.NewClock(9, 30), second.Time)
}

func TestBookAppointmentRejections(t *testing.T) {
	s := newTestServer(t)
	patient := token(t, "patient-1", identity.RolePatient)

	tests := []struct {
		name   string
		tok    string
		body   any
		status int
		code   string
	}{
		{"no token", "", BookAppointmentRequest{ClinicID: s.clinicID.String(), Date: "2025-12-22"}, http.StatusUnauthorized, "unauthorized"},
		{"clinic role", token(t, clinicOwner, identity.RoleClinic), BookAppointmentRequest{ClinicID: s.clinicID.String(), Date: "2025-12-22"}, http.StatusForbidden, "forbidden"},
		{"bad clinic id", patient, BookAppointmentRequest{ClinicID: "nope", Date: "2025-12-22"}, http.StatusBadRequest, "invalid_clinic_id"},
		{"bad date", patient, BookAppointmentRequest{ClinicID: s.clinicID.String(), Date: "22/12/2025"}, http.StatusBadRequest, "invalid_date"},
		{"unknown clinic", patient, BookAppointmentRequest{ClinicID: uuid.NewString(), Date: "2025-12-22"}, http.StatusNotFound, "clinic_not_found"},
		{"past date", patient, BookAppointmentRequest{ClinicID: s.clinicID.String(), Date: "2025-12-19"}, http.StatusBadRequest, "past_date"},
		{"closed weekday", patient, BookAppointmentRequest{ClinicID: s.clinicID.String(), Date: "2025-12-24"}, http.StatusBadRequest, "clinic_closed"},
		{"not json", patient, "{", http.StatusBadRequest, "invalid_request_body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/appointments/book", tt.tok, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Error.Code)
		})
	}
}

func TestBookAppointmentFullyBookedNamesNextDate(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 6; i++ {
		s.book(t, "patient-"+string(rune('a'+i)), "2025-12-22")
	}

	rec := s.do(t, http.MethodPost, "/appointments/book", token(t, "patient-z", identity.RolePatient),
		BookAppointmentRequest{ClinicID: s.clinicID.String(), Date: "2025-12-22"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "clinic_fully_booked", body.Error.Code)
	assert.Contains(t, body.Error.Message, "Next available date: 2025-12-23 (Tuesday)")

	rec = s.do(t, http.MethodGet, "/appointments/next-available?clinicId="+s.clinicID.String()+"&fromDate=2025-12-22",
		token(t, "patient-z", identity.RolePatient), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	next := decode[NextAvailableResponse](t, rec)
	assert.True(t, next.Available)
	assert.Equal(t, "2025-12-23", next.Date)
	assert.Equal(t, "Tuesday", next.DayOfWeek)
	assert.Equal(t, 16, next.AvailableSlots)
}

func TestAppointmentLifecycleEndpoints(t *testing.T) {
	s := newTestServer(t)
	clinic := token(t, clinicOwner, identity.RoleClinic)
	require.NoError(t, s.dir.SavePatient(context.Background(), identity.Patient{ID: "patient-1", DisplayName: "Omar Adel"}))

	a := s.book(t, "patient-1", "2025-12-22")
	b := s.book(t, "patient-2", "2025-12-22")

	rec := s.do(t, http.MethodGet, "/appointments/"+a.ID.String(), token(t, "patient-1", identity.RolePatient), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[AppointmentDetailResponse](t, rec)
	assert.Equal(t, "Omar Adel", detail.PatientName)
	assert.Equal(t, "Dr. Hala Mostafa", detail.DoctorName)

	rec = s.do(t, http.MethodPost, "/appointments/clinic/call-next?date=2025-12-22", clinic, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	called := decode[AppointmentResponse](t, rec)
	assert.Equal(t, a.ID, called.ID)
	assert.Equal(t, "in_progress", called.Status)

	rec = s.do(t, http.MethodGet, "/appointments/"+b.ID.String()+"/wait-time", token(t, "patient-2", identity.RolePatient), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	wait := decode[WaitTimeResponse](t, rec)
	assert.Equal(t, 1, wait.CurrentQueueNumber)
	assert.Equal(t, 1, wait.PeopleAhead)
	assert.Equal(t, 30, wait.EstimatedWaitMinutes)

	rec = s.do(t, http.MethodPost, "/appointments/"+a.ID.String()+"/complete", clinic, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, "/appointments/"+a.ID.String()+"/status", clinic, UpdateStatusRequest{Status: "booked"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_status_transition", decode[ErrorResponse](t, rec).Error.Code)

	rec = s.do(t, http.MethodPut, "/appointments/"+b.ID.String()+"/status", clinic, UpdateStatusRequest{Status: "sleeping"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_status", decode[ErrorResponse](t, rec).Error.Code)

	rec = s.do(t, http.MethodPost, "/appointments/"+b.ID.String()+"/cancel", token(t, "patient-1", identity.RolePatient), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/appointments/"+b.ID.String()+"/cancel", token(t, "patient-2", identity.RolePatient), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "canceled", decode[AppointmentResponse](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/appointments/clinic/call-next?date=2025-12-22", clinic, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no_booked_appointments", decode[ErrorResponse](t, rec).Error.Code)

	rec = s.do(t, http.MethodGet, "/appointments/clinic/queue?date=2025-12-22", clinic, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	queue := decode[DayQueueResponse](t, rec)
	assert.Equal(t, 1, queue.CurrentQueueNumber)
	assert.Equal(t, StatusCountsResponse{Total: 2, Completed: 1, Canceled: 1}, queue.Counts)

	rec = s.do(t, http.MethodGet, "/appointments/patient/history", token(t, "patient-2", identity.RolePatient), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[PatientHistoryResponse](t, rec)
	assert.Equal(t, 1, history.Total)
	assert.Equal(t, 1, history.Canceled)
}

func TestAppointmentEndpointsRejectBadIDs(t *testing.T) {
	s := newTestServer(t)
	patient := token(t, "patient-1", identity.RolePatient)

	rec := s.do(t, http.MethodGet, "/appointments/not-a-uuid", patient, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_id", decode[ErrorResponse](t, rec).Error.Code)

	rec = s.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), patient, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "appointment_not_found", decode[ErrorResponse](t, rec).Error.Code)

	rec = s.do(t, http.MethodGet, "/appointments/clinic/queue", patient, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/appointments/clinic/queue?date=tomorrow", token(t, clinicOwner, identity.RoleClinic), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_date", decode[ErrorResponse](t, rec).Error.Code)

	rec = s.do(t, http.MethodGet, "/appointments/clinic/queue", token(t, "stranger", identity.RoleClinic), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "clinic_not_found", decode[ErrorResponse](t, rec).Error.Code)
}

func TestWeeklyQueueEndpoint(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 5; i++ {
		s.book(t, "patient-"+string(rune('a'+i)), "2025-12-22")
	}

	rec := s.do(t, http.MethodGet, "/appointments/clinic/weekly-queue?startDate=2025-12-22", token(t, clinicOwner, identity.RoleClinic), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	week := decode[WeeklyQueueResponse](t, rec)
	assert.Equal(t, "2025-12-28", week.EndDate)
	require.Len(t, week.Days, 7)
	assert.Equal(t, "Monday", week.Days[0].DayOfWeek)
	assert.Equal(t, 1, week.Days[0].AvailableSlots)
	assert.False(t, week.Days[2].IsWorkingDay)
	assert.Equal(t, []string{"2025-12-22"}, week.BusyDays)
	assert.Contains(t, rec.Body.String(), `"start_time":"09:00"`)
}

func TestScheduleEndpoints(t *testing.T) {
	s := newTestServer(t)
	clinic := token(t, clinicOwner, identity.RoleClinic)

	rec := s.do(t, http.MethodPut, "/schedule/working-days", clinic, map[string]any{
		"working_days": []map[string]any{
			{"day_of_week": 1, "start_time": "14:00", "end_time": "09:00"},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_schedule", decode[ErrorResponse](t, rec).Error.Code)

	rec = s.do(t, http.MethodPut, "/schedule/working-days", clinic, map[string]any{
		"working_days": []map[string]any{
			{"day_of_week": 1, "start_time": "08:00", "end_time": "12:00"},
			{"day_of_week": 3, "is_closed": true},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	days := decode[[]WorkingDayResponse](t, rec)
	require.Len(t, days, 2)

	rec = s.do(t, http.MethodGet, "/schedule/working-days/1", clinic, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	monday := decode[WorkingDayResponse](t, rec)
	assert.Equal(t, 240, monday.WorkingMinutes)

	rec = s.do(t, http.MethodGet, "/schedule/working-days/2", clinic, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/schedule/working-days/"+monday.ID.String(), clinic,
		WorkingDayRequest{DayOfWeek: 1, StartTime: schedule.NewClock(9, 0), EndTime: schedule.NewClock(11, 0)})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/schedule/"+s.clinicID.String()+"/capacity?date=2025-12-22", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decode[CapacityResponse](t, rec).Capacity)

	rec = s.do(t, http.MethodPost, "/schedule/exceptions", clinic, ExceptionRequest{Date: "2025-12-22", Reason: "Conference"})
	require.Equal(t, http.StatusCreated, rec.Code)
	ex := decode[ExceptionResponse](t, rec)

	rec = s.do(t, http.MethodPost, "/schedule/exceptions", clinic, ExceptionRequest{Date: "2025-12-22", Reason: "Again"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "exception_exists", decode[ErrorResponse](t, rec).Error.Code)

	rec = s.do(t, http.MethodGet, "/schedule/"+s.clinicID.String()+"/available?date=2025-12-22", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	avail := decode[AvailabilityResponse](t, rec)
	assert.False(t, avail.IsAvailable)
	assert.True(t, avail.IsException)

	rec = s.do(t, http.MethodGet, "/schedule/"+s.clinicID.String()+"/capacity?date=2025-12-22", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[CapacityResponse](t, rec).Capacity)

	rec = s.do(t, http.MethodPost, "/appointments/book", token(t, "patient-1", identity.RolePatient),
		BookAppointmentRequest{ClinicID: s.clinicID.String(), Date: "2025-12-22"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error.Message, "Reason: Conference")

	rec = s.do(t, http.MethodGet, "/schedule/exceptions?upcoming=true", clinic, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ExceptionResponse](t, rec), 1)

	rec = s.do(t, http.MethodPut, "/schedule/exceptions", clinic, ExceptionRequest{Date: "2025-12-22", Reason: "Staff training"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ex.ID, decode[ExceptionResponse](t, rec).ID)

	rec = s.do(t, http.MethodGet, "/schedule/exceptions/by-date?date=2025-12-22", clinic, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Staff training", decode[ExceptionResponse](t, rec).Reason)

	rec = s.do(t, http.MethodDelete, "/schedule/exceptions/"+ex.ID.String(), clinic, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, "/schedule/exceptions/"+ex.ID.String(), clinic, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/schedule/working-days", token(t, "patient-1", identity.RolePatient), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPublicScheduleLookupsRejectUnknownClinic(t *testing.T) {
	s := newTestServer(t)
	unknown := uuid.NewString()

	for _, path := range []string{
		"/schedule/" + unknown + "/available?date=2025-12-22",
		"/schedule/" + unknown + "/capacity?date=2025-12-22",
	} {
		rec := s.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "clinic_not_found", decode[ErrorResponse](t, rec).Error.Code, path)
	}
}

type pingFailing struct{}

func (pingFailing) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthEndpoints(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })

	tests := []struct {
		name   string
		deps   []Dependency
		status int
		want   string
	}{
		{"all up", []Dependency{{Name: "postgres", Pinger: ok, Critical: true}, {Name: "redis", Pinger: ok}}, http.StatusOK, "ok"},
		{"redis down", []Dependency{{Name: "postgres", Pinger: ok, Critical: true}, {Name: "redis", Pinger: pingFailing{}}}, http.StatusOK, "degraded"},
		{"postgres down", []Dependency{{Name: "postgres", Pinger: pingFailing{}, Critical: true}, {Name: "redis", Pinger: ok}}, http.StatusServiceUnavailable, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(RouterConfig{Handler: &Handler{}, Dependencies: tt.deps, Gatherer: prometheus.NewRegistry()})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.want, decode[ReadinessResponse](t, rec).Status)
		})
	}

	router := NewRouter(RouterConfig{Handler: &Handler{}, Gatherer: prometheus.NewRegistry(), Version: "v1"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", decode[LivenessResponse](t, rec).Version)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpointExposesBookings(t *testing.T) {
	s := newTestServer(t)
	s.book(t, "patient-1", "2025-12-22")

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `clinicqueue_booking_requests_total{outcome="booked"} 1`)
}

func TestRespondErrorHidesInternalFaults(t *testing.T) {
	h := &Handler{log: zap.NewNop()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/appointments/x", nil)

	h.respondError(rec, req, errors.New("pq: connection reset by peer"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "internal_error", body.Error.Code)
	assert.False(t, strings.Contains(body.Error.Message, "connection reset"))

	rec = httptest.NewRecorder()
	h.respondError(rec, req, appointment.ErrBookingContention)
	require.Equal(t, http.StatusConflict, rec.Code)
}
