package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medbook/config"
	"medbook/internal/domain"
	"medbook/internal/service"
	"medbook/pkg/validator"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := validator.RegisterBindings(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var identities = map[string]domain.Identity{
	"patient-token": {UserID: 100, Role: domain.UserRolePatient},
	"doctor-token":  {UserID: 10, Role: domain.UserRoleDoctor},
	"admin-token":   {UserID: 1, Role: domain.UserRoleAdmin},
}

type fakeAuth struct {
	service.AuthService
}

func (fakeAuth) ParseToken(_ context.Context, token string) (*domain.Identity, error) {
	identity, ok := identities[token]
	if !ok {
		return nil, domain.Unauthorized("недействительный токен")
	}
	return &identity, nil
}

type fakeAppointments struct {
	service.AppointmentService
	err      error
	booked   domain.BookAppointmentDTO
	bookedBy int64
}

func (f *fakeAppointments) Book(_ context.Context, patientID int64, dto domain.BookAppointmentDTO) (*domain.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.booked, f.bookedBy = dto, patientID
	return &domain.Appointment{ID: 7, PatientID: patientID, SlotID: dto.SlotID, TimeLabel: dto.TimeLabel, Status: domain.AppointmentStatusPending}, nil
}

func (f *fakeAppointments) Cancel(context.Context, domain.Identity, int64) error {
	return f.err
}

type fakeDoctors struct {
	service.DoctorService
	filter domain.DoctorFilter
}

func (f *fakeDoctors) List(_ context.Context, filter domain.DoctorFilter) ([]domain.Doctor, int, error) {
	f.filter = filter
	return []domain.Doctor{{ID: 1}, {ID: 2}}, 45, nil
}

type fakeSlots struct {
	service.SlotService
	created domain.CreateSlotDTO
}

func (f *fakeSlots) Create(_ context.Context, _ domain.Identity, dto domain.CreateSlotDTO) ([]domain.AppointmentSlot, error) {
	f.created = dto
	return []domain.AppointmentSlot{{ID: 1, Date: dto.Date}}, nil
}

func (f *fakeSlots) Availability(_ context.Context, doctorID int64, date string) ([]domain.SlotAvailability, error) {
	if doctorID == 404 {
		return nil, domain.NotFound("врач не найден")
	}
	return []domain.SlotAvailability{{SlotID: 1, Date: date, Available: []string{"09:00", "09:30"}}}, nil
}

type testServer struct {
	router       *gin.Engine
	appointments *fakeAppointments
	doctors      *fakeDoctors
	slots        *fakeSlots
}

func newTestServer() *testServer {
	ts := &testServer{
		appointments: &fakeAppointments{},
		doctors:      &fakeDoctors{},
		slots:        &fakeSlots{},
	}

	services := &service.Services{
		Auth:        fakeAuth{},
		Appointment: ts.appointments,
		Doctor:      ts.doctors,
		Slot:        ts.slots,
	}
	cfg := &config.Config{Name: "medbook", Version: "test", Environment: "test"}

	ts.router = gin.New()
	NewHandler(services, zap.NewNop(), cfg, nil).InitRoutes(ts.router)

	return ts
}

func (ts *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(authorizationHeader, "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponseBody {
	t.Helper()
	var body errorResponseBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestHealth(t *testing.T) {
	ts := newTestServer()

	w := ts.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Status string         `json:"status"`
		Data   healthResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Name != "medbook" || body.Data.Version != "test" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer()

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"no bearer prefix", "patient-token"},
		{"empty token", "Bearer "},
		{"unknown token", "Bearer forged"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/v1/appointments/1", nil)
			if tt.header != "" {
				req.Header.Set(authorizationHeader, tt.header)
			}
			w := httptest.NewRecorder()
			ts.router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", w.Code)
			}
			if body := decodeError(t, w); body.Status != "error" || body.Code != http.StatusUnauthorized {
				t.Errorf("unexpected body %+v", body)
			}
		})
	}
}

func TestRoleMiddleware(t *testing.T) {
	ts := newTestServer()
	dto := domain.BookAppointmentDTO{SlotID: 1, TimeLabel: "09:00"}

	if w := ts.do(http.MethodPost, "/api/v1/appointments", "doctor-token", dto); w.Code != http.StatusForbidden {
		t.Errorf("doctor booking: expected 403, got %d", w.Code)
	}

	slot := domain.CreateSlotDTO{Date: "2024-03-18", StartTime: "09:00", EndTime: "12:00", SlotDuration: 30, SlotType: domain.SlotTypeIndividual}
	if w := ts.do(http.MethodPost, "/api/v1/slots", "patient-token", slot); w.Code != http.StatusForbidden {
		t.Errorf("patient creating slot: expected 403, got %d", w.Code)
	}

	if w := ts.do(http.MethodPost, "/api/v1/slots", "doctor-token", slot); w.Code != http.StatusCreated {
		t.Errorf("doctor creating slot: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if ts.slots.created.SlotDuration != 30 {
		t.Errorf("slot dto not passed to service: %+v", ts.slots.created)
	}
}

func TestBookAppointment(t *testing.T) {
	ts := newTestServer()

	w := ts.do(http.MethodPost, "/api/v1/appointments", "patient-token", domain.BookAppointmentDTO{SlotID: 3, TimeLabel: "09:30", Reason: "осмотр"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if ts.appointments.bookedBy != 100 || ts.appointments.booked.SlotID != 3 {
		t.Errorf("patient identity must come from the token, got %d %+v", ts.appointments.bookedBy, ts.appointments.booked)
	}

	var body struct {
		Data domain.Appointment `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.ID != 7 || body.Data.Status != domain.AppointmentStatusPending {
		t.Errorf("unexpected appointment %+v", body.Data)
	}
}

func TestBookAppointment_InvalidBody(t *testing.T) {
	ts := newTestServer()

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing slot", map[string]interface{}{"time_label": "09:00"}},
		{"bad clock", map[string]interface{}{"slot_id": 1, "time_label": "25:00"}},
		{"not json", "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/api/v1/appointments", "patient-token", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestHandleErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{domain.NotFound("запись не найдена"), http.StatusNotFound},
		{domain.Validation("неверные данные"), http.StatusBadRequest},
		{domain.Forbidden("нет доступа"), http.StatusForbidden},
		{domain.Conflict("это время уже занято"), http.StatusConflict},
		{domain.Unauthorized("требуется вход"), http.StatusUnauthorized},
		{errors.New("ошибка при отмене записи"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			ts := newTestServer()
			ts.appointments.err = tt.err

			w := ts.do(http.MethodDelete, "/api/v1/appointments/5", "patient-token", nil)
			if w.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, w.Code)
			}
			if body := decodeError(t, w); body.Message != tt.err.Error() {
				t.Errorf("expected message %q, got %q", tt.err.Error(), body.Message)
			}
		})
	}
}

func TestCancelAppointment(t *testing.T) {
	ts := newTestServer()

	if w := ts.do(http.MethodDelete, "/api/v1/appointments/5", "patient-token", nil); w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if w := ts.do(http.MethodDelete, "/api/v1/appointments/abc", "patient-token", nil); w.Code != http.StatusBadRequest {
		t.Errorf("invalid id: expected 400, got %d", w.Code)
	}
}

func TestGetDoctors_Pagination(t *testing.T) {
	ts := newTestServer()

	query := url.Values{
		"limit":      {"20"},
		"offset":     {"40"},
		"min_rating": {"4.5"},
		"sort_by":    {"fee"},
		"search":     {"терапевт"},
	}
	w := ts.do(http.MethodGet, "/api/v1/doctors?"+query.Encode(), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var page paginatedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.Page != 3 || page.PageSize != 20 || page.TotalCount != 45 || page.TotalPages != 3 {
		t.Errorf("unexpected pagination %+v", page)
	}

	f := ts.doctors.filter
	if f.Limit != 20 || f.Offset != 40 || f.SortBy != domain.DoctorSortFee {
		t.Errorf("unexpected filter %+v", f)
	}
	if f.MinRating == nil || *f.MinRating != 4.5 || f.Search == nil || *f.Search != "терапевт" {
		t.Errorf("query filters not parsed: %+v", f)
	}

	w = ts.do(http.MethodGet, "/api/v1/doctors?limit=1000&offset=-5", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ts.doctors.filter.Limit != maxPageSize || ts.doctors.filter.Offset != 0 {
		t.Errorf("limit must be clamped, got %+v", ts.doctors.filter)
	}

	if w := ts.do(http.MethodGet, "/api/v1/doctors?max_fee=cheap", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("invalid max_fee: expected 400, got %d", w.Code)
	}
}

func TestDoctorAvailability(t *testing.T) {
	ts := newTestServer()

	if w := ts.do(http.MethodGet, "/api/v1/doctors/1/availability", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing date: expected 400, got %d", w.Code)
	}
	if w := ts.do(http.MethodGet, "/api/v1/doctors/404/availability?date=2024-03-18", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown doctor: expected 404, got %d", w.Code)
	}

	w := ts.do(http.MethodGet, "/api/v1/doctors/1/availability?date=2024-03-18", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Data []domain.SlotAvailability `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Data) != 1 || len(body.Data[0].Available) != 2 {
		t.Errorf("unexpected availability %+v", body.Data)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/doctors", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS headers missing")
	}
}
