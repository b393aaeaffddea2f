package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/appointment"
	"github.com/hackgods/clinic-queue/internal/identity"
	"github.com/hackgods/clinic-queue/internal/schedule"
)

// Handler serves the appointment and schedule routes.
type Handler struct {
	appointments *appointment.Service
	schedules    *schedule.Service
	calc         *schedule.Calculator
	dir          identity.Directory
	log          *zap.Logger
	loc          *time.Location
	now          func() time.Time
}

func NewHandler(appointments *appointment.Service, schedules *schedule.Service, calc *schedule.Calculator, dir identity.Directory, loc *time.Location, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		appointments: appointments,
		schedules:    schedules,
		calc:         calc,
		dir:          dir,
		log:          logger,
		loc:          loc,
		now:          time.Now,
	}
}

// Request helpers

func (h *Handler) today() time.Time {
	return schedule.DateOf(h.now().In(h.loc))
}

// dateParam reads a YYYY-MM-DD query parameter, defaulting to today.
func (h *Handler) dateParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return h.today(), true
	}
	date, err := schedule.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", name+" must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON: "+err.Error())
		return false
	}
	return true
}

func caller(r *http.Request) identity.Principal {
	p, _ := identity.PrincipalFromContext(r.Context())
	return p
}

// clinicFor resolves the clinic owned by the calling clinic user.
func (h *Handler) clinicFor(w http.ResponseWriter, r *http.Request) (*identity.ClinicProfile, bool) {
	clinic, err := h.dir.ClinicByOwner(r.Context(), caller(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return nil, false
	}
	return clinic, true
}

// Appointment handlers

func (h *Handler) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	clinicID, err := uuid.Parse(req.ClinicID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
		return
	}
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	appt, err := h.appointments.BookAppointment(r.Context(), caller(r).UserID, clinicID, date)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
}

func (h *Handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.appointments.GetAppointmentDetails(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AppointmentDetailResponse{
		AppointmentResponse: toAppointmentResponse(detail.Appointment),
		DoctorName:          detail.DoctorName,
		Specialty:           detail.Specialty,
		PatientName:         detail.PatientName,
		Wait:                toWaitTimeResponse(detail.Wait),
	})
}

func (h *Handler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	appt, err := h.appointments.CancelAppointment(r.Context(), id, caller(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	status, err := appointment.ParseStatus(req.Status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	appt, err := h.appointments.UpdateStatus(r.Context(), id, caller(r).UserID, status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

// setStatus backs the start, complete and delay shortcuts.
func (h *Handler) setStatus(status appointment.AppointmentStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		appt, err := h.appointments.UpdateStatus(r.Context(), id, caller(r).UserID, status)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func (h *Handler) callNextPatient(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r, "date")
	if !ok {
		return
	}
	appt, err := h.appointments.CallNextPatient(r.Context(), caller(r).UserID, date)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *Handler) clinicQueue(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r, "date")
	if !ok {
		return
	}
	q, err := h.appointments.ClinicQueue(r.Context(), caller(r).UserID, date)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DayQueueResponse{
		ClinicID:           q.ClinicID,
		DoctorName:         q.DoctorName,
		Date:               schedule.FormatDate(q.Date),
		CurrentQueueNumber: q.CurrentQueueNumber,
		Counts:             toStatusCounts(q.Counts),
		Appointments:       toAppointmentList(q.Appointments),
	})
}

func (h *Handler) weeklyQueue(w http.ResponseWriter, r *http.Request) {
	start, ok := h.dateParam(w, r, "startDate")
	if !ok {
		return
	}
	week, err := h.appointments.WeeklyQueue(r.Context(), caller(r).UserID, start)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeeklyQueueResponse(week))
}

func (h *Handler) clinicAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := h.appointments.ClinicAppointments(r.Context(), caller(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentList(appts))
}

func (h *Handler) currentQueueNumber(w http.ResponseWriter, r *http.Request) {
	clinicID, err := uuid.Parse(r.URL.Query().Get("clinicId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinicId must be a valid UUID")
		return
	}
	date, ok := h.dateParam(w, r, "date")
	if !ok {
		return
	}
	current, err := h.appointments.CurrentQueueNumber(r.Context(), clinicID, date)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CurrentQueueResponse{
		ClinicID:           clinicID,
		Date:               schedule.FormatDate(date),
		CurrentQueueNumber: current,
	})
}

func (h *Handler) patientHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.appointments.PatientHistory(r.Context(), caller(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PatientHistoryResponse{
		PatientID:    history.PatientID,
		Total:        history.Total,
		Completed:    history.Completed,
		Canceled:     history.Canceled,
		Appointments: toAppointmentList(history.Appointments),
	})
}

func (h *Handler) patientUpcoming(w http.ResponseWriter, r *http.Request) {
	appts, err := h.appointments.PatientUpcoming(r.Context(), caller(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentList(appts))
}

func (h *Handler) patientPast(w http.ResponseWriter, r *http.Request) {
	appts, err := h.appointments.PatientPast(r.Context(), caller(r).UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentList(appts))
}

func (h *Handler) waitTime(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	est, err := h.appointments.WaitEstimate(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWaitTimeResponse(*est))
}

func (h *Handler) nextAvailable(w http.ResponseWriter, r *http.Request) {
	clinicID, err := uuid.Parse(r.URL.Query().Get("clinicId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinicId must be a valid UUID")
		return
	}
	from, ok := h.dateParam(w, r, "fromDate")
	if !ok {
		return
	}
	next, err := h.appointments.NextAvailableDate(r.Context(), clinicID, from)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNextAvailableResponse(next))
}
