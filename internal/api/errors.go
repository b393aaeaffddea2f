package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/appointment"
	"github.com/hackgods/clinic-queue/internal/identity"
	redisclient "github.com/hackgods/clinic-queue/internal/redis"
	"github.com/hackgods/clinic-queue/internal/schedule"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorTable is checked in order; the first errors.Is match wins.
var errorTable = []errorMapping{
	{appointment.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
	{identity.ErrClinicNotFound, http.StatusNotFound, "clinic_not_found"},
	{schedule.ErrWorkingDayNotFound, http.StatusNotFound, "working_day_not_found"},
	{schedule.ErrExceptionNotFound, http.StatusNotFound, "exception_not_found"},

	{appointment.ErrForbidden, http.StatusForbidden, "forbidden"},
	{schedule.ErrNotOwner, http.StatusForbidden, "forbidden"},

	{appointment.ErrPastDate, http.StatusBadRequest, "past_date"},
	{appointment.ErrClinicFullyBooked, http.StatusBadRequest, "clinic_fully_booked"},
	{appointment.ErrClinicClosedOnWeekday, http.StatusBadRequest, "clinic_closed"},
	{schedule.ErrClinicClosedOnDate, http.StatusBadRequest, "clinic_closed"},
	{appointment.ErrAlreadyTerminal, http.StatusBadRequest, "appointment_terminal"},
	{appointment.ErrInvalidTransition, http.StatusBadRequest, "invalid_status_transition"},
	{appointment.ErrUnknownStatus, http.StatusBadRequest, "invalid_status"},
	{appointment.ErrNoBookedAppointments, http.StatusBadRequest, "no_booked_appointments"},
	{appointment.ErrInvalidPatient, http.StatusBadRequest, "invalid_patient"},
	{schedule.ErrExceptionExists, http.StatusBadRequest, "exception_exists"},
	{schedule.ErrInvalidScheduleRange, http.StatusBadRequest, "invalid_schedule"},
	{schedule.ErrOutOfDayRange, http.StatusBadRequest, "invalid_schedule"},
	{schedule.ErrInvalidWeekday, http.StatusBadRequest, "invalid_schedule"},
	{schedule.ErrDuplicateWeekday, http.StatusBadRequest, "invalid_schedule"},
	{schedule.ErrInvalidSlotDuration, http.StatusBadRequest, "invalid_slot_duration"},

	{appointment.ErrBookingContention, http.StatusConflict, "booking_contention"},
	{appointment.ErrStatusConflict, http.StatusConflict, "status_conflict"},
	{redisclient.ErrLockNotAcquired, http.StatusConflict, "booking_contention"},
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: msg}})
}

// respondError maps a service error to its HTTP status. Unmapped errors are
// logged with the request id and hidden behind a generic body.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			h.log.Debug("request rejected",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.String("code", m.code),
				zap.Error(err),
			)
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}

	h.log.Error("request failed",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
