package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-queue/internal/schedule"
)

func (h *Handler) listWorkingDays(w http.ResponseWriter, r *http.Request) {
	clinic, ok := h.clinicFor(w, r)
	if !ok {
		return
	}
	days, err := h.schedules.ListWorkingDays(r.Context(), clinic.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]WorkingDayResponse, 0, len(days))
	for _, d := range days {
		out = append(out, toWorkingDayResponse(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getWorkingDay(w http.ResponseWriter, r *http.Request) {
	clinic, ok := h.clinicFor(w, r)
	if !ok {
		return
	}
	day, err := strconv.Atoi(chi.URLParam(r, "dayOfWeek"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_day_of_week", "dayOfWeek must be 0 (Sunday) to 6 (Saturday)")
		return
	}

	wd, err := h.schedules.GetWorkingDay(r.Context(), clinic.ID, time.Weekday(day))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkingDayResponse(*wd))
}

func (h *Handler) replaceWorkingDays(w http.ResponseWriter, r *http.Request) {
	clinic, ok := h.clinicFor(w, r)
	if !ok {
		return
	}
	var req ReplaceWorkingDaysRequest
	if !decodeBody(w, r, &req) {
		return
	}

	days := make([]schedule.WorkingDay, 0, len(req.WorkingDays))
	for _, d := range req.WorkingDays {
		days = append(days, schedule.WorkingDay{
			ClinicID:  clinic.ID,
			DayOfWeek: time.Weekday(d.DayOfWeek),
			StartTime: d.StartTime,
			EndTime:   d.EndTime,
			IsClosed:  d.IsClosed,
		})
	}

	updated, err := h.schedules.ReplaceWorkingDays(r.Context(), clinic.ID, days)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]WorkingDayResponse, 0, len(updated))
	for _, d := range updated {
		out = append(out, toWorkingDayResponse(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) updateWorkingDay(w http.ResponseWriter, r *http.Request) {
	clinic, ok := h.clinicFor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req WorkingDayRequest
	if !decodeBody(w, r, &req) {
		return
	}

	updated, err := h.schedules.UpdateWorkingDay(r.Context(), clinic.ID, id, req.StartTime, req.EndTime, req.IsClosed)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkingDayResponse(*updated))
}

func (h *Handler) listExceptions(w http.ResponseWriter, r *http.Request) {
	clinic, ok := h.clinicFor(w, r)
	if !ok {
		return
	}

	var from *time.Time
	if r.URL.Query().Get("upcoming") == "true" {
		today := h.today()
		from = &today
	}

	exceptions, err := h.schedules.ListExceptions(r.Context(), clinic.ID, from)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]ExceptionResponse, 0, len(exceptions))
	for _, e := range exceptions {
		out = append(out, toExceptionResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getExceptionByDate(w http.ResponseWriter, r *http.Request) {
	clinic, ok := h.clinicFor(w, r)
	if !ok {
		return
	}
	date, ok := h.dateParam(w, r, "date")
	if !ok {
		return
	}
	ex, err := h.schedules.GetException(r.Context(), clinic.ID, date)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExceptionResponse(*ex))
}

// decodeException reads an exception body; the date is required.
func decodeException(w http.ResponseWriter, r *http.Request) (time.Time, string, bool) {
	var req ExceptionRequest
	if !decodeBody(w, r, &req) {
		return time.Time{}, "", false
	}
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, "", false
	}
	return date, req.Reason, true
}

func (h *Handler) addException(w http.ResponseWriter, r *http.Request) {
	clinic, ok := h.clinicFor(w, r)
	if !ok {
		return
	}
	date, reason, ok := decodeException(w, r)
	if !ok {
		return
	}
	ex, err := h.schedules.AddException(r.Context(), clinic.ID, date, reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExceptionResponse(*ex))
}

// upsertException sets the closure reason for a date, creating it if needed.
func (h *Handler) upsertException(w http.ResponseWriter, r *http.Request) {
	clinic, ok := h.clinicFor(w, r)
	if !ok {
		return
	}
	date, reason, ok := decodeException(w, r)
	if !ok {
		return
	}
	ex, err := h.schedules.UpsertException(r.Context(), clinic.ID, date, reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExceptionResponse(*ex))
}

func (h *Handler) updateException(w http.ResponseWriter, r *http.Request) {
	clinic, ok := h.clinicFor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	date, reason, ok := decodeException(w, r)
	if !ok {
		return
	}
	ex, err := h.schedules.UpdateException(r.Context(), clinic.ID, id, date, reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExceptionResponse(*ex))
}

func (h *Handler) deleteException(w http.ResponseWriter, r *http.Request) {
	clinic, ok := h.clinicFor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.schedules.DeleteException(r.Context(), clinic.ID, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Public schedule lookups

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := uuidParam(w, r, "clinicId")
	if !ok {
		return
	}
	date, ok := h.dateParam(w, r, "date")
	if !ok {
		return
	}

	if _, err := h.dir.ClinicByID(r.Context(), clinicID); err != nil {
		h.respondError(w, r, err)
		return
	}
	available, err := h.calc.IsAvailable(r.Context(), clinicID, date)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	isException, err := h.schedules.IsException(r.Context(), clinicID, date)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{
		ClinicID:    clinicID,
		Date:        schedule.FormatDate(date),
		IsAvailable: available,
		IsException: isException,
	})
}

func (h *Handler) capacity(w http.ResponseWriter, r *http.Request) {
	clinicID, ok := uuidParam(w, r, "clinicId")
	if !ok {
		return
	}
	date, ok := h.dateParam(w, r, "date")
	if !ok {
		return
	}

	clinic, err := h.dir.ClinicByID(r.Context(), clinicID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	capacity, err := h.calc.DailyCapacity(r.Context(), clinic.ID, date, clinic.SlotDurationMinutes)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CapacityResponse{
		ClinicID:            clinic.ID,
		Date:                schedule.FormatDate(date),
		SlotDurationMinutes: clinic.SlotDurationMinutes,
		Capacity:            capacity,
	})
}
