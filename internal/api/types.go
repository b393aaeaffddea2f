package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue/internal/appointment"
	"github.com/hackgods/clinic-queue/internal/schedule"
)

// Requests

type BookAppointmentRequest struct {
	ClinicID string `json:"clinic_id"`
	Date     string `json:"date"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type WorkingDayRequest struct {
	DayOfWeek int            `json:"day_of_week"`
	StartTime schedule.Clock `json:"start_time"`
	EndTime   schedule.Clock `json:"end_time"`
	IsClosed  bool           `json:"is_closed"`
}

type ReplaceWorkingDaysRequest struct {
	WorkingDays []WorkingDayRequest `json:"working_days"`
}

type ExceptionRequest struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// Responses

type AppointmentResponse struct {
	ID          uuid.UUID      `json:"id"`
	ClinicID    uuid.UUID      `json:"clinic_id"`
	PatientID   string         `json:"patient_id"`
	Date        string         `json:"appointment_date"`
	Time        schedule.Clock `json:"appointment_time"`
	QueueNumber int            `json:"queue_number"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type WaitTimeResponse struct {
	AppointmentID        uuid.UUID `json:"appointment_id"`
	QueueNumber          int       `json:"queue_number"`
	CurrentQueueNumber   int       `json:"current_queue_number"`
	PeopleAhead          int       `json:"people_ahead"`
	EstimatedWaitMinutes int       `json:"estimated_wait_minutes"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	DoctorName  string           `json:"doctor_name"`
	Specialty   string           `json:"specialty"`
	PatientName string           `json:"patient_name,omitempty"`
	Wait        WaitTimeResponse `json:"wait"`
}

type StatusCountsResponse struct {
	Total      int `json:"total"`
	Booked     int `json:"booked"`
	InProgress int `json:"in_progress"`
	Delayed    int `json:"delayed"`
	Completed  int `json:"completed"`
	Canceled   int `json:"canceled"`
}

type DayQueueResponse struct {
	ClinicID           uuid.UUID             `json:"clinic_id"`
	DoctorName         string                `json:"doctor_name"`
	Date               string                `json:"date"`
	CurrentQueueNumber int                   `json:"current_queue_number"`
	Counts             StatusCountsResponse  `json:"counts"`
	Appointments       []AppointmentResponse `json:"appointments"`
}

type DaySummaryResponse struct {
	Date            string               `json:"date"`
	DayOfWeek       string               `json:"day_of_week"`
	Counts          StatusCountsResponse `json:"counts"`
	MaxCapacity     int                  `json:"max_capacity"`
	AvailableSlots  int                  `json:"available_slots"`
	IsWorkingDay    bool                 `json:"is_working_day"`
	HasException    bool                 `json:"has_exception"`
	ExceptionReason string               `json:"exception_reason,omitempty"`
	StartTime       *schedule.Clock      `json:"start_time,omitempty"`
	EndTime         *schedule.Clock      `json:"end_time,omitempty"`
}

type WeeklyQueueResponse struct {
	ClinicID          uuid.UUID            `json:"clinic_id"`
	DoctorName        string               `json:"doctor_name"`
	StartDate         string               `json:"start_date"`
	EndDate           string               `json:"end_date"`
	Days              []DaySummaryResponse `json:"days"`
	TotalAppointments int                  `json:"total_appointments"`
	BusyDays          []string             `json:"busy_days"`
}

type PatientHistoryResponse struct {
	PatientID    string                `json:"patient_id"`
	Total        int                   `json:"total"`
	Completed    int                   `json:"completed"`
	Canceled     int                   `json:"canceled"`
	Appointments []AppointmentResponse `json:"appointments"`
}

type NextAvailableResponse struct {
	Available      bool            `json:"available"`
	Date           string          `json:"date,omitempty"`
	DayOfWeek      string          `json:"day_of_week,omitempty"`
	StartTime      *schedule.Clock `json:"start_time,omitempty"`
	EndTime        *schedule.Clock `json:"end_time,omitempty"`
	AvailableSlots int             `json:"available_slots"`
	Message        string          `json:"message"`
}

type CurrentQueueResponse struct {
	ClinicID           uuid.UUID `json:"clinic_id"`
	Date               string    `json:"date"`
	CurrentQueueNumber int       `json:"current_queue_number"`
}

type WorkingDayResponse struct {
	ID             uuid.UUID      `json:"id"`
	ClinicID       uuid.UUID      `json:"clinic_id"`
	DayOfWeek      int            `json:"day_of_week"`
	DayName        string         `json:"day_name"`
	StartTime      schedule.Clock `json:"start_time"`
	EndTime        schedule.Clock `json:"end_time"`
	IsClosed       bool           `json:"is_closed"`
	WorkingMinutes int            `json:"working_minutes"`
}

type ExceptionResponse struct {
	ID       uuid.UUID `json:"id"`
	ClinicID uuid.UUID `json:"clinic_id"`
	Date     string    `json:"date"`
	Reason   string    `json:"reason"`
}

type AvailabilityResponse struct {
	ClinicID    uuid.UUID `json:"clinic_id"`
	Date        string    `json:"date"`
	IsAvailable bool      `json:"is_available"`
	IsException bool      `json:"is_exception"`
}

type CapacityResponse struct {
	ClinicID            uuid.UUID `json:"clinic_id"`
	Date                string    `json:"date"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
	Capacity            int       `json:"capacity"`
}

// Mappers

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		ClinicID:    a.ClinicID,
		PatientID:   a.PatientID,
		Date:        schedule.FormatDate(a.Date),
		Time:        a.Time,
		QueueNumber: a.QueueNumber,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func toAppointmentList(appts []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

func toWaitTimeResponse(w appointment.WaitEstimate) WaitTimeResponse {
	return WaitTimeResponse{
		AppointmentID:        w.AppointmentID,
		QueueNumber:          w.QueueNumber,
		CurrentQueueNumber:   w.CurrentQueueNumber,
		PeopleAhead:          w.PeopleAhead,
		EstimatedWaitMinutes: w.EstimatedWaitMinutes,
	}
}

func toStatusCounts(c appointment.StatusCounts) StatusCountsResponse {
	return StatusCountsResponse(c)
}

func toWeeklyQueueResponse(w *appointment.WeeklyQueue) WeeklyQueueResponse {
	resp := WeeklyQueueResponse{
		ClinicID:          w.ClinicID,
		DoctorName:        w.DoctorName,
		StartDate:         schedule.FormatDate(w.StartDate),
		EndDate:           schedule.FormatDate(w.EndDate),
		Days:              make([]DaySummaryResponse, 0, len(w.Days)),
		TotalAppointments: w.TotalAppointments,
		BusyDays:          make([]string, 0, len(w.BusyDays)),
	}
	for _, d := range w.Days {
		resp.Days = append(resp.Days, DaySummaryResponse{
			Date:            schedule.FormatDate(d.Date),
			DayOfWeek:       d.Date.Weekday().String(),
			Counts:          toStatusCounts(d.Counts),
			MaxCapacity:     d.MaxCapacity,
			AvailableSlots:  d.AvailableSlots,
			IsWorkingDay:    d.IsWorkingDay,
			HasException:    d.HasException,
			ExceptionReason: d.ExceptionReason,
			StartTime:       d.StartTime,
			EndTime:         d.EndTime,
		})
	}
	for _, d := range w.BusyDays {
		resp.BusyDays = append(resp.BusyDays, schedule.FormatDate(d))
	}
	return resp
}

func toNextAvailableResponse(n *appointment.NextAvailable) NextAvailableResponse {
	resp := NextAvailableResponse{
		Available:      n.Date != nil,
		StartTime:      n.StartTime,
		EndTime:        n.EndTime,
		AvailableSlots: n.AvailableSlots,
		Message:        n.Message(),
	}
	if n.Date != nil {
		resp.Date = schedule.FormatDate(*n.Date)
		resp.DayOfWeek = n.Date.Weekday().String()
	}
	return resp
}

func toWorkingDayResponse(d schedule.WorkingDay) WorkingDayResponse {
	return WorkingDayResponse{
		ID:             d.ID,
		ClinicID:       d.ClinicID,
		DayOfWeek:      int(d.DayOfWeek),
		DayName:        d.DayOfWeek.String(),
		StartTime:      d.StartTime,
		EndTime:        d.EndTime,
		IsClosed:       d.IsClosed,
		WorkingMinutes: d.WorkingMinutes(),
	}
}

func toExceptionResponse(e schedule.Exception) ExceptionResponse {
	return ExceptionResponse{
		ID:       e.ID,
		ClinicID: e.ClinicID,
		Date:     schedule.FormatDate(e.Date),
		Reason:   e.Reason,
	}
}
