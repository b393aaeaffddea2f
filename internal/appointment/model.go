package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue/internal/schedule"
)

type AppointmentStatus string

const (
	StatusBooked     AppointmentStatus = "booked"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusDelayed    AppointmentStatus = "delayed"
	StatusCanceled   AppointmentStatus = "canceled"
	StatusCompleted  AppointmentStatus = "completed"
)

var allStatuses = []AppointmentStatus{
	StatusBooked,
	StatusInProgress,
	StatusDelayed,
	StatusCanceled,
	StatusCompleted,
}

func ParseStatus(s string) (AppointmentStatus, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Terminal statuses accept no further transitions.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// OccupiesSlot reports whether an appointment in this status holds its time slot.
func (s AppointmentStatus) OccupiesSlot() bool {
	return s != StatusCanceled
}

type Appointment struct {
	ID          uuid.UUID
	ClinicID    uuid.UUID
	PatientID   string
	Date        time.Time
	Time        schedule.Clock
	QueueNumber int
	Status      AppointmentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// WaitEstimate is a linear model: every queue number ahead costs one slot.
type WaitEstimate struct {
	AppointmentID        uuid.UUID
	QueueNumber          int
	CurrentQueueNumber   int
	PeopleAhead          int
	EstimatedWaitMinutes int
}

type AppointmentDetail struct {
	Appointment
	DoctorName  string
	Specialty   string
	PatientName string
	Wait        WaitEstimate
}

type StatusCounts struct {
	Total      int
	Booked     int
	InProgress int
	Delayed    int
	Completed  int
	Canceled   int
}

func countStatuses(appts []Appointment) StatusCounts {
	c := StatusCounts{Total: len(appts)}
	for _, a := range appts {
		switch a.Status {
		case StatusBooked:
			c.Booked++
		case StatusInProgress:
			c.InProgress++
		case StatusDelayed:
			c.Delayed++
		case StatusCompleted:
			c.Completed++
		case StatusCanceled:
			c.Canceled++
		}
	}
	return c
}

// Active counts every appointment that still holds a slot.
func (c StatusCounts) Active() int {
	return c.Total - c.Canceled
}

type DayQueue struct {
	ClinicID           uuid.UUID
	DoctorName         string
	Date               time.Time
	CurrentQueueNumber int
	Counts             StatusCounts
	Appointments       []Appointment
}

type DaySummary struct {
	Date            time.Time
	Counts          StatusCounts
	MaxCapacity     int
	AvailableSlots  int
	IsWorkingDay    bool
	HasException    bool
	ExceptionReason string
	StartTime       *schedule.Clock
	EndTime         *schedule.Clock
}

type WeeklyQueue struct {
	ClinicID          uuid.UUID
	DoctorName        string
	StartDate         time.Time
	EndDate           time.Time
	Days              []DaySummary
	TotalAppointments int
	BusyDays          []time.Time
}

type PatientHistory struct {
	PatientID    string
	Total        int
	Completed    int
	Canceled     int
	Appointments []Appointment
}

// NextAvailable is the outcome of a forward scan. Date is nil when the
// horizon holds no free day.
type NextAvailable struct {
	Date           *time.Time
	StartTime      *schedule.Clock
	EndTime        *schedule.Clock
	AvailableSlots int
	HorizonDays    int
}

func (n NextAvailable) Message() string {
	if n.Date == nil {
		return fmt.Sprintf("No available dates found in the next %d days. Please contact the clinic directly", n.HorizonDays)
	}
	return "Next available date: " + n.Date.Format("Monday, January 02, 2006")
}
