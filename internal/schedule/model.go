package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrWorkingDayNotFound   = errors.New("working day not found")
	ErrExceptionNotFound    = errors.New("schedule exception not found")
	ErrExceptionExists      = errors.New("schedule exception already exists for this date")
	ErrInvalidScheduleRange = errors.New("start time must be before end time")
	ErrOutOfDayRange        = errors.New("working hours must be within the 24-hour range")
	ErrInvalidWeekday       = errors.New("day of week must be between 0 (Sunday) and 6 (Saturday)")
	ErrDuplicateWeekday     = errors.New("day of week listed more than once")
	ErrInvalidSlotDuration  = errors.New("slot duration must be a positive number of minutes")
	ErrClinicClosedOnDate   = errors.New("clinic is closed on this date")
)

type WorkingDay struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	DayOfWeek time.Weekday
	StartTime Clock
	EndTime   Clock
	IsClosed  bool
}

// Validate checks the hours of an open day. Closed days carry no constraint.
func (d WorkingDay) Validate() error {
	if d.DayOfWeek < time.Sunday || d.DayOfWeek > time.Saturday {
		return ErrInvalidWeekday
	}
	if d.IsClosed {
		return nil
	}
	if d.StartTime >= d.EndTime {
		return fmt.Errorf("%w (%s): %s >= %s", ErrInvalidScheduleRange, d.DayOfWeek, d.StartTime, d.EndTime)
	}
	if d.StartTime < 0 || d.StartTime >= EndOfDay || d.EndTime > EndOfDay {
		return fmt.Errorf("%w (%s)", ErrOutOfDayRange, d.DayOfWeek)
	}
	return nil
}

func (d WorkingDay) WorkingMinutes() int {
	if d.IsClosed {
		return 0
	}
	return int(d.EndTime - d.StartTime)
}

// Exception is a full-day closure overriding the weekly pattern.
type Exception struct {
	ID       uuid.UUID
	ClinicID uuid.UUID
	Date     time.Time
	Reason   string
}

// ClosedDateError reports a booking attempt on a date covered by an exception.
type ClosedDateError struct {
	Date   time.Time
	Reason string
}

func (e *ClosedDateError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "Holiday/Closure"
	}
	return fmt.Sprintf("clinic is closed on %s. Reason: %s", FormatDate(e.Date), reason)
}

func (e *ClosedDateError) Is(target error) bool {
	return target == ErrClinicClosedOnDate
}

// DayPlan is the resolved schedule of one clinic on one calendar date.
type DayPlan struct {
	ClinicID   uuid.UUID
	Date       time.Time
	WorkingDay *WorkingDay
	Exception  *Exception
}

func (p DayPlan) WorkingDayOpen() bool {
	return p.WorkingDay != nil && !p.WorkingDay.IsClosed
}

func (p DayPlan) Open() bool {
	return p.Exception == nil && p.WorkingDayOpen()
}
