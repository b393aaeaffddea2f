package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/identity"
	redisclient "github.com/hackgods/clinic-queue/internal/redis"
	"github.com/hackgods/clinic-queue/internal/schedule"
)

// FullyBookedError is returned when no slot of the day is free. Next holds
// the first day with free capacity inside the booking horizon, if any.
type FullyBookedError struct {
	Date time.Time
	Next NextAvailable
}

func (e *FullyBookedError) Error() string {
	msg := "clinic is fully booked on " + schedule.FormatDate(e.Date)
	if e.Next.Date != nil {
		return fmt.Sprintf("%s. Next available date: %s (%s)", msg, schedule.FormatDate(*e.Next.Date), e.Next.Date.Weekday())
	}
	return fmt.Sprintf("%s. No available dates found in the next %d days. Please contact the clinic directly", msg, e.Next.HorizonDays)
}

func (e *FullyBookedError) Is(target error) bool {
	return target == ErrClinicFullyBooked
}

var errNoFreeSlot = errors.New("no free slot")

// BookAppointment gives the patient the earliest free slot of the day and
// the next queue number. Slot choice, queue number and insert happen under
// the clinic day lock; a lost race is retried with a short backoff.
func (s *Service) BookAppointment(ctx context.Context, patientID string, clinicID uuid.UUID, date time.Time) (*Appointment, error) {
	start := s.now()
	appt, attempts, err := s.bookAppointment(ctx, patientID, clinicID, date)
	s.metrics.ObserveBooking(bookingOutcome(err), attempts, s.now().Sub(start).Seconds())
	return appt, err
}

func (s *Service) bookAppointment(ctx context.Context, patientID string, clinicID uuid.UUID, date time.Time) (*Appointment, int, error) {
	if patientID == "" {
		return nil, 0, ErrInvalidPatient
	}
	date = schedule.DateOf(date)

	clinic, err := s.clinicByID(ctx, clinicID)
	if err != nil {
		return nil, 0, err
	}

	if date.Before(s.today()) {
		return nil, 0, ErrPastDate
	}

	plan, err := s.calc.Plan(ctx, clinicID, date)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve schedule: %w", err)
	}
	if !plan.WorkingDayOpen() {
		return nil, 0, fmt.Errorf("%w (%ss)", ErrClinicClosedOnWeekday, date.Weekday())
	}
	if plan.Exception != nil {
		return nil, 0, &schedule.ClosedDateError{Date: date, Reason: plan.Exception.Reason}
	}

	slots, err := plan.Slots(clinic.SlotDurationMinutes)
	if err != nil {
		return nil, 0, err
	}

	var (
		created  *Appointment
		attempts int
	)
	for attempts = 1; ; attempts++ {
		created, err = s.allocate(ctx, clinicID, date, slots, patientID)
		if err == nil || !isTransient(err) {
			break
		}
		if attempts >= s.cfg.BookingMaxAttempts {
			s.log.Warn("booking gave up after contention",
				zap.String("clinic_id", clinicID.String()),
				zap.String("date", schedule.FormatDate(date)),
				zap.Int("attempts", attempts),
				zap.Error(err),
			)
			return nil, attempts, fmt.Errorf("%w: %v", ErrBookingContention, err)
		}
		s.log.Debug("retrying allocation",
			zap.String("clinic_id", clinicID.String()),
			zap.String("date", schedule.FormatDate(date)),
			zap.Int("attempt", attempts),
			zap.Error(err),
		)
		if serr := s.sleep(ctx, s.cfg.RetryBackoff*time.Duration(attempts)); serr != nil {
			return nil, attempts, serr
		}
	}

	if errors.Is(err, errNoFreeSlot) {
		next, nerr := s.scanAvailable(ctx, clinic, date.AddDate(0, 0, 1))
		if nerr != nil {
			return nil, attempts, nerr
		}
		return nil, attempts, &FullyBookedError{Date: date, Next: *next}
	}
	if err != nil {
		return nil, attempts, err
	}

	s.logEvent(ctx, created.ID, EventAppointmentBooked, map[string]any{
		"clinic_id":    clinicID.String(),
		"patient_id":   patientID,
		"date":         schedule.FormatDate(date),
		"time":         created.Time.String(),
		"queue_number": created.QueueNumber,
	})
	s.log.Info("appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("clinic_id", clinicID.String()),
		zap.String("date", schedule.FormatDate(date)),
		zap.Int("queue_number", created.QueueNumber),
	)

	return created, attempts, nil
}

// allocate runs one attempt of slot selection and insert inside the day lock.
func (s *Service) allocate(ctx context.Context, clinicID uuid.UUID, date time.Time, slots []schedule.Clock, patientID string) (*Appointment, error) {
	var created *Appointment

	err := s.locker.WithDayLock(ctx, clinicID, date, func(lockCtx context.Context) error {
		booked, err := s.repo.BookedSlotTimes(lockCtx, clinicID, date)
		if err != nil {
			return fmt.Errorf("load booked slots: %w", err)
		}

		slot, ok := schedule.FirstFreeSlot(slots, booked)
		if !ok {
			return errNoFreeSlot
		}

		appt, err := s.repo.Insert(lockCtx, Appointment{
			ID:        uuid.New(),
			ClinicID:  clinicID,
			PatientID: patientID,
			Date:      date,
			Time:      slot,
			Status:    StatusBooked,
		})
		if err != nil {
			return err
		}

		created = appt
		return nil
	})

	return created, err
}

func isTransient(err error) bool {
	return errors.Is(err, ErrAllocationConflict) || errors.Is(err, redisclient.ErrLockNotAcquired)
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "booked"
	case errors.Is(err, ErrClinicFullyBooked):
		return "fully_booked"
	case errors.Is(err, ErrBookingContention):
		return "contention"
	case errors.Is(err, ErrClinicClosedOnWeekday), errors.Is(err, schedule.ErrClinicClosedOnDate):
		return "closed"
	case errors.Is(err, ErrPastDate):
		return "past_date"
	case errors.Is(err, identity.ErrClinicNotFound):
		return "clinic_not_found"
	}
	return "error"
}

// CancelAppointment lets a patient cancel their own appointment. The slot
// becomes bookable again; the queue number is never reused.
func (s *Service) CancelAppointment(ctx context.Context, appointmentID uuid.UUID, patientID string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.PatientID != patientID {
		return nil, fmt.Errorf("%w: you can only cancel your own appointments", ErrForbidden)
	}

	switch appt.Status {
	case StatusCompleted:
		return nil, fmt.Errorf("%w: cannot cancel completed appointments", ErrAlreadyTerminal)
	case StatusCanceled:
		return nil, fmt.Errorf("%w: appointment is already canceled", ErrAlreadyTerminal)
	}

	// Patients may withdraw from any live status, including in_progress.
	updated, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Status, StatusCanceled)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.metrics.ObserveTransition(string(appt.Status), string(StatusCanceled))
	s.logEvent(ctx, updated.ID, EventAppointmentCanceled, map[string]any{
		"from":       string(appt.Status),
		"patient_id": patientID,
	})

	return updated, nil
}
