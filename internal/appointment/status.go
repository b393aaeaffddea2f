package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/schedule"
)

const callNextAttempts = 3

// UpdateStatus moves an appointment of the caller's clinic to newStatus.
// Re-applying the current status is accepted and writes nothing.
func (s *Service) UpdateStatus(ctx context.Context, appointmentID uuid.UUID, clinicUserID string, newStatus AppointmentStatus) (*Appointment, error) {
	if _, known := transitions[newStatus]; !known {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, newStatus)
	}

	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	clinic, err := s.clinicOf(ctx, clinicUserID)
	if err != nil {
		return nil, err
	}
	if appt.ClinicID != clinic.ID {
		return nil, fmt.Errorf("%w: you can only update appointments for your own clinic", ErrForbidden)
	}

	if appt.Status == newStatus {
		return appt, nil
	}
	if err := validateTransition(appt.Status, newStatus); err != nil {
		return nil, err
	}

	return s.applyStatus(ctx, appt, newStatus)
}

func (s *Service) Start(ctx context.Context, appointmentID uuid.UUID, clinicUserID string) (*Appointment, error) {
	return s.UpdateStatus(ctx, appointmentID, clinicUserID, StatusInProgress)
}

func (s *Service) Complete(ctx context.Context, appointmentID uuid.UUID, clinicUserID string) (*Appointment, error) {
	return s.UpdateStatus(ctx, appointmentID, clinicUserID, StatusCompleted)
}

func (s *Service) Delay(ctx context.Context, appointmentID uuid.UUID, clinicUserID string) (*Appointment, error) {
	return s.UpdateStatus(ctx, appointmentID, clinicUserID, StatusDelayed)
}

func (s *Service) applyStatus(ctx context.Context, appt *Appointment, to AppointmentStatus) (*Appointment, error) {
	updated, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.metrics.ObserveTransition(string(appt.Status), string(to))
	s.logEvent(ctx, updated.ID, EventAppointmentStatusChanged, map[string]any{
		"from": string(appt.Status),
		"to":   string(to),
	})
	s.log.Debug("appointment status changed",
		zap.String("appointment_id", updated.ID.String()),
		zap.String("from", string(appt.Status)),
		zap.String("to", string(to)),
	)

	return updated, nil
}

// CallNextPatient starts the booked appointment with the earliest time
// (lowest queue number on ties) of the caller's clinic on date.
func (s *Service) CallNextPatient(ctx context.Context, clinicUserID string, date time.Time) (*Appointment, error) {
	clinic, err := s.clinicOf(ctx, clinicUserID)
	if err != nil {
		return nil, err
	}
	date = schedule.DateOf(date)

	for i := 0; i < callNextAttempts; i++ {
		next, err := s.repo.NextBooked(ctx, clinic.ID, date)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return nil, ErrNoBookedAppointments
			}
			return nil, fmt.Errorf("find next booked appointment: %w", err)
		}

		updated, err := s.applyStatus(ctx, next, StatusInProgress)
		if errors.Is(err, ErrStatusConflict) {
			// someone else moved it first; pick again
			continue
		}
		return updated, err
	}
	return nil, ErrStatusConflict
}

func (s *Service) CurrentQueueNumber(ctx context.Context, clinicID uuid.UUID, date time.Time) (int, error) {
	return s.repo.CurrentQueueNumber(ctx, clinicID, schedule.DateOf(date))
}

// WaitEstimate counts queue numbers ahead of the appointment and charges
// one slot duration for each of them.
func (s *Service) WaitEstimate(ctx context.Context, appointmentID uuid.UUID) (*WaitEstimate, error) {
	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	clinic, err := s.clinicByID(ctx, appt.ClinicID)
	if err != nil {
		return nil, err
	}

	return s.estimate(ctx, appt, clinic.SlotDurationMinutes)
}

func (s *Service) estimate(ctx context.Context, appt *Appointment, slotDurationMinutes int) (*WaitEstimate, error) {
	current, err := s.repo.CurrentQueueNumber(ctx, appt.ClinicID, appt.Date)
	if err != nil {
		return nil, err
	}

	ahead := max(0, appt.QueueNumber-current)
	return &WaitEstimate{
		AppointmentID:        appt.ID,
		QueueNumber:          appt.QueueNumber,
		CurrentQueueNumber:   current,
		PeopleAhead:          ahead,
		EstimatedWaitMinutes: ahead * slotDurationMinutes,
	}, nil
}
