package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/config"
	"github.com/hackgods/clinic-queue/internal/identity"
	"github.com/hackgods/clinic-queue/internal/observability/metrics"
	"github.com/hackgods/clinic-queue/internal/schedule"
)

const (
	EventAppointmentBooked        = "APPOINTMENT_BOOKED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentCanceled      = "APPOINTMENT_CANCELED"
)

var (
	ErrPastDate              = errors.New("cannot book appointments in the past")
	ErrClinicClosedOnWeekday = errors.New("clinic is not open on this weekday")
	ErrClinicFullyBooked     = errors.New("clinic is fully booked")
	ErrBookingContention     = errors.New("clinic day is busy, please retry")
	ErrForbidden             = errors.New("forbidden")
	ErrAlreadyTerminal       = errors.New("appointment is already completed or canceled")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrNoBookedAppointments  = errors.New("no booked appointments found")
	ErrUnknownStatus         = errors.New("unknown appointment status")
	ErrInvalidPatient        = errors.New("patient id is required")
)

type Service struct {
	repo    Repository
	locker  DayLocker
	calc    *schedule.Calculator
	dir     identity.Directory
	cfg     config.Config
	log     *zap.Logger
	metrics *metrics.BookingMetrics
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

type Option func(*Service)

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the wall clock that defines "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, locker DayLocker, calc *schedule.Calculator, dir identity.Directory, cfg config.Config, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.BookingHorizonDays <= 0 {
		cfg.BookingHorizonDays = 30
	}
	if cfg.BookingMaxAttempts < 2 {
		cfg.BookingMaxAttempts = 2
	}

	s := &Service{
		repo:   repo,
		locker: locker,
		calc:   calc,
		dir:    dir,
		cfg:    cfg,
		log:    logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// today is the current calendar date in the configured time zone.
func (s *Service) today() time.Time {
	return schedule.DateOf(s.now().In(s.cfg.Location))
}

// clinicOf resolves the clinic profile owned by a clinic user.
func (s *Service) clinicOf(ctx context.Context, clinicUserID string) (*identity.ClinicProfile, error) {
	clinic, err := s.dir.ClinicByOwner(ctx, clinicUserID)
	if err != nil {
		if errors.Is(err, identity.ErrClinicNotFound) {
			return nil, fmt.Errorf("no clinic profile for this user: %w", err)
		}
		return nil, fmt.Errorf("load clinic profile: %w", err)
	}
	return clinic, nil
}

func (s *Service) clinicByID(ctx context.Context, clinicID uuid.UUID) (*identity.ClinicProfile, error) {
	clinic, err := s.dir.ClinicByID(ctx, clinicID)
	if err != nil {
		if errors.Is(err, identity.ErrClinicNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load clinic: %w", err)
	}
	return clinic, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("insert event log",
			zap.String("event_type", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
