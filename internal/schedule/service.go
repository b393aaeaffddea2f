package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotOwner = errors.New("schedule entry belongs to another clinic")

// Service applies clinic-owner schedule changes and keeps the capacity
// cache consistent with them.
type Service struct {
	store Store
	calc  *Calculator
	log   *zap.Logger
}

func NewService(store Store, calc *Calculator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store: store,
		calc:  calc,
		log:   logger,
	}
}

func (s *Service) ListWorkingDays(ctx context.Context, clinicID uuid.UUID) ([]WorkingDay, error) {
	days, err := s.store.ListWorkingDays(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("list working days: %w", err)
	}
	return days, nil
}

func (s *Service) GetWorkingDay(ctx context.Context, clinicID uuid.UUID, day time.Weekday) (*WorkingDay, error) {
	if day < time.Sunday || day > time.Saturday {
		return nil, ErrInvalidWeekday
	}
	return s.store.GetWorkingDay(ctx, clinicID, day)
}

// ReplaceWorkingDays swaps the whole weekly table. Every day is validated
// before anything is written, so a bad day leaves the old week in place.
func (s *Service) ReplaceWorkingDays(ctx context.Context, clinicID uuid.UUID, days []WorkingDay) ([]WorkingDay, error) {
	seen := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if seen[d.DayOfWeek] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateWeekday, d.DayOfWeek)
		}
		seen[d.DayOfWeek] = true
	}

	updated, err := s.store.ReplaceWorkingDays(ctx, clinicID, days)
	if err != nil {
		return nil, fmt.Errorf("replace working days: %w", err)
	}
	s.calc.Invalidate(ctx, clinicID)

	s.log.Info("working days replaced",
		zap.String("clinic_id", clinicID.String()),
		zap.Int("days", len(updated)))
	return updated, nil
}

func (s *Service) UpdateWorkingDay(ctx context.Context, clinicID, workingDayID uuid.UUID, start, end Clock, closed bool) (*WorkingDay, error) {
	existing, err := s.store.GetWorkingDayByID(ctx, workingDayID)
	if err != nil {
		return nil, err
	}
	if existing.ClinicID != clinicID {
		return nil, ErrNotOwner
	}

	existing.StartTime = start
	existing.EndTime = end
	existing.IsClosed = closed
	if err := existing.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateWorkingDay(ctx, *existing)
	if err != nil {
		return nil, fmt.Errorf("update working day: %w", err)
	}
	s.calc.Invalidate(ctx, clinicID)
	return updated, nil
}

func (s *Service) IsException(ctx context.Context, clinicID uuid.UUID, date time.Time) (bool, error) {
	_, err := s.store.GetException(ctx, clinicID, date)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrExceptionNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("load exception: %w", err)
	}
}

func (s *Service) GetException(ctx context.Context, clinicID uuid.UUID, date time.Time) (*Exception, error) {
	return s.store.GetException(ctx, clinicID, date)
}

// ListExceptions returns the clinic's exceptions ordered by date. Exceptions
// never expire, so callers wanting upcoming closures pass from.
func (s *Service) ListExceptions(ctx context.Context, clinicID uuid.UUID, from *time.Time) ([]Exception, error) {
	all, err := s.store.ListExceptions(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	if from == nil {
		return all, nil
	}

	cutoff := DateOf(*from)
	out := make([]Exception, 0, len(all))
	for _, ex := range all {
		if !ex.Date.Before(cutoff) {
			out = append(out, ex)
		}
	}
	return out, nil
}

// AddException records a closure; a second closure on the same date is rejected.
func (s *Service) AddException(ctx context.Context, clinicID uuid.UUID, date time.Time, reason string) (*Exception, error) {
	ex, err := s.store.InsertException(ctx, Exception{ClinicID: clinicID, Date: DateOf(date), Reason: reason})
	if err != nil {
		if errors.Is(err, ErrExceptionExists) {
			return nil, fmt.Errorf("%w: %s", ErrExceptionExists, FormatDate(date))
		}
		return nil, err
	}
	s.calc.Invalidate(ctx, clinicID)
	return ex, nil
}

func (s *Service) UpsertException(ctx context.Context, clinicID uuid.UUID, date time.Time, reason string) (*Exception, error) {
	ex, err := s.store.UpsertException(ctx, Exception{ClinicID: clinicID, Date: DateOf(date), Reason: reason})
	if err != nil {
		return nil, fmt.Errorf("upsert exception: %w", err)
	}
	s.calc.Invalidate(ctx, clinicID)
	return ex, nil
}

func (s *Service) UpdateException(ctx context.Context, clinicID, exceptionID uuid.UUID, date time.Time, reason string) (*Exception, error) {
	existing, err := s.store.GetExceptionByID(ctx, exceptionID)
	if err != nil {
		return nil, err
	}
	if existing.ClinicID != clinicID {
		return nil, ErrNotOwner
	}

	existing.Date = DateOf(date)
	existing.Reason = reason
	updated, err := s.store.UpdateException(ctx, *existing)
	if err != nil {
		return nil, err
	}
	s.calc.Invalidate(ctx, clinicID)
	return updated, nil
}

func (s *Service) DeleteException(ctx context.Context, clinicID, exceptionID uuid.UUID) error {
	existing, err := s.store.GetExceptionByID(ctx, exceptionID)
	if err != nil {
		return err
	}
	if existing.ClinicID != clinicID {
		return ErrNotOwner
	}

	if err := s.store.DeleteException(ctx, exceptionID); err != nil {
		return err
	}
	s.calc.Invalidate(ctx, clinicID)
	return nil
}
