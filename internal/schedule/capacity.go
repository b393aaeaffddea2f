package schedule

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	capacityKeyPrefix    = "capacity:"
	capacityGenKeyPrefix = "capacity-gen:"
)

// Calculator answers availability and capacity questions from the Store.
type Calculator struct {
	store Store
	cache Cache
	ttl   time.Duration
	log   *zap.Logger
}

func NewCalculator(store Store, cache Cache, ttl time.Duration, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{
		store: store,
		cache: cache,
		ttl:   ttl,
		log:   logger,
	}
}

// Plan resolves the weekday hours and any exception for date.
func (c *Calculator) Plan(ctx context.Context, clinicID uuid.UUID, date time.Time) (*DayPlan, error) {
	date = DateOf(date)
	plan := &DayPlan{ClinicID: clinicID, Date: date}

	wd, err := c.store.GetWorkingDay(ctx, clinicID, date.Weekday())
	switch {
	case err == nil:
		plan.WorkingDay = wd
	case errors.Is(err, ErrWorkingDayNotFound):
	default:
		return nil, fmt.Errorf("load working day: %w", err)
	}

	ex, err := c.store.GetException(ctx, clinicID, date)
	switch {
	case err == nil:
		plan.Exception = ex
	case errors.Is(err, ErrExceptionNotFound):
	default:
		return nil, fmt.Errorf("load exception: %w", err)
	}

	return plan, nil
}

func (c *Calculator) IsAvailable(ctx context.Context, clinicID uuid.UUID, date time.Time) (bool, error) {
	plan, err := c.Plan(ctx, clinicID, date)
	if err != nil {
		return false, err
	}
	return plan.Open(), nil
}

// DailyCapacity is the number of bookable slots on date, 0 when closed.
func (c *Calculator) DailyCapacity(ctx context.Context, clinicID uuid.UUID, date time.Time, slotDurationMinutes int) (int, error) {
	if slotDurationMinutes <= 0 {
		return 0, ErrInvalidSlotDuration
	}

	// The generation is read before the plan so a fill racing an
	// invalidation lands under a key nobody reads again.
	key, cached := "", false
	if c.cache != nil {
		gen, err := c.generation(ctx, clinicID)
		if err != nil {
			c.log.Warn("capacity cache generation read failed", zap.String("clinic_id", clinicID.String()), zap.Error(err))
		} else {
			key, cached = capacityKey(clinicID, gen, DateOf(date), slotDurationMinutes), true
		}
	}

	if cached {
		if v, ok, err := c.cache.Get(ctx, key); err != nil {
			c.log.Warn("capacity cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return v, nil
		}
	}

	plan, err := c.Plan(ctx, clinicID, date)
	if err != nil {
		return 0, err
	}
	capacity, err := plan.Capacity(slotDurationMinutes)
	if err != nil {
		return 0, err
	}

	if cached {
		if err := c.cache.Set(ctx, key, capacity, c.ttl); err != nil {
			c.log.Warn("capacity cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return capacity, nil
}

// Invalidate retires every cached capacity for the clinic by bumping its
// generation, then drops the old entries.
func (c *Calculator) Invalidate(ctx context.Context, clinicID uuid.UUID) {
	if c.cache == nil {
		return
	}
	if _, err := c.cache.Incr(ctx, capacityGenKeyPrefix+clinicID.String()); err != nil {
		c.log.Error("capacity cache generation bump failed", zap.String("clinic_id", clinicID.String()), zap.Error(err))
	}
	prefix := capacityKeyPrefix + clinicID.String() + ":"
	if err := c.cache.DeletePrefix(ctx, prefix); err != nil {
		c.log.Error("capacity cache invalidation failed", zap.String("clinic_id", clinicID.String()), zap.Error(err))
	}
}

func (c *Calculator) generation(ctx context.Context, clinicID uuid.UUID) (int64, error) {
	gen, _, err := c.cache.Get(ctx, capacityGenKeyPrefix+clinicID.String())
	return int64(gen), err
}

// Slots lists the slot start times of an open day.
func (p DayPlan) Slots(slotDurationMinutes int) ([]Clock, error) {
	if !p.Open() {
		if slotDurationMinutes <= 0 {
			return nil, ErrInvalidSlotDuration
		}
		return []Clock{}, nil
	}
	return GenerateSlots(p.WorkingDay.StartTime, p.WorkingDay.EndTime, slotDurationMinutes)
}

func (p DayPlan) Capacity(slotDurationMinutes int) (int, error) {
	slots, err := p.Slots(slotDurationMinutes)
	if err != nil {
		return 0, err
	}
	return len(slots), nil
}

func capacityKey(clinicID uuid.UUID, gen int64, date time.Time, slotDurationMinutes int) string {
	return capacityKeyPrefix + clinicID.String() + ":" + strconv.FormatInt(gen, 10) + ":" + FormatDate(date) + ":" + strconv.Itoa(slotDurationMinutes)
}
