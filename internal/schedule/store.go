package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists weekly working hours and date exceptions.
// Dates passed in and returned are UTC midnight (see DateOf).
type Store interface {
	ListWorkingDays(ctx context.Context, clinicID uuid.UUID) ([]WorkingDay, error)
	GetWorkingDay(ctx context.Context, clinicID uuid.UUID, day time.Weekday) (*WorkingDay, error)
	GetWorkingDayByID(ctx context.Context, id uuid.UUID) (*WorkingDay, error)

	// ReplaceWorkingDays deletes every row for the clinic and inserts days
	// in a single transaction.
	ReplaceWorkingDays(ctx context.Context, clinicID uuid.UUID, days []WorkingDay) ([]WorkingDay, error)
	UpdateWorkingDay(ctx context.Context, day WorkingDay) (*WorkingDay, error)

	ListExceptions(ctx context.Context, clinicID uuid.UUID) ([]Exception, error)
	GetException(ctx context.Context, clinicID uuid.UUID, date time.Time) (*Exception, error)
	GetExceptionByID(ctx context.Context, id uuid.UUID) (*Exception, error)

	// InsertException fails with ErrExceptionExists when the date is taken.
	InsertException(ctx context.Context, ex Exception) (*Exception, error)
	UpsertException(ctx context.Context, ex Exception) (*Exception, error)
	UpdateException(ctx context.Context, ex Exception) (*Exception, error)
	DeleteException(ctx context.Context, id uuid.UUID) error
}
