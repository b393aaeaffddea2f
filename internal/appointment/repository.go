package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue/internal/schedule"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrAllocationConflict means a concurrent booking took the queue number
	// or slot first. It is transient and the allocation is retried.
	ErrAllocationConflict = errors.New("allocation conflict")
	// ErrStatusConflict means the row changed status between read and write.
	ErrStatusConflict = errors.New("appointment status changed concurrently")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Allocation
	BookedSlotTimes(ctx context.Context, clinicID uuid.UUID, date time.Time) ([]schedule.Clock, error)
	// Insert stores a with QueueNumber = 1 + max(queue numbers of the
	// clinic/date), computed in the same atomic unit as the write.
	Insert(ctx context.Context, a Appointment) (*Appointment, error)

	// UpdateStatus only applies when the stored status still equals from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Queue
	ListByClinicDate(ctx context.Context, clinicID uuid.UUID, date time.Time) ([]Appointment, error)
	ListByClinicRange(ctx context.Context, clinicID uuid.UUID, from, to time.Time) ([]Appointment, error)
	ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]Appointment, error)
	CurrentQueueNumber(ctx context.Context, clinicID uuid.UUID, date time.Time) (int, error)
	CountActive(ctx context.Context, clinicID uuid.UUID, date time.Time) (int, error)
	NextBooked(ctx context.Context, clinicID uuid.UUID, date time.Time) (*Appointment, error)

	// History
	ListByPatient(ctx context.Context, patientID string) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
