package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue/internal/schedule"
)

// MemoryRepository keeps appointments in process. It enforces the same
// uniqueness rules as the appointments table.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Appointment
	events []EventLog
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID: make(map[uuid.UUID]*Appointment),
		now:  time.Now,
	}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) BookedSlotTimes(ctx context.Context, clinicID uuid.UUID, date time.Time) ([]schedule.Clock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []schedule.Clock
	for _, a := range r.day(clinicID, date) {
		if a.Status.OccupiesSlot() {
			result = append(result, a.Time)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Date = schedule.DateOf(a.Date)

	next := 1
	for _, existing := range r.day(a.ClinicID, a.Date) {
		if existing.Status.OccupiesSlot() && existing.Time == a.Time {
			return nil, ErrAllocationConflict
		}
		if existing.QueueNumber >= next {
			next = existing.QueueNumber + 1
		}
	}

	now := r.now()
	a.QueueNumber = next
	a.CreatedAt = now
	a.UpdatedAt = now

	stored := a
	r.byID[a.ID] = &stored
	return &a, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok || a.Status != from {
		return nil, ErrStatusConflict
	}
	a.Status = to
	a.UpdatedAt = r.now()
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) ListByClinicDate(ctx context.Context, clinicID uuid.UUID, date time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := r.day(clinicID, date)
	sortByDateQueue(result)
	return result, nil
}

func (r *MemoryRepository) ListByClinicRange(ctx context.Context, clinicID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	from, to = schedule.DateOf(from), schedule.DateOf(to)
	var result []Appointment
	for _, a := range r.byID {
		if a.ClinicID == clinicID && !a.Date.Before(from) && a.Date.Before(to) {
			result = append(result, *a)
		}
	}
	sortByDateQueue(result)
	return result, nil
}

func (r *MemoryRepository) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.byID {
		if a.ClinicID == clinicID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].QueueNumber < result[j].QueueNumber
	})
	return result, nil
}

func (r *MemoryRepository) CurrentQueueNumber(ctx context.Context, clinicID uuid.UUID, date time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	current := 0
	for _, a := range r.day(clinicID, date) {
		if (a.Status == StatusInProgress || a.Status == StatusCompleted) && a.QueueNumber > current {
			current = a.QueueNumber
		}
	}
	return current, nil
}

func (r *MemoryRepository) CountActive(ctx context.Context, clinicID uuid.UUID, date time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, a := range r.day(clinicID, date) {
		if a.Status.OccupiesSlot() {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) NextBooked(ctx context.Context, clinicID uuid.UUID, date time.Time) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var next *Appointment
	for _, a := range r.day(clinicID, date) {
		if a.Status != StatusBooked {
			continue
		}
		if next == nil || a.Time < next.Time || (a.Time == next.Time && a.QueueNumber < next.QueueNumber) {
			cp := a
			next = &cp
		}
	}
	if next == nil {
		return nil, ErrAppointmentNotFound
	}
	return next, nil
}

func (r *MemoryRepository) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.byID {
		if a.PatientID == patientID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].Time > result[j].Time
	})
	return result, nil
}

func (r *MemoryRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]EventLog(nil), r.events...)
}

// day must be called with r.mu held.
func (r *MemoryRepository) day(clinicID uuid.UUID, date time.Time) []Appointment {
	date = schedule.DateOf(date)
	var result []Appointment
	for _, a := range r.byID {
		if a.ClinicID == clinicID && a.Date.Equal(date) {
			result = append(result, *a)
		}
	}
	return result
}

func sortByDateQueue(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if !appts[i].Date.Equal(appts[j].Date) {
			return appts[i].Date.Before(appts[j].Date)
		}
		return appts[i].QueueNumber < appts[j].QueueNumber
	})
}
