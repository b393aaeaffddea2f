package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Store for single-process use and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	days       map[uuid.UUID]WorkingDay
	exceptions map[uuid.UUID]Exception
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		days:       make(map[uuid.UUID]WorkingDay),
		exceptions: make(map[uuid.UUID]Exception),
	}
}

func (s *MemoryStore) ListWorkingDays(ctx context.Context, clinicID uuid.UUID) ([]WorkingDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []WorkingDay
	for _, d := range s.days {
		if d.ClinicID == clinicID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out, nil
}

func (s *MemoryStore) GetWorkingDay(ctx context.Context, clinicID uuid.UUID, day time.Weekday) (*WorkingDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.days {
		if d.ClinicID == clinicID && d.DayOfWeek == day {
			d := d
			return &d, nil
		}
	}
	return nil, ErrWorkingDayNotFound
}

func (s *MemoryStore) GetWorkingDayByID(ctx context.Context, id uuid.UUID) (*WorkingDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.days[id]
	if !ok {
		return nil, ErrWorkingDayNotFound
	}
	return &d, nil
}

func (s *MemoryStore) ReplaceWorkingDays(ctx context.Context, clinicID uuid.UUID, days []WorkingDay) ([]WorkingDay, error) {
	s.mu.Lock()
	for id, d := range s.days {
		if d.ClinicID == clinicID {
			delete(s.days, id)
		}
	}
	for _, d := range days {
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		d.ClinicID = clinicID
		s.days[d.ID] = d
	}
	s.mu.Unlock()

	return s.ListWorkingDays(ctx, clinicID)
}

func (s *MemoryStore) UpdateWorkingDay(ctx context.Context, day WorkingDay) (*WorkingDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.days[day.ID]; !ok {
		return nil, ErrWorkingDayNotFound
	}
	s.days[day.ID] = day
	return &day, nil
}

func (s *MemoryStore) ListExceptions(ctx context.Context, clinicID uuid.UUID) ([]Exception, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Exception
	for _, ex := range s.exceptions {
		if ex.ClinicID == clinicID {
			out = append(out, ex)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *MemoryStore) GetException(ctx context.Context, clinicID uuid.UUID, date time.Time) (*Exception, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ex, ok := s.findByDate(clinicID, date); ok {
		return &ex, nil
	}
	return nil, ErrExceptionNotFound
}

func (s *MemoryStore) GetExceptionByID(ctx context.Context, id uuid.UUID) (*Exception, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ex, ok := s.exceptions[id]
	if !ok {
		return nil, ErrExceptionNotFound
	}
	return &ex, nil
}

func (s *MemoryStore) InsertException(ctx context.Context, ex Exception) (*Exception, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.findByDate(ex.ClinicID, ex.Date); ok {
		return nil, ErrExceptionExists
	}
	if ex.ID == uuid.Nil {
		ex.ID = uuid.New()
	}
	ex.Date = DateOf(ex.Date)
	s.exceptions[ex.ID] = ex
	return &ex, nil
}

func (s *MemoryStore) UpsertException(ctx context.Context, ex Exception) (*Exception, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.findByDate(ex.ClinicID, ex.Date); ok {
		existing.Reason = ex.Reason
		s.exceptions[existing.ID] = existing
		return &existing, nil
	}
	if ex.ID == uuid.Nil {
		ex.ID = uuid.New()
	}
	ex.Date = DateOf(ex.Date)
	s.exceptions[ex.ID] = ex
	return &ex, nil
}

func (s *MemoryStore) UpdateException(ctx context.Context, ex Exception) (*Exception, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.exceptions[ex.ID]; !ok {
		return nil, ErrExceptionNotFound
	}
	if other, ok := s.findByDate(ex.ClinicID, ex.Date); ok && other.ID != ex.ID {
		return nil, ErrExceptionExists
	}
	ex.Date = DateOf(ex.Date)
	s.exceptions[ex.ID] = ex
	return &ex, nil
}

func (s *MemoryStore) DeleteException(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.exceptions[id]; !ok {
		return ErrExceptionNotFound
	}
	delete(s.exceptions, id)
	return nil
}

func (s *MemoryStore) findByDate(clinicID uuid.UUID, date time.Time) (Exception, bool) {
	date = DateOf(date)
	for _, ex := range s.exceptions {
		if ex.ClinicID == clinicID && ex.Date.Equal(date) {
			return ex, true
		}
	}
	return Exception{}, false
}
