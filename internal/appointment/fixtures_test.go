package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/config"
	"github.com/hackgods/clinic-queue/internal/identity"
	"github.com/hackgods/clinic-queue/internal/schedule"
)

// 2025-12-22 is a Monday; "today" in these tests is the Saturday before.
var (
	monday    = time.Date(2025, 12, 22, 0, 0, 0, 0, time.UTC)
	tuesday   = monday.AddDate(0, 0, 1)
	wednesday = monday.AddDate(0, 0, 2)
	christmas = monday.AddDate(0, 0, 3)
	fixedNow  = time.Date(2025, 12, 20, 10, 0, 0, 0, time.UTC)
)

const clinicOwner = "clinic-owner-1"

type fixture struct {
	svc      *Service
	repo     *MemoryRepository
	store    *schedule.MemoryStore
	dir      *identity.MemoryDirectory
	clinicID uuid.UUID
}

func newFixture(t *testing.T, slotMinutes int) *fixture {
	t.Helper()
	ctx := context.Background()

	store := schedule.NewMemoryStore()
	dir := identity.NewMemoryDirectory()
	repo := NewMemoryRepository()

	clinic, err := dir.SaveClinic(ctx, identity.ClinicProfile{
		OwnerUserID:         clinicOwner,
		DoctorName:          "Dr. Hala Mostafa",
		Specialty:           "Pediatrics",
		SlotDurationMinutes: slotMinutes,
	})
	require.NoError(t, err)

	_, err = store.ReplaceWorkingDays(ctx, clinic.ID, []schedule.WorkingDay{
		{DayOfWeek: time.Monday, StartTime: schedule.NewClock(9, 0), EndTime: schedule.NewClock(12, 0)},
		{DayOfWeek: time.Tuesday, StartTime: schedule.NewClock(9, 0), EndTime: schedule.NewClock(17, 0)},
		{DayOfWeek: time.Wednesday, IsClosed: true},
		{DayOfWeek: time.Thursday, StartTime: schedule.NewClock(9, 0), EndTime: schedule.NewClock(12, 0)},
	})
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.RetryBackoff = 0

	calc := schedule.NewCalculator(store, schedule.NewMemoryCache(), cfg.CapacityCacheTTL, zap.NewNop())
	svc := NewService(repo, NewLocalLocker(2*time.Second), calc, dir, cfg, zap.NewNop(),
		WithClock(func() time.Time { return fixedNow }),
	)

	return &fixture{svc: svc, repo: repo, store: store, dir: dir, clinicID: clinic.ID}
}

func (f *fixture) book(t *testing.T, patientID string, date time.Time) *Appointment {
	t.Helper()
	appt, err := f.svc.BookAppointment(context.Background(), patientID, f.clinicID, date)
	require.NoError(t, err)
	return appt
}
