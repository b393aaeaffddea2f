package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/db"
	"github.com/hackgods/clinic-queue/internal/identity"
	"github.com/hackgods/clinic-queue/internal/logging"
	"github.com/hackgods/clinic-queue/internal/schedule"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var closureReasons = []string{
	"Public holiday",
	"Doctor on leave",
	"Conference",
	"Clinic maintenance",
}

func main() {
	_ = godotenv.Load()

	logger, err := logging.New(os.Getenv("LOG_LEVEL"), os.Getenv("APP_ENV"))
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := gofakeit.Seed(time.Now().UnixNano()); err != nil {
		logger.Fatal("seed faker", zap.Error(err))
	}

	dir := identity.NewPgDirectory(pool)
	store := schedule.NewPgStore(pool)
	// The API caches capacity for CAPACITY_CACHE_TTL; freshly seeded
	// clinics have nothing cached yet.
	schedules := schedule.NewService(store, schedule.NewCalculator(store, nil, 0, logger), logger)

	clinics := envInt("SEED_CLINICS", 20)
	patients := envInt("SEED_PATIENTS", 500)

	if err := seedClinics(ctx, logger, dir, schedules, clinics); err != nil {
		logger.Fatal("seed clinics", zap.Error(err))
	}
	if err := seedPatients(ctx, logger, dir, patients); err != nil {
		logger.Fatal("seed patients", zap.Error(err))
	}

	logger.Info("seed complete", zap.Int("clinics", clinics), zap.Int("patients", patients))
}

func seedClinics(ctx context.Context, logger *zap.Logger, dir *identity.PgDirectory, schedules *schedule.Service, count int) error {
	logger.Info("seeding clinics", zap.Int("count", count))

	today := schedule.DateOf(time.Now())
	for i := 0; i < count; i++ {
		clinic, err := dir.SaveClinic(ctx, identity.ClinicProfile{
			OwnerUserID:         fmt.Sprintf("clinic-user-%03d", i+1),
			DoctorName:          "Dr. " + gofakeit.Name(),
			Specialty:           gofakeit.RandomString(specialties),
			SlotDurationMinutes: []int{15, 20, 30}[gofakeit.Number(0, 2)],
		})
		if err != nil {
			return fmt.Errorf("save clinic %d: %w", i+1, err)
		}

		if _, err := schedules.ReplaceWorkingDays(ctx, clinic.ID, weeklyHours()); err != nil {
			return fmt.Errorf("working days for %s: %w", clinic.ID, err)
		}

		for _, offset := range []int{gofakeit.Number(3, 14), gofakeit.Number(15, 30)} {
			date := today.AddDate(0, 0, offset)
			_, err := schedules.AddException(ctx, clinic.ID, date, gofakeit.RandomString(closureReasons))
			if err != nil {
				return fmt.Errorf("exception for %s: %w", clinic.ID, err)
			}
		}

		logger.Debug("clinic seeded",
			zap.String("clinic_id", clinic.ID.String()),
			zap.String("owner_user_id", clinic.OwnerUserID),
			zap.Int("slot_duration_minutes", clinic.SlotDurationMinutes))
	}

	logger.Info("clinics seeded")
	return nil
}

// weeklyHours opens Sunday to Thursday with a random morning start and
// closes Friday and Saturday.
func weeklyHours() []schedule.WorkingDay {
	days := make([]schedule.WorkingDay, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d == time.Friday || d == time.Saturday {
			days = append(days, schedule.WorkingDay{DayOfWeek: d, IsClosed: true})
			continue
		}
		start := schedule.NewClock(gofakeit.Number(8, 10), 0)
		days = append(days, schedule.WorkingDay{
			DayOfWeek: d,
			StartTime: start,
			EndTime:   start.Add(60 * gofakeit.Number(4, 8)),
		})
	}
	return days
}

func seedPatients(ctx context.Context, logger *zap.Logger, dir *identity.PgDirectory, count int) error {
	logger.Info("seeding patients", zap.Int("count", count))

	for i := 0; i < count; i++ {
		err := dir.SavePatient(ctx, identity.Patient{
			ID:          fmt.Sprintf("patient-%05d", i+1),
			DisplayName: gofakeit.Name(),
			Phone:       gofakeit.Phone(),
		})
		if err != nil {
			return fmt.Errorf("save patient %d: %w", i+1, err)
		}
		if (i+1)%100 == 0 {
			logger.Info("patients seeded", zap.Int("done", i+1), zap.Int("total", count))
		}
	}
	return nil
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}
