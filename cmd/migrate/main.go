package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-queue/internal/db"
	"github.com/hackgods/clinic-queue/internal/logging"
)

func main() {
	_ = godotenv.Load()

	direction := flag.String("direction", "up", "up, down or version")
	force := flag.Int("force", -1, "force the schema version after a failed migration")
	flag.Parse()

	logger, err := logging.New(os.Getenv("LOG_LEVEL"), os.Getenv("APP_ENV"))
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal("POSTGRES_DSN is required")
	}

	m, err := db.NewMigrator(dsn)
	if err != nil {
		logger.Fatal("create migrator", zap.Error(err))
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("close migrator", zap.Error(err))
		}
	}()

	if *force >= 0 {
		if err := m.Force(*force); err != nil {
			logger.Fatal("force version", zap.Int("version", *force), zap.Error(err))
		}
		logger.Info("schema version forced", zap.Int("version", *force))
		return
	}

	switch *direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
	default:
		logger.Fatal("unknown direction", zap.String("direction", *direction))
	}
	if err != nil {
		logger.Fatal("migration failed", zap.String("direction", *direction), zap.Error(err))
	}

	version, dirty, err := m.Version()
	if err != nil {
		logger.Info("no migrations applied", zap.Error(err))
		return
	}
	logger.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
}
