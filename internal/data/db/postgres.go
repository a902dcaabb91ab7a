package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/ncertlens-backend/internal/platform/envutil"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver string
	// DSN overrides the POSTGRES_* parts when set. For sqlite it is the file path or ":memory:".
	DSN           string
	SlowThreshold time.Duration
}

func ConfigFromEnv() Config {
	cfg := Config{
		Driver:        strings.ToLower(envutil.String("DB_DRIVER", DriverPostgres)),
		DSN:           envutil.String("DATABASE_URL", ""),
		SlowThreshold: envutil.Duration("DB_SLOW_THRESHOLD", time.Second),
	}
	if cfg.DSN == "" {
		switch cfg.Driver {
		case DriverSQLite:
			cfg.DSN = envutil.String("SQLITE_PATH", "ncertlens.db")
		default:
			cfg.DSN = fmt.Sprintf(
				"postgres://%s:%s@%s:%s/%s?sslmode=disable",
				envutil.String("POSTGRES_USER", "postgres"),
				envutil.String("POSTGRES_PASSWORD", ""),
				envutil.String("POSTGRES_HOST", "localhost"),
				envutil.String("POSTGRES_PORT", "5432"),
				envutil.String("POSTGRES_NAME", "ncertlens"),
			)
		}
	}
	return cfg
}

type Service struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

// Open connects with the configured driver. It does not migrate.
func Open(logg *logger.Logger, cfg Config) (*Service, error) {
	serviceLog := logg.With("service", "DBService", "driver", cfg.Driver)

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             cfg.SlowThreshold,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	gcfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres, "":
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		// one writer; concurrent sqlite writes otherwise fail with SQLITE_BUSY
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	serviceLog.Info("Database connected")
	return &Service{db: db, driver: cfg.Driver, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Driver() string { return s.driver }

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
