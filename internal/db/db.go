package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sujalbistaa/allgood/internal/config"
	"github.com/sujalbistaa/allgood/internal/models"
)

const memoryDSN = ":memory:"

// Init opens the database named by cfg.URL, which must start with
// "postgres://", "postgresql://" or "sqlite://".
func Init(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	maxOpen, maxIdle := cfg.MaxOpenConns, cfg.MaxIdleConns

	switch {
	case strings.HasPrefix(cfg.URL, "postgres://"), strings.HasPrefix(cfg.URL, "postgresql://"):
		dialector = postgres.Open(cfg.URL)
		log.Info("connecting to PostgreSQL database")
	case strings.HasPrefix(cfg.URL, "sqlite://"):
		dsn := strings.TrimPrefix(cfg.URL, "sqlite://")
		if dsn == memoryDSN {
			// every new connection would get its own empty database
			maxOpen, maxIdle = 1, 1
		} else if !strings.Contains(dsn, "busy_timeout") {
			dsn += separator(dsn) + "_pragma=busy_timeout(5000)"
		}
		dialector = sqlite.Open(dsn)
		log.Info("connecting to SQLite database", zap.String("dsn", dsn))
	default:
		return nil, fmt.Errorf("invalid DATABASE_URL prefix: must start with 'postgres://' or 'sqlite://'")
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if maxOpen > 0 {
		maxIdle = min(maxIdle, maxOpen)
	}
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetMaxOpenConns(maxOpen)

	log.Info("database connection established")
	return db, nil
}

// Migrate creates or updates the users and posts tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Post{})
}

func separator(dsn string) string {
	if strings.Contains(dsn, "?") {
		return "&"
	}
	return "?"
}
