package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PoluyanbIch/QuizBot/internal/config"
	"github.com/PoluyanbIch/QuizBot/internal/service"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database. The memory adapter has no
// database and is handled by the caller.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	log := config.WithContext(ctx).WithField("adapter", cfg.Adapter)

	var dialector gorm.Dialector
	switch cfg.Adapter {
	case config.AdapterSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		dialector = sqlite.Open(sqliteDSN(cfg))
	case config.AdapterPostgres:
		dialector = postgres.Open(postgresDSN(cfg))
	default:
		return nil, fmt.Errorf("unsupported database adapter %q", cfg.Adapter)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	pool := cfg.Pool
	if cfg.Adapter == config.AdapterSQLite {
		// sqlite allows one writer; a single connection queues writers in
		// process instead of failing them with SQLITE_BUSY.
		pool = 1
	}
	sqlDB.SetMaxOpenConns(pool)
	sqlDB.SetMaxIdleConns(pool)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout(cfg))
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("Connected to database")
	return db, nil
}

// Migrate creates or updates the tables the bot uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &service.QuizSession{}, &service.LeaderboardEntry{})
}

// sqliteDSN adds a busy timeout for other processes sharing the file and
// turns on WAL so readers do not block the writer.
func sqliteDSN(cfg config.DatabaseConfig) string {
	sep := "?"
	if strings.Contains(cfg.Database, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		cfg.Database, sep, connectTimeout(cfg).Milliseconds())
}

func postgresDSN(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable connect_timeout=%d",
		cfg.Host, port, cfg.Username, cfg.Password, cfg.Database, int(connectTimeout(cfg).Seconds()))
}

func connectTimeout(cfg config.DatabaseConfig) time.Duration {
	if cfg.Timeout <= 0 {
		return 5 * time.Second
	}
	d := time.Duration(cfg.Timeout) * time.Millisecond
	if d < time.Second {
		d = time.Second
	}
	return d
}
