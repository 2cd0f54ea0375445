package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/Fi44er/aura_cards/config"
	"github.com/Fi44er/aura_cards/utils"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"

	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"

	// Writers queue on the file lock instead of failing; transactions take
	// the write lock at BEGIN so a claim never upgrades a read lock.
	sqliteParams = "_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate"
)

// ConnectDb opens the store named by url. postgres:// and postgresql:// URLs
// use the postgres driver, sqlite:/// URLs and bare paths use a single-file
// sqlite database.
func ConnectDb(url string, cfg config.Config, log *utils.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(url)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(log),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	log.Infof("✅ Database connection successfully (%s)", db.Dialector.Name())

	log.Info("📦 Setting database connection pool...")
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.DBMaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
	if cfg.DBMaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func dialectorFor(url string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.New(postgres.Config{
			DSN:                  url,
			PreferSimpleProtocol: true,
		}), nil
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		// sqlite:///relative.db and sqlite:////abs/file.db
		path = strings.TrimPrefix(path, "/")
		if path == "" {
			return nil, fmt.Errorf("empty sqlite path in %q", url)
		}
		return sqlite.Open(SQLiteDSN(path)), nil
	case strings.Contains(url, "://"):
		return nil, fmt.Errorf("unsupported database url scheme: %q", url)
	case url == "":
		return nil, fmt.Errorf("database url is empty")
	default:
		return sqlite.Open(SQLiteDSN(url)), nil
	}
}

// SQLiteDSN appends the connection parameters every sqlite handle needs.
func SQLiteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + sqliteParams
	}
	return path + "?" + sqliteParams
}

// newGormLogger reports failed and slow statements through log, so they obey
// LOG_LEVEL like everything else.
func newGormLogger(log *utils.Logger) gormLogger.Interface {
	return gormLogger.New(
		log,
		gormLogger.Config{
			Colorful:                  false,
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Error,
			IgnoreRecordNotFoundError: true,
		},
	)
}
