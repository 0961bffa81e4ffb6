// Package database provides database connectivity and schema management.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Seeker220/letswatch/models"

	_ "github.com/lib/pq"           // Import postgres driver
	_ "github.com/mattn/go-sqlite3" // Import sqlite3 driver
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DB wraps the SQL database connection and the query builder bound to it
type DB struct {
	*sql.DB
	Gorm   *gorm.DB
	Driver string
}

// NewDB creates a new database connection. A nil logger silences query logging.
func NewDB(driver, dataSourceName string, log *logrus.Logger) (*DB, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory sqlite database only exists on the connection that created it
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	var dialector gorm.Dialector
	if driver == DriverSQLite {
		dialector = &sqlite.Dialector{Conn: db}
	} else {
		dialector = postgres.New(postgres.Config{Conn: db})
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:  queryLogger(log),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize query builder: %w", err)
	}

	return &DB{DB: db, Gorm: gdb, Driver: driver}, nil
}

func queryLogger(log *logrus.Logger) gormlogger.Interface {
	if log == nil {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	return gormlogger.New(log, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// InitSchema initializes the database schema
func (db *DB) InitSchema() error {
	legacy, err := db.inspectLegacy()
	if err != nil {
		return err
	}
	if legacy.nullableSentinels {
		return db.rebuildWatched(legacy.hasID)
	}

	if err := db.Gorm.AutoMigrate(&models.WatchRecord{}); err != nil {
		return fmt.Errorf("failed to migrate watched table: %w", err)
	}

	return nil
}

type legacyLayout struct {
	nullableSentinels bool
	hasID             bool
}

// inspectLegacy detects a watched table that predates the 0 sentinel, when
// season and episode were nullable.
func (db *DB) inspectLegacy() (legacyLayout, error) {
	var layout legacyLayout
	m := db.Gorm.Migrator()
	if !m.HasTable(&models.WatchRecord{}) {
		return layout, nil
	}

	columns, err := m.ColumnTypes(&models.WatchRecord{})
	if err != nil {
		return layout, fmt.Errorf("failed to inspect watched table: %w", err)
	}
	for _, column := range columns {
		switch column.Name() {
		case "id":
			layout.hasID = true
		case "season_number", "episode_number":
			if nullable, ok := column.Nullable(); ok && nullable {
				layout.nullableSentinels = true
			}
		}
	}
	return layout, nil
}

// rebuildWatched moves rows of a legacy watched table into a freshly
// created one, turning NULL season/episode into 0. Rows that collapse onto
// the same key keep the most recently updated one, and rows are copied in
// their original order so ids keep breaking timestamp ties.
func (db *DB) rebuildWatched(hasID bool) error {
	rankOrder, copyOrder, idColumn := "updated_at DESC", "updated_at", ""
	if hasID {
		rankOrder, copyOrder, idColumn = "updated_at DESC, id DESC", "updated_at, legacy_id", ", id AS legacy_id"
	}

	copyRows := fmt.Sprintf(`INSERT INTO watched (user_id, item_type, item_id, season_number, episode_number, state, updated_at)
		SELECT user_id, item_type, item_id, season_number, episode_number, state, updated_at
		FROM (
			SELECT user_id, item_type, item_id,
				COALESCE(season_number, 0) AS season_number,
				COALESCE(episode_number, 0) AS episode_number,
				state, updated_at%s,
				ROW_NUMBER() OVER (
					PARTITION BY user_id, item_type, item_id, COALESCE(season_number, 0), COALESCE(episode_number, 0)
					ORDER BY %s
				) AS key_rank
			FROM watched_legacy
			WHERE user_id IS NOT NULL
		) AS legacy
		WHERE key_rank = 1
		ORDER BY %s`, idColumn, rankOrder, copyOrder)

	err := db.Gorm.Transaction(func(tx *gorm.DB) error {
		m := tx.Migrator()
		if err := m.RenameTable("watched", "watched_legacy"); err != nil {
			return fmt.Errorf("failed to rename legacy table: %w", err)
		}
		// Index names are schema wide and would clash with the new table
		for _, index := range []string{"idx_watched_identity", "idx_watched_recent"} {
			if err := tx.Exec("DROP INDEX IF EXISTS " + index).Error; err != nil {
				return fmt.Errorf("failed to drop legacy index %s: %w", index, err)
			}
		}
		if err := m.CreateTable(&models.WatchRecord{}); err != nil {
			return fmt.Errorf("failed to create watched table: %w", err)
		}
		if err := tx.Exec(copyRows).Error; err != nil {
			return fmt.Errorf("failed to copy legacy rows: %w", err)
		}
		return m.DropTable("watched_legacy")
	})
	if err != nil {
		return fmt.Errorf("failed to rebuild watched table: %w", err)
	}
	return nil
}
