// Package db opens the SQL database used by the sql store backends
package db

import (
	"errors"
	"fmt"
	"os"

	"github.com/h3nryswan/video-transcoder/pkg/util"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New opens a database for driver "sqlite" (dsn is a file path) or
// "postgres" (dsn is a connection string)
func New(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	switch driver {
	case "sqlite":
		// If running in a docker container don't allow the sqlite file to be created.
		// The host should instead mount it using volumes
		if util.IsRunningInDocker() {
			if _, err := os.Stat(dsn); errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("SQLite database file not mounted, please use docker volumes to mount it to %s", dsn)
			}
		}

		db, err := gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite database, %w", err)
		}

		return db, nil
	case "postgres":
		db, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres, %w", err)
		}

		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
