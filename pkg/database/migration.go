package database

import (
	"fmt"
	"os"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

type migrationLogger struct {
	ectologger.Logger
}

func (l migrationLogger) Verbose() bool {
	return true
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

// Migrate runs all pending up migrations from the given folder.
func Migrate(databaseName, folderPath string, driver migratedb.Driver, logger ectologger.Logger) error {
	if _, err := os.Stat(folderPath); err != nil {
		if wd, wdErr := os.Getwd(); wdErr == nil {
			folderPath = wd + "/" + folderPath
		}
	}
	if _, err := os.Stat(folderPath); err != nil {
		return fmt.Errorf("migration folder %s does not exist: %w", folderPath, err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+folderPath, databaseName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	m.Log = migrationLogger{logger}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.WithFields(map[string]any{"version": version, "dirty": dirty}).Info("Database migrations applied")
	return nil
}
