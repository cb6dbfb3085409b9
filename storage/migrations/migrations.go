// Package migrations holds the directory schema and applies it.
package migrations

import (
	"embed"
	"errors"
	"fmt"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres driver for golang_migrate
	_ "github.com/golang-migrate/migrate/v4/source/file"       // support file scheme for golang_migrate
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/msigvault/msig/log"
)

//go:embed *.sql
var embedded embed.FS

// Up applies all pending migrations to the database at dbURL. source is a
// golang-migrate source URL; when empty, the migrations compiled into the
// binary are used.
func Up(source string, dbURL string, logger *log.Logger) error {
	var (
		m   *migrate.Migrate
		err error
	)
	if source == "" {
		src, srcErr := iofs.New(embedded, ".")
		if srcErr != nil {
			return fmt.Errorf("embedded migrations: %w", srcErr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, dbURL)
	} else {
		m, err = migrate.New(source, dbURL)
	}
	if err != nil {
		logger.Error("migrator failed to start",
			"error", err,
		)
		return err
	}
	defer m.Close()

	switch err = m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("no migrations needed to be applied")
	case err != nil:
		logger.Error("migrations failed",
			"error", err,
		)
		return err
	default:
		logger.Info("migrations completed")
	}
	return nil
}
