package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const (
	MigrationUp   = "up"
	MigrationDown = "down"
)

// Migrate applies (or rolls back) the SQL files under migrationsPath.
// ErrNoChange is reported as applied=false rather than an error.
func Migrate(dsn, migrationsPath, direction string) (applied bool, err error) {
	m, err := migrate.New("file://"+migrationsPath, "mysql://"+withMultiStatements(dsn))
	if err != nil {
		return false, fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()

	switch direction {
	case MigrationDown:
		err = m.Down()
	case MigrationUp, "":
		err = m.Up()
	default:
		return false, fmt.Errorf("unknown migration direction %q", direction)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func withMultiStatements(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&multiStatements=true"
	}
	return dsn + "?multiStatements=true"
}
