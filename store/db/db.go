package db

import (
	"github.com/pkg/errors"

	"github.com/recollecthq/recollect/internal/profile"
	"github.com/recollecthq/recollect/store"
	"github.com/recollecthq/recollect/store/db/postgres"
	"github.com/recollecthq/recollect/store/db/sqlite"
)

// NewDBDriver creates a new database driver based on the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "postgres":
		return postgres.NewDB(profile)
	case "sqlite":
		return sqlite.NewDB(profile)
	default:
		return nil, errors.Errorf("unsupported driver: %s", profile.Driver)
	}
}
