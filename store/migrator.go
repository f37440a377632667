package store

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/recollecthq/recollect/internal/version"
)

// Migration files live under migration/{driver}/{version}/NN__description.sql
// and are applied in lexicographic order. LATEST.sql holds the full schema
// for fresh installations so they skip the incremental path entirely.
// The applied schema version is tracked in the system_setting table.

//go:embed migration
var migrationFS embed.FS

const (
	// migrateFileNameSplit is the split character between the patch number
	// and the description in a migration file name, e.g. "01__init.sql".
	migrateFileNameSplit = "__"
	// latestSchemaFileName is the full schema file used to bootstrap fresh
	// installations.
	latestSchemaFileName = "LATEST.sql"
)

// Migrate migrates the database schema to the current version.
func (s *Store) Migrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check initialized")
	}

	targetVersion := version.GetMinorVersion(s.profile.Version) + ".0"
	if !initialized {
		if err := s.applyLatestSchema(ctx); err != nil {
			return errors.Wrap(err, "failed to apply latest schema")
		}
		if err := s.driver.UpsertSchemaVersion(ctx, targetVersion); err != nil {
			return errors.Wrap(err, "failed to record schema version")
		}
		slog.Info("database initialized", "driver", s.profile.Driver, "schemaVersion", targetVersion)
		return nil
	}

	currentVersion, err := s.driver.GetSchemaVersion(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get schema version")
	}
	if currentVersion == "" {
		currentVersion = "0.0.0"
	}

	files, err := s.collectMigrationFiles(currentVersion, targetVersion)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	slog.Info("applying migrations", "from", currentVersion, "to", targetVersion, "count", len(files))
	for _, file := range files {
		buf, err := migrationFS.ReadFile(file)
		if err != nil {
			return errors.Wrapf(err, "failed to read migration file %s", file)
		}
		if _, err := s.driver.GetDB().ExecContext(ctx, string(buf)); err != nil {
			return errors.Wrapf(err, "failed to apply migration file %s", file)
		}
		slog.Info("migration applied", "file", filepath.Base(file))
	}

	if err := s.driver.UpsertSchemaVersion(ctx, targetVersion); err != nil {
		return errors.Wrap(err, "failed to record schema version")
	}
	return nil
}

func (s *Store) applyLatestSchema(ctx context.Context) error {
	path := filepath.Join("migration", s.profile.Driver, latestSchemaFileName)
	buf, err := migrationFS.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read latest schema %s", path)
	}
	if _, err := s.driver.GetDB().ExecContext(ctx, string(buf)); err != nil {
		return errors.Wrap(err, "failed to execute latest schema")
	}
	return nil
}

// collectMigrationFiles returns the migration files whose version is greater
// than the current database version and not beyond the target version.
func (s *Store) collectMigrationFiles(currentVersion, targetVersion string) ([]string, error) {
	root := filepath.Join("migration", s.profile.Driver)
	var files []string
	err := fs.WalkDir(migrationFS, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") || filepath.Base(path) == latestSchemaFileName {
			return nil
		}
		if !strings.Contains(filepath.Base(path), migrateFileNameSplit) {
			return errors.Errorf("invalid migration file name: %s", path)
		}
		fileVersion := filepath.Base(filepath.Dir(path)) + ".0"
		if version.IsVersionGreaterThan(fileVersion, currentVersion) &&
			version.IsVersionGreaterOrEqualThan(targetVersion, fileVersion) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to walk migration files")
	}
	sort.Strings(files)
	return files, nil
}
