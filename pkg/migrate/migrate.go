package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/plantomart/plantomart-backend/pkg/config"
)

const DefaultDir = "pkg/migrate/migrations"

// dialectFor maps the configured database driver to a goose dialect. The SQL files stay
// portable so one set serves Postgres and SQLite.
func dialectFor(driver string) (goose.Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", config.DriverPostgres:
		return goose.DialectPostgres, nil
	case config.DriverSQLite:
		return goose.DialectSQLite3, nil
	}
	return "", fmt.Errorf("unsupported migration driver %q", driver)
}

func newProvider(db *sql.DB, driver, dir string) (*goose.Provider, error) {
	if db == nil {
		return nil, errors.New("migrate: db is required")
	}
	if dir == "" {
		return nil, errors.New("migrate: dir is required")
	}
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(dialect, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("goose provider for %s: %w", dir, err)
	}
	return provider, nil
}

// Run executes up, down or status against dir and reports each result line to out.
func Run(ctx context.Context, db *sql.DB, driver, dir, command string, out io.Writer) error {
	provider, err := newProvider(db, driver, dir)
	if err != nil {
		return err
	}
	if out == nil {
		out = io.Discard
	}

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		for _, res := range results {
			fmt.Fprintln(out, res)
		}
		return wrapGoose(command, err)
	case "down":
		res, err := provider.Down(ctx)
		if res != nil {
			fmt.Fprintln(out, res)
		}
		return wrapGoose(command, err)
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return wrapGoose(command, err)
		}
		for _, st := range statuses {
			applied := "pending"
			if st.State == goose.StateApplied {
				applied = st.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%-24s %s\n", applied, st.Source.Path)
		}
		return nil
	}
	return fmt.Errorf("unknown migrate command %q", command)
}

// MigrateToVersion moves the schema up or down until target (YYYYMMDDHHMMSS) is current.
func MigrateToVersion(ctx context.Context, db *sql.DB, driver, dir, target string) error {
	version, err := strconv.ParseInt(strings.TrimSpace(target), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	provider, err := newProvider(db, driver, dir)
	if err != nil {
		return err
	}
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return wrapGoose("version", err)
	}
	switch {
	case current < version:
		_, err = provider.UpTo(ctx, version)
	case current > version:
		_, err = provider.DownTo(ctx, version)
	}
	return wrapGoose("version", err)
}

func wrapGoose(command string, err error) error {
	if err == nil || errors.Is(err, goose.ErrNoNextVersion) {
		return nil
	}
	return fmt.Errorf("goose %s: %w", command, err)
}
