package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/golang-migrate/migrate/v4"

	"github.com/R3E-Network/storefront/internal/app/runtime"
	"github.com/R3E-Network/storefront/internal/config"
	"github.com/R3E-Network/storefront/internal/platform/migrations"
)

func migrateCmd(cfg config.DatabaseConfig, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("migrate needs a direction: up or down")
	}
	direction := args[0]

	fs := flag.NewFlagSet("migrate "+direction, flag.ContinueOnError)
	fs.SetOutput(out)
	steps := fs.Int("steps", 0, "number of migrations to apply (down defaults to 1)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	db, dialect, err := runtime.OpenDatabase(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := migrations.NewMigrator(db.DB, dialect)
	if err != nil {
		return err
	}

	switch direction {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		n := *steps
		if n <= 0 {
			n = 1
		}
		err = m.Steps(-n)
	default:
		return fmt.Errorf("unknown migrate direction %q", direction)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Fprintln(out, "no change")
		return nil
	}
	if err != nil {
		return err
	}

	version, dirty, verr := m.Version()
	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
		fmt.Fprintln(out, "schema at version 0")
	case verr != nil:
		return verr
	default:
		fmt.Fprintf(out, "schema at version %d (dirty=%t)\n", version, dirty)
	}
	return nil
}
