package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	app "github.com/R3E-Network/storefront/internal/app"
	"github.com/R3E-Network/storefront/internal/app/storage/sqlstore"
	"github.com/R3E-Network/storefront/internal/config"
	"github.com/R3E-Network/storefront/internal/platform/migrations"
)

// driverName maps a configured driver to its database/sql name and migration
// dialect.
func driverName(driver string) (string, string, error) {
	switch driver {
	case "postgres":
		return "postgres", migrations.DialectPostgres, nil
	case "sqlite":
		return "sqlite", migrations.DialectSQLite, nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// OpenDatabase connects to the configured SQL database and checks it is
// reachable. It returns the migration dialect alongside the handle.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, string, error) {
	name, dialect, err := driverName(cfg.Driver)
	if err != nil {
		return nil, "", err
	}
	if cfg.URL == "" {
		return nil, "", fmt.Errorf("database url not configured")
	}

	db, err := sqlx.Open(name, cfg.URL)
	if err != nil {
		return nil, "", err
	}

	if dialect == migrations.DialectSQLite {
		// One writer at a time; also keeps a :memory: database alive.
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, "", err
	}

	return db, dialect, nil
}

// buildStores returns the stores for cfg and, for SQL drivers, the open
// database after bringing its schema up to date.
func buildStores(ctx context.Context, cfg config.DatabaseConfig) (app.Stores, *sqlx.DB, error) {
	if cfg.Driver == "memory" {
		return app.Stores{}, nil, nil
	}

	db, dialect, err := OpenDatabase(ctx, cfg)
	if err != nil {
		return app.Stores{}, nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrations.Apply(ctx, db.DB, dialect); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("apply schema: %w", err)
	}
	return app.StoresFrom(sqlstore.New(db)), db, nil
}
