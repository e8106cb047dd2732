// Command storefront-admin performs operator tasks against the storefront
// database: creating users, changing roles and running schema migrations.
//
//	storefront-admin add-user -username alice -password secret -email a@x.io [-admin]
//	storefront-admin set-role -username alice -role admin
//	storefront-admin migrate up|down [-steps n]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/R3E-Network/storefront/internal/config"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: storefront-admin <add-user|set-role|migrate> [flags]")
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return errors.New("command required")
	}

	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}
	if dbCfg.Driver == "memory" {
		return errors.New("storefront-admin needs DB_DRIVER postgres or sqlite and DATABASE_URL")
	}

	switch args[0] {
	case "add-user":
		return addUser(ctx, dbCfg, args[1:], out)
	case "set-role":
		return setRole(ctx, dbCfg, args[1:], out)
	case "migrate":
		return migrateCmd(dbCfg, args[1:], out)
	case "help", "-h", "--help":
		usage(out)
		return nil
	default:
		usage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}
