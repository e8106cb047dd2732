package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/runtime"
	"github.com/R3E-Network/storefront/internal/app/services/auth"
	"github.com/R3E-Network/storefront/internal/app/services/users"
	"github.com/R3E-Network/storefront/internal/app/storage"
	"github.com/R3E-Network/storefront/internal/app/storage/sqlstore"
	"github.com/R3E-Network/storefront/internal/config"
	"github.com/R3E-Network/storefront/pkg/logger"
)

func openStore(ctx context.Context, cfg config.DatabaseConfig) (*sqlstore.Store, func(), error) {
	db, _, err := runtime.OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return sqlstore.New(db), func() { db.Close() }, nil
}

func addUser(ctx context.Context, cfg config.DatabaseConfig, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add-user", flag.ContinueOnError)
	fs.SetOutput(out)
	username := fs.String("username", "", "login name")
	password := fs.String("password", "", "initial password")
	email := fs.String("email", "", "contact email")
	phone := fs.String("phone", "", "contact phone")
	admin := fs.Bool("admin", false, "grant the admin role")
	cost := fs.Int("bcrypt-cost", bcrypt.DefaultCost, "bcrypt work factor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	u, err := createUser(ctx, store, *username, *password, *email, *phone, *admin, *cost)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created user %s (id %d, role %s)\n", u.Username, u.ID, u.Role)
	return nil
}

func createUser(ctx context.Context, store storage.UserStore, username, password, email, phone string, admin bool, cost int) (user.User, error) {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if username == "" || password == "" || email == "" {
		return user.User{}, errors.New("-username, -password and -email are required")
	}
	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}
	role := user.RoleUser
	if admin {
		role = user.RoleAdmin
	}
	u, err := store.CreateUser(ctx, user.User{
		Username:     username,
		PasswordHash: hash,
		Email:        email,
		Phone:        strings.TrimSpace(phone),
		Role:         role,
	})
	if errors.Is(err, storage.ErrConflict) {
		return user.User{}, fmt.Errorf("username %q already exists", username)
	}
	return u, err
}

func setRole(ctx context.Context, cfg config.DatabaseConfig, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("set-role", flag.ContinueOnError)
	fs.SetOutput(out)
	username := fs.String("username", "", "account to change")
	role := fs.String("role", "", "user or admin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	u, err := changeRole(ctx, store, *username, *role)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "user %s is now %s\n", u.Username, u.Role)
	return nil
}

func changeRole(ctx context.Context, store storage.UserStore, username, role string) (user.User, error) {
	existing, err := store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, fmt.Errorf("user %q not found", username)
	}
	if err != nil {
		return user.User{}, err
	}
	return users.New(store, logger.Discard()).SetRole(ctx, existing.ID, role)
}
