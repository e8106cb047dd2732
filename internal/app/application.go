package app

import (
	"context"
	"fmt"
	"time"

	"github.com/R3E-Network/storefront/internal/app/metrics"
	"github.com/R3E-Network/storefront/internal/app/services/admin"
	"github.com/R3E-Network/storefront/internal/app/services/auth"
	"github.com/R3E-Network/storefront/internal/app/services/categories"
	"github.com/R3E-Network/storefront/internal/app/services/orders"
	"github.com/R3E-Network/storefront/internal/app/services/payments"
	"github.com/R3E-Network/storefront/internal/app/services/products"
	"github.com/R3E-Network/storefront/internal/app/services/users"
	"github.com/R3E-Network/storefront/internal/app/storage"
	"github.com/R3E-Network/storefront/internal/app/storage/memory"
	"github.com/R3E-Network/storefront/internal/app/system"
	"github.com/R3E-Network/storefront/internal/app/uploads"
	"github.com/R3E-Network/storefront/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users      storage.UserStore
	Products   storage.ProductStore
	Categories storage.CategoryStore
	Orders     storage.OrderStore
	Payments   storage.PaymentStore
}

// StoresFrom fills every slot from a single combined store.
func StoresFrom(s storage.Store) Stores {
	return Stores{Users: s, Products: s, Categories: s, Orders: s, Payments: s}
}

// Options carries the service settings that come from configuration.
type Options struct {
	Auth            auth.Config
	RestockOnCancel bool
	PaymentDelay    time.Duration
	UploadDir       string
	UploadMaxWidth  int
	// SkipSeed leaves an empty category table empty.
	SkipSeed bool
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	stores  Stores

	Auth       *auth.Service
	Users      *users.Service
	Products   *products.Service
	Categories *categories.Service
	Orders     *orders.Service
	Payments   *payments.Service
	Admin      *admin.Service
	Uploads    *uploads.Store
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	var mem *memory.Store
	fallback := func() *memory.Store {
		if mem == nil {
			mem = memory.New()
		}
		return mem
	}
	if stores.Users == nil {
		stores.Users = fallback()
	}
	if stores.Products == nil {
		stores.Products = fallback()
	}
	if stores.Categories == nil {
		stores.Categories = fallback()
	}
	if stores.Orders == nil {
		stores.Orders = fallback()
	}
	if stores.Payments == nil {
		stores.Payments = fallback()
	}

	authService, err := auth.New(stores.Users, opts.Auth, log.Named("auth"))
	if err != nil {
		return nil, fmt.Errorf("configure auth: %w", err)
	}

	uploadDir := opts.UploadDir
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	uploadStore, err := uploads.New(uploadDir, opts.UploadMaxWidth)
	if err != nil {
		return nil, fmt.Errorf("configure uploads: %w", err)
	}

	observer := metrics.Observer{}

	orderService := orders.New(stores.Orders, opts.RestockOnCancel, log.Named("orders"))
	orderService.AttachObserver(observer)

	paymentService := payments.New(stores.Payments, opts.PaymentDelay, log.Named("payments"))
	paymentService.AttachObserver(observer)

	application := &Application{
		manager:    system.NewManager(),
		log:        log,
		stores:     stores,
		Auth:       authService,
		Users:      users.New(stores.Users, log.Named("users")),
		Products:   products.New(stores.Products, log.Named("products")),
		Categories: categories.New(stores.Categories, log.Named("categories")),
		Orders:     orderService,
		Payments:   paymentService,
		Admin:      admin.New(stores.Users, stores.Products, stores.Orders),
		Uploads:    uploadStore,
	}

	if !opts.SkipSeed {
		if err := application.Categories.Seed(context.Background()); err != nil {
			return nil, fmt.Errorf("seed categories: %w", err)
		}
	}

	return application, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Logger returns the application logger.
func (a *Application) Logger() *logger.Logger {
	return a.log
}
