// Package runtime turns a configuration into a running storefront process.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	app "github.com/R3E-Network/storefront/internal/app"
	"github.com/R3E-Network/storefront/internal/app/httpapi"
	"github.com/R3E-Network/storefront/internal/app/services/auth"
	"github.com/R3E-Network/storefront/internal/app/system"
	"github.com/R3E-Network/storefront/internal/config"
	"github.com/R3E-Network/storefront/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg    config.Config
	log    *logger.Logger
	app    *app.Application
	api    *httpapi.API
	server *httpServer
	db     *sqlx.DB
}

// NewApplication constructs the process from cfg. The database schema is
// applied and default categories are seeded before it returns.
func NewApplication(ctx context.Context, cfg config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.New(cfg.Logging)

	stores, db, err := buildStores(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}
	closeDB := func() {
		if db != nil {
			db.Close()
		}
	}

	application, err := app.New(stores, app.Options{
		Auth: auth.Config{
			Secret:     cfg.Auth.JWTSecret,
			TokenTTL:   cfg.Auth.TokenTTL,
			BcryptCost: cfg.Auth.BcryptCost,
		},
		RestockOnCancel: cfg.Orders.RestockOnCancel,
		PaymentDelay:    cfg.Payments.Delay,
		UploadDir:       cfg.Uploads.Dir,
		UploadMaxWidth:  cfg.Uploads.MaxWidthPx,
	}, log)
	if err != nil {
		closeDB()
		return nil, err
	}

	api, err := httpapi.New(application, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins(),
		AuthRateLimit:  cfg.Auth.RateLimitRPS,
		AuthRateBurst:  cfg.Auth.RateLimitBurst,
		MaxUploadBytes: cfg.Uploads.MaxBytes,
		AuditLogFile:   cfg.Server.AuditLogFile,
		Logger:         log,
	})
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("configure http api: %w", err)
	}

	jobs := newMaintenance(log.Named("maintenance"))
	jobs.every("ratelimit-sweep", limiterSweepInterval, sweepLimiter(api.RateLimiter(), limiterSweepInterval))

	server := newHTTPServer(cfg.Server, cfg.Addr(), api, log.Named("http-server"))
	for _, svc := range []system.Service{jobs, server} {
		if err := application.Attach(svc); err != nil {
			closeDB()
			return nil, err
		}
	}

	log.WithFields(map[string]interface{}{
		"driver": cfg.Database.Driver,
		"addr":   cfg.Addr(),
	}).Info("storefront configured")

	return &Application{
		cfg:    cfg,
		log:    log,
		app:    application,
		api:    api,
		server: server,
		db:     db,
	}, nil
}

// App exposes the composed services.
func (a *Application) App() *app.Application {
	return a.app
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.api
}

// Run starts the background services and blocks until ctx is cancelled or the
// listener fails. It does not shut down; call Shutdown afterwards.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-a.server.errors():
		return err
	}
}

// Shutdown gracefully stops the HTTP server and releases the database.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := a.app.Stop(shutdownCtx)

	if cerr := a.api.Close(); cerr != nil {
		a.log.WithError(cerr).Warn("error closing audit log")
	}
	if a.db != nil {
		if cerr := a.db.Close(); cerr != nil {
			a.log.WithError(cerr).Warn("error closing database connection")
		}
	}
	return err
}

// httpServer runs the listener as a lifecycle-managed service.
type httpServer struct {
	srv  *http.Server
	log  *logger.Logger
	errc chan error
}

func newHTTPServer(cfg config.ServerConfig, addr string, handler http.Handler, log *logger.Logger) *httpServer {
	return &httpServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		log:  log,
		errc: make(chan error, 1),
	}
}

func (s *httpServer) Name() string { return "http-server" }

// Start binds the listener synchronously so address errors surface here.
func (s *httpServer) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.log.Infof("HTTP server listening on %s", ln.Addr())
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errc <- err
		}
	}()
	return nil
}

func (s *httpServer) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *httpServer) errors() <-chan error {
	return s.errc
}
