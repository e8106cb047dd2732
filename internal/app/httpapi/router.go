// Package httpapi exposes the storefront services as a JSON REST API under
// /api, plus the unprefixed health, metrics and uploads endpoints.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	app "github.com/R3E-Network/storefront/internal/app"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/metrics"
	"github.com/R3E-Network/storefront/internal/app/uploads"
	svcerrors "github.com/R3E-Network/storefront/internal/errors"
	"github.com/R3E-Network/storefront/internal/httputil"
	"github.com/R3E-Network/storefront/internal/middleware"
	"github.com/R3E-Network/storefront/pkg/logger"
)

// DefaultMaxUploadBytes bounds a single uploaded image.
const DefaultMaxUploadBytes = 5 << 20

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	// AuthRateLimit and AuthRateBurst throttle register and login per client.
	AuthRateLimit  float64
	AuthRateBurst  int
	MaxUploadBytes int64
	AuditLogFile   string
	Logger         *logger.Logger
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app       *app.Application
	log       *logger.Logger
	maxUpload int64
	audit     *auditLog
}

// API is the assembled HTTP handler.
type API struct {
	handler http.Handler
	limiter *middleware.RateLimiter
	sink    *fileAuditSink
}

// New builds the router and its middleware chain.
func New(application *app.Application, opts Options) (*API, error) {
	log := opts.Logger
	if log == nil {
		log = application.Logger()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.AuthRateLimit <= 0 {
		opts.AuthRateLimit = 1
	}
	if opts.AuthRateBurst <= 0 {
		opts.AuthRateBurst = 5
	}

	api := &API{}
	var sink auditSink
	if opts.AuditLogFile != "" {
		fs, err := newFileAuditSink(opts.AuditLogFile)
		if err != nil {
			return nil, err
		}
		api.sink = fs
		sink = fs
	}

	h := &handler{
		app:       application,
		log:       log.Named("httpapi"),
		maxUpload: opts.MaxUploadBytes,
		audit:     newAuditLog(500, sink),
	}

	authn := middleware.NewAuthMiddleware(application.Auth, log.Named("auth"))
	api.limiter = middleware.NewRateLimiter(opts.AuthRateLimit, opts.AuthRateBurst, log.Named("ratelimit"))

	authed := func(fn http.HandlerFunc) http.Handler {
		return authn.Handler(fn)
	}
	admin := func(fn http.HandlerFunc) http.Handler {
		return authn.Handler(middleware.RequireRole(user.RoleAdmin)(h.audit.middleware(fn)))
	}
	throttled := func(fn http.HandlerFunc) http.Handler {
		return api.limiter.Handler(fn)
	}

	root := mux.NewRouter()
	root.HandleFunc("/health", h.health).Methods(http.MethodGet)
	root.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	root.PathPrefix(uploads.URLPrefix).Handler(application.Uploads.Handler()).Methods(http.MethodGet, http.MethodHead)

	r := root.PathPrefix("/api").Subrouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	r.Handle("/register", throttled(h.register)).Methods(http.MethodPost)
	r.Handle("/login", throttled(h.login)).Methods(http.MethodPost)

	r.Handle("/users/me", authed(h.me)).Methods(http.MethodGet)
	r.Handle("/users/me", authed(h.updateMe)).Methods(http.MethodPut)

	r.HandleFunc("/products", h.listProducts).Methods(http.MethodGet)
	r.Handle("/products", authed(h.createProduct)).Methods(http.MethodPost)
	r.HandleFunc("/products/{id:[0-9]+}", h.getProduct).Methods(http.MethodGet)
	r.Handle("/products/{id:[0-9]+}", authed(h.updateProduct)).Methods(http.MethodPut)
	r.Handle("/products/{id:[0-9]+}", authed(h.deleteProduct)).Methods(http.MethodDelete)

	r.HandleFunc("/categories", h.listCategories).Methods(http.MethodGet)
	r.Handle("/categories", authed(h.createCategory)).Methods(http.MethodPost)

	r.Handle("/orders", authed(h.createOrder)).Methods(http.MethodPost)
	r.Handle("/orders", authed(h.listOrders)).Methods(http.MethodGet)
	r.Handle("/orders/{id:[0-9]+}/status", authed(h.updateOrderStatus)).Methods(http.MethodPut)

	r.Handle("/payments", authed(h.pay)).Methods(http.MethodPost)

	r.Handle("/admin/users", admin(h.adminUsers)).Methods(http.MethodGet)
	r.Handle("/admin/users/{id:[0-9]+}/role", admin(h.adminSetRole)).Methods(http.MethodPut)
	r.Handle("/admin/orders", admin(h.adminOrders)).Methods(http.MethodGet)
	r.Handle("/admin/products", admin(h.adminProducts)).Methods(http.MethodGet)
	r.Handle("/admin/stats", admin(h.adminStats)).Methods(http.MethodGet)
	r.Handle("/admin/audit", admin(h.adminAudit)).Methods(http.MethodGet)

	root.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteServiceError(w, r, svcerrors.NotFound("Route"))
	})
	root.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorResponse(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	var chain http.Handler = root
	chain = middleware.NewCORSMiddleware(opts.AllowedOrigins).Handler(chain)
	chain = middleware.LoggingMiddleware(log.Named("http"))(chain)
	chain = metrics.InstrumentHandler(chain)
	api.handler = chain
	return api, nil
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// RateLimiter exposes the login throttle so its idle entries can be swept.
func (a *API) RateLimiter() *middleware.RateLimiter {
	return a.limiter
}

// Close releases the audit sink, if any.
func (a *API) Close() error {
	if a.sink == nil {
		return nil
	}
	return a.sink.Close()
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, svcerrors.InvalidInput("invalid id")
	}
	return id, nil
}

// caller returns the identity attached by the auth middleware.
func caller(r *http.Request) user.Identity {
	id, _ := middleware.IdentityFrom(r.Context())
	return id
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if se := svcerrors.GetServiceError(err); se == nil || se.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithContext(r.Context()).WithError(err).Error("request failed")
	}
	httputil.WriteServiceError(w, r, err)
}

type messageResponse struct {
	Message string `json:"message"`
}
