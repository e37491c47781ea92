// Package httpapi exposes the storefront pipeline over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/assets"
	"github.com/fjod/storefront/internal/clock"
	"github.com/fjod/storefront/internal/contact"
	"github.com/fjod/storefront/internal/heartbeat"
	"github.com/fjod/storefront/internal/session"
	"github.com/fjod/storefront/internal/upload"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Catalog interface {
	List(ctx context.Context) ([]domain.CartItem, error)
	Get(ctx context.Context, id string) (domain.CartItem, error)
}

type AssetRecorder interface {
	Generate(ctx context.Context, uid, prompt string) (*assets.Generated, error)
	RecordUpload(ctx context.Context, uid, name string) (domain.Asset, error)
}

type Uploader interface {
	Upload(ctx context.Context, f upload.File) (*upload.Receipt, error)
	Backup(ctx context.Context, uid string, data []byte) (*upload.BackupReceipt, error)
}

type Profiles interface {
	Ensure(ctx context.Context, uid, name, email string) (*domain.UserProfile, error)
	Load(ctx context.Context, uid string) (*domain.UserProfile, error)
}

type ContactForm interface {
	Submit(ctx context.Context, uid string, f contact.Form) (string, error)
}

type Assistant interface {
	Generate(ctx context.Context, prompt, systemInstruction string) string
}

type StatusReporter interface {
	Report() heartbeat.Report
}

type Deps struct {
	Sessions  *session.Manager
	Catalog   Catalog
	Assets    AssetRecorder
	Uploads   Uploader
	Profiles  Profiles
	Contact   ContactForm
	Assistant Assistant
	Status    StatusReporter
	Metrics   http.Handler
	Clock     clock.Clock
	Logger    *slog.Logger
}

type Server struct {
	Deps
	requestTimeout time.Duration
}

func NewServer(deps Deps, requestTimeout time.Duration) *Server {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	deps.Logger = logger.OrDefault(deps.Logger)
	return &Server{Deps: deps, requestTimeout: requestTimeout}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/system/status", s.systemStatus)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.requestTimeout))
			r.Use(middleware.Compress(5))

			r.Get("/catalog", s.listCatalog)
			r.Post("/contact", s.withSession(s.submitContact))
			r.Post("/assistant", s.askAssistant)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", s.withSession(s.getCart))
				r.Post("/items", s.withSession(s.addItem))
				r.Post("/custom", s.withSession(s.addCustomProject))
				r.Delete("/items/{index}", s.withSession(s.removeItem))
			})

			r.Post("/checkout", s.withSession(s.submitCheckout))
			r.Get("/checkout/status", s.withSession(s.checkoutStatus))

			r.Post("/assets", s.withSession(s.generateAsset))
			r.Post("/uploads", s.withSession(s.uploadFile))
			r.Post("/backup", s.withSession(s.backup))

			r.Get("/dashboard", s.withSession(s.getDashboard))
			r.Get("/profile", s.withSession(s.getProfile))
			r.Post("/profile", s.withSession(s.saveProfile))
			r.Delete("/session", s.endSession)
		})

		// Long-lived; kept out of the request timeout.
		r.Get("/dashboard/live", s.withSession(s.liveDashboard))
	})

	return otelhttp.NewHandler(r, "storefront")
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := s.Clock.Now()
		next.ServeHTTP(ww, r)
		s.Logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", s.Clock.Now().Sub(started),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
