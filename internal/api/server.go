// Package api serves the backend functions, the data routes and the live
// wizard and studio sessions over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/apierror"
	"github.com/raine/vintifi/internal/auth"
	"github.com/raine/vintifi/internal/blob"
	"github.com/raine/vintifi/internal/metrics"
	"github.com/raine/vintifi/internal/notify"
	"github.com/raine/vintifi/internal/session"
	"github.com/raine/vintifi/internal/storage"
	"github.com/raine/vintifi/internal/studio"
	"github.com/raine/vintifi/internal/wizard"
)

const (
	// maxRequestBody is the maximum allowed JSON request body size (1 MB).
	maxRequestBody int64 = 1 << 20
	// maxUploadBody bounds photo uploads.
	maxUploadBody int64 = 25 << 20

	// SessionIdleTimeout is how long a live session may go untouched before
	// CloseIdleSessions stops it. Wizard drafts survive through their
	// snapshot; studio state is discarded.
	SessionIdleTimeout = 30 * time.Minute
)

// Store is the persistence the handlers read and write directly.
type Store interface {
	session.Store
	EnsureProfile(userID, email string) (*storage.Profile, error)
	UpsertListing(userID string, d adapter.ListingDraft) (string, error)
	GetListing(userID, id string) (*adapter.Listing, error)
	ListListings(userID string) ([]adapter.Listing, error)
}

type ImageService interface {
	Process(ctx context.Context, user auth.User, req adapter.ProcessImageRequest) (*adapter.ProcessImageResponse, error)
}

type ListingOptimiser interface {
	Optimise(ctx context.Context, user auth.User, req adapter.OptimiseRequest) (*adapter.OptimiseResult, error)
}

type PriceChecker interface {
	Check(ctx context.Context, user auth.User, req adapter.PriceCheckRequest) (*adapter.PriceCheckResult, error)
}

type ListingImporter interface {
	Import(ctx context.Context, rawURL string) (*adapter.ImportedItem, error)
}

type Billing interface {
	CreateCheckout(ctx context.Context, user auth.User, origin string, req adapter.CheckoutRequest) (*adapter.CheckoutResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// Deps are the services behind the routes. Billing may be nil.
type Deps struct {
	Store      Store
	Auth       auth.Authenticator
	Images     ImageService
	Optimiser  ListingOptimiser
	Pricing    PriceChecker
	Importer   ListingImporter
	Billing    Billing
	Blobs      *blob.Store
	Metrics    *metrics.Metrics
	Notifier   notify.Notifier
	CORSOrigin string
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	Deps
	mux     *http.ServeMux
	mailbox *session.Mailbox
	wizards *session.Registry[*wizard.Controller]
	studios *session.Registry[*studio.Machine]
}

// New creates a new API server.
func New(d Deps) *Server {
	if d.Notifier == nil {
		d.Notifier = notify.Noop{}
	}
	s := &Server{Deps: d, mux: http.NewServeMux(), mailbox: session.NewMailbox(d.Store)}
	s.wizards = session.NewRegistry("wizard", func(userID string) (*wizard.Controller, error) {
		return wizard.NewController(userID, s.backendFor(auth.User{ID: userID}), d.Store, s.mailbox), nil
	})
	s.studios = session.NewRegistry("studio", func(userID string) (*studio.Machine, error) {
		return studio.NewMachine(userID), nil
	})
	s.routes()
	return s
}

// Handler returns the root http.Handler with middleware applied. Blobs and
// metrics are served outside the JSON middleware.
func (s *Server) Handler() http.Handler {
	root := http.NewServeMux()
	if s.Blobs != nil {
		root.Handle("GET /blobs/", http.StripPrefix("/blobs/", s.Blobs.Handler()))
	}
	if s.Metrics != nil {
		root.Handle("GET /metrics", s.Metrics.Handler())
	}
	root.Handle("/", corsMiddleware(s.CORSOrigin, limitBody(jsonContent(s.mux))))
	return root
}

// Shutdown stops every live session.
func (s *Server) Shutdown() {
	s.wizards.Shutdown()
	s.studios.Shutdown()
}

// CloseIdleSessions stops sessions unused for SessionIdleTimeout and returns
// how many were closed.
func (s *Server) CloseIdleSessions() int {
	return s.wizards.RemoveIdle(SessionIdleTimeout) + s.studios.RemoveIdle(SessionIdleTimeout)
}

func (s *Server) routes() {
	s.handle("GET /healthz", s.handleHealth)

	s.handle("POST /functions/v1/vintography", s.authed(s.handleVintography))
	s.handle("POST /functions/v1/optimize-listing", s.authed(s.handleOptimise))
	s.handle("POST /functions/v1/price-check", s.authed(s.handlePriceCheck))
	s.handle("POST /functions/v1/scrape-vinted", s.authed(s.handleImport))
	s.handle("POST /functions/v1/upload", s.authed(s.handleUpload))
	s.handle("POST /functions/v1/create-checkout", s.authed(s.handleCheckout))
	s.handle("POST /functions/v1/stripe-webhook", s.handleStripeWebhook)

	s.handle("GET /api/profile", s.authed(s.handleProfile))
	s.handle("GET /api/listings", s.authed(s.handleListListings))
	s.handle("POST /api/listings", s.authed(s.handleUpsertListing))
	s.handle("GET /api/listings/{id}", s.authed(s.handleGetListing))

	s.handle("GET /app/wizard", s.authed(s.handleWizardState))
	s.handle("POST /app/wizard/actions", s.authed(s.handleWizardAction))
	s.handle("POST /app/wizard/import", s.authed(s.handleWizardImport))
	s.handle("POST /app/wizard/photos", s.authed(s.handleWizardPhoto))
	s.handle("POST /app/wizard/enhance/{index}", s.authed(s.handleWizardEnhance))
	s.handle("POST /app/wizard/optimise", s.authed(s.wizardOp(func(ctx context.Context, c *wizard.Controller) (wizard.State, error) { return c.Optimise(ctx) })))
	s.handle("POST /app/wizard/price", s.authed(s.wizardOp(func(ctx context.Context, c *wizard.Controller) (wizard.State, error) { return c.PriceCheck(ctx) })))
	s.handle("POST /app/wizard/save", s.authed(s.wizardOp(func(ctx context.Context, c *wizard.Controller) (wizard.State, error) { return c.Save(ctx) })))
	s.handle("POST /app/wizard/next", s.authed(s.wizardOp(func(_ context.Context, c *wizard.Controller) (wizard.State, error) { return c.Next() })))
	s.handle("POST /app/wizard/prev", s.authed(s.wizardOp(func(_ context.Context, c *wizard.Controller) (wizard.State, error) { return c.Prev() })))
	s.handle("POST /app/wizard/reset", s.authed(s.wizardOp(func(_ context.Context, c *wizard.Controller) (wizard.State, error) { return c.Reset() })))

	s.handle("GET /app/studio", s.authed(s.handleStudioState))
	s.handle("DELETE /app/studio", s.authed(s.handleStudioClose))
	s.handle("GET /app/studio/presets", s.authed(s.handleStudioPresets))
	s.handle("POST /app/studio/actions", s.authed(s.handleStudioAction))
	s.handle("POST /app/studio/run", s.authed(s.handleStudioRun))
	s.handle("POST /app/studio/preset/{name}", s.authed(s.handleStudioPreset))
}

// handle registers h and counts its responses under the route pattern.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.Metrics.HTTPRequest(pattern, rec.status)
	}))
}

type userHandler func(w http.ResponseWriter, r *http.Request, user auth.User)

// authed resolves the bearer token before calling h.
func (s *Server) authed(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r.Header.Get("Authorization"))
		if token == "" || s.Auth == nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		user, err := s.Auth.Authenticate(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthenticated) {
				log.Warn().Err(err).Msg("token verification failed")
			}
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		h(w, r.WithContext(auth.WithUser(r.Context(), user)), *user)
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// corsMiddleware sets CORS headers. An empty origin allows any.
func corsMiddleware(origin string, next http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Stripe-Signature")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body; photo uploads get a larger limit.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := maxRequestBody
		if strings.HasSuffix(r.URL.Path, "/upload") || strings.HasSuffix(r.URL.Path, "/photos") {
			limit = maxUploadBody
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError reports a backend failure with the status and message
// the service attached.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierror.Status(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, apierror.Message(err))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"wizards":  s.wizards.Len(),
		"studios":  s.studios.Len(),
		"billing":  s.Billing != nil,
		"importer": s.Importer != nil,
	})
}
