// Package httpapi routes havenserver's REST surface: identity-key
// challenge/login, archive export job submission and countersigning,
// SKDM offline inbox pickup, and the relay's WebSocket upgrade. It
// wires internal/archive and internal/senderkey behind
// internal/auth/internal/middleware, mirroring the parent backend's
// internal/handlers package routed by cmd/chatserver/main.go.
package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jaydenbeard/haven/internal/auth"
	"github.com/jaydenbeard/haven/internal/blobstore"
	"github.com/jaydenbeard/haven/internal/metrics"
	"github.com/jaydenbeard/haven/internal/middleware"
	"github.com/jaydenbeard/haven/internal/relay"
	"github.com/jaydenbeard/haven/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps collects everything the handlers need. cmd/havenserver builds
// one of these and passes it to NewRouter.
type Deps struct {
	Auth      *auth.Service
	RateLimit *middleware.RateLimiter
	Store     Store
	Blobs     *blobstore.Store
	Hub       *relay.Hub
	Inbox     *relay.Inbox
	ServerKey []byte // server Ed25519 identity private key, for countersigning
	ServerID  string

	MaxAttachmentSize int64
	MaxArchiveSize    int64
}

// Store is the subset of internal/store's backends the HTTP API needs,
// satisfied by both *store.PostgresStore and *store.SQLiteStore.
type Store interface {
	CreateJob(requesterKey, scope, scopeTarget string) (*store.ExportJob, error)
	UpdateJobStatus(id uuid.UUID, status store.JobStatus, blobPath, errMsg string) error
	GetJob(id uuid.UUID) (*store.ExportJob, error)
}

// NewRouter builds the full mux.Router, wrapping protected routes with
// JWT auth and rate limiting.
func NewRouter(d *Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(metrics.Middleware)

	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	challenges := newChallengeStore()
	api.Handle("/auth/challenge", d.RateLimit.Middleware(http.HandlerFunc(challengeHandler(challenges)))).Methods("POST")
	api.Handle("/auth/login", d.RateLimit.Middleware(http.HandlerFunc(loginHandler(d.Auth, challenges)))).Methods("POST")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(d.Auth, nil))
	protected.Use(d.RateLimit.Middleware)

	protected.HandleFunc("/archive/export", createExportHandler(d)).Methods("POST")
	protected.HandleFunc("/archive/export/{jobId}", getExportHandler(d)).Methods("GET")

	protected.HandleFunc("/attachments/upload-url", attachmentUploadURLHandler(d)).Methods("POST")
	protected.HandleFunc("/attachments/{attachmentId}/download-url", attachmentDownloadURLHandler(d)).Methods("GET")

	protected.HandleFunc("/skdm/pending", skdmPendingHandler(d)).Methods("GET")

	// The relay's own WebSocket handshake authenticates itself (see
	// relay_handlers.go) so it sits outside the bearer-JWT middleware.
	router.HandleFunc("/ws", relayUpgradeHandler(d)).Methods("GET")

	return router
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
