// Package api is the HTTP surface of the try-on service: per-operator
// sessions, fabric uploads, generation and usage reporting.
//
// Endpoints:
//
//	GET    /api/health
//	POST   /api/sessions
//	GET    /api/sessions/{id}
//	DELETE /api/sessions/{id}
//	POST   /api/sessions/{id}/step
//	PUT    /api/sessions/{id}/model
//	DELETE /api/sessions/{id}/model
//	POST   /api/sessions/{id}/garments/{kind}
//	PUT    /api/sessions/{id}/fabrics/{kind}
//	DELETE /api/sessions/{id}/fabrics/{kind}
//	PATCH  /api/sessions/{id}/options
//	POST   /api/sessions/{id}/prompt/check
//	POST   /api/sessions/{id}/generate
//	POST   /api/sessions/{id}/reset
//	GET    /api/usage
//	DELETE /api/usage
package api

import (
	"context"
	"net/http"

	"github.com/fpang/virtual-tryon/internal/studio"
	"github.com/fpang/virtual-tryon/internal/usage"
	"github.com/fpang/virtual-tryon/internal/workflow"
)

const (
	maxJSONBody = 1 << 20
	// maxUploadBody covers a document plus its page preview.
	maxUploadBody = 80 << 20
	// multipartMemory is held in memory before spilling parts to disk.
	multipartMemory = 32 << 20
)

// ServiceName is reported by the health check.
const ServiceName = "virtual-tryon"

// UsageLedger is the part of *usage.Ledger the API serves.
type UsageLedger interface {
	Stats() usage.Stats
	Reset(ctx context.Context) error
}

// Options configures cross-origin access and origin verification.
type Options struct {
	AllowedOrigins     []string
	OriginVerifySecret string
}

// Server routes HTTP requests to the session registry, the generation
// service and the usage ledger.
type Server struct {
	sessions *workflow.Registry
	studio   *studio.Service
	ledger   UsageLedger
	opts     Options
}

// NewServer wires a Server.
func NewServer(sessions *workflow.Registry, svc *studio.Service, ledger UsageLedger, opts Options) *Server {
	return &Server{sessions: sessions, studio: svc, ledger: ledger, opts: opts}
}

// Handler returns the routed handler wrapped in the middleware stack.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handleHealth)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/step", s.handleStep)
	mux.HandleFunc("PUT /api/sessions/{id}/model", s.handleSetModel)
	mux.HandleFunc("DELETE /api/sessions/{id}/model", s.handleClearModel)
	mux.HandleFunc("POST /api/sessions/{id}/garments/{kind}", s.handleToggleGarment)
	mux.HandleFunc("PUT /api/sessions/{id}/fabrics/{kind}", s.handleSetFabric)
	mux.HandleFunc("DELETE /api/sessions/{id}/fabrics/{kind}", s.handleClearFabric)
	mux.HandleFunc("PATCH /api/sessions/{id}/options", s.handleOptions)
	mux.HandleFunc("POST /api/sessions/{id}/prompt/check", s.handlePromptCheck)
	mux.HandleFunc("POST /api/sessions/{id}/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/sessions/{id}/reset", s.handleReset)

	mux.HandleFunc("GET /api/usage", s.handleUsageStats)
	mux.HandleFunc("DELETE /api/usage", s.handleUsageReset)

	return s.chain(mux)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": ServiceName,
	})
}
