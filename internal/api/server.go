// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/nicodishanthj/Katral_copybook/internal/catalog"
	"github.com/nicodishanthj/Katral_copybook/internal/common"
	"github.com/nicodishanthj/Katral_copybook/internal/copybook"
	"github.com/nicodishanthj/Katral_copybook/internal/copybook/lexer"
	"github.com/nicodishanthj/Katral_copybook/internal/orchestrator"
)

const (
	maxSourceBytes = 4 << 20
	maxDecodeBytes = 64 << 20
)

type Server struct {
	router chi.Router
	orch   *orchestrator.Orchestrator
}

// NewServer builds the HTTP handler over an initialised orchestrator.
func NewServer(orch *orchestrator.Orchestrator) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator required")
	}
	if orch.Catalog() == nil || orch.Registry() == nil {
		return nil, fmt.Errorf("catalog store unavailable")
	}
	srv := &Server{router: chi.NewRouter(), orch: orch}
	srv.routes()
	common.Logger().Info("api: server ready", "archive", orch.Archive() != nil)
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("api: request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Get("/v1/logs", s.handleLogs)
	s.router.Get("/v1/metrics", s.handleMetrics)
	s.router.Get("/v1/runs", s.handleRuns)

	s.router.Route("/v1/copybooks", func(r chi.Router) {
		r.Get("/", s.handleListCopybooks)
		r.Post("/", s.handleRegisterCopybook)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetCopybook)
			r.Delete("/", s.handleDeleteCopybook)
			r.Post("/decode", s.handleDecode)
			r.Get("/records", s.handleArchivedRecords)
		})
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		syntax *lexer.SyntaxError
		def    *copybook.DefinitionError
		layout *copybook.LayoutError
	)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &syntax), errors.As(err, &def), errors.As(err, &layout):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("api: request failed", "status", status, "error", err)
	} else {
		logger.Warn("api: request failed", "status", status, "error", err)
	}
	body := map[string]string{"error": err.Error()}
	if code, ok := copybook.CodeOf(err); ok {
		body["code"] = string(code)
	}
	writeJSON(w, status, body)
}
