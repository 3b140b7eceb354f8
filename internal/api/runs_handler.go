// File path: internal/api/runs_handler.go
package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/nicodishanthj/Katral_copybook/internal/common"
	"github.com/nicodishanthj/Katral_copybook/internal/common/telemetry"
	"github.com/nicodishanthj/Katral_copybook/internal/registry"
)

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	name := registry.NormalizeName(r.URL.Query().Get("copybook"))
	runs, err := s.orch.Catalog().ListRuns(r.Context(), name, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("list runs: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	query := r.URL.Query()
	entries := common.LogEntries(common.LogFilter{
		Component: strings.TrimSpace(query.Get("component")),
		Level:     strings.TrimSpace(query.Get("level")),
		Limit:     limit,
	})
	if entries == nil {
		entries = []common.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, telemetry.Snapshot())
}
