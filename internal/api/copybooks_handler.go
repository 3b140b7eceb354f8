// File path: internal/api/copybooks_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/nicodishanthj/Katral_copybook/internal/archive"
)

func (s *Server) handleListCopybooks(w http.ResponseWriter, r *http.Request) {
	copybooks, err := s.orch.Registry().List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("list copybooks: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"copybooks": copybooks})
}

func (s *Server) handleRegisterCopybook(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSourceBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Source) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("name and source required"))
		return
	}
	entry, err := s.orch.Registry().Register(r.Context(), req.Name, []byte(req.Source))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, copybookView{Copybook: entry.Copybook, Fields: viewLayout(entry.Layout)})
}

func (s *Server) handleGetCopybook(w http.ResponseWriter, r *http.Request) {
	entry, err := s.orch.Registry().Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, copybookView{Copybook: entry.Copybook, Fields: viewLayout(entry.Layout)})
}

func (s *Server) handleDeleteCopybook(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.DeleteCopybook(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArchivedRecords(w http.ResponseWriter, r *http.Request) {
	store := s.orch.Archive()
	if store == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("archive disabled"))
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	name := chi.URLParam(r, "name")
	entries, err := store.Records(r.Context(), name, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []archive.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"copybook": strings.ToUpper(name), "records": entries})
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
