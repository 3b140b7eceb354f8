// File path: internal/api/decode_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/nicodishanthj/Katral_copybook/internal/archive"
	"github.com/nicodishanthj/Katral_copybook/internal/common"
	"github.com/nicodishanthj/Katral_copybook/internal/common/telemetry"
	"github.com/nicodishanthj/Katral_copybook/internal/copybook"
)

// handleDecode decodes either the raw request body as one record or a JSON
// body {"records": [base64...]}.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entry, err := s.orch.Registry().Get(ctx, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	query := r.URL.Query()
	var extra []copybook.DecodeOption
	if name := strings.TrimSpace(query.Get("encoding")); name != "" {
		enc, err := copybook.ParseEncoding(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		extra = append(extra, copybook.WithEncoding(enc))
	}
	keep := false
	if raw := strings.TrimSpace(query.Get("archive")); raw != "" {
		keep, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("archive must be a boolean"))
			return
		}
	}
	if keep && s.orch.Archive() == nil {
		writeError(w, http.StatusConflict, fmt.Errorf("archive disabled"))
		return
	}

	raws, err := readRecords(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	decoder := s.orch.NewDecoder(entry.Layout, extra...)
	resp := decodeResponse{Copybook: entry.Copybook.Name, Records: make([]archive.Entry, 0, len(raws))}
	for i, raw := range raws {
		start := time.Now()
		rec, err := decoder.Decode(raw)
		e := archive.NewEntry(i, rec, err)
		var codes []string
		if e.Failed() {
			resp.Failures++
			code, ok := copybook.CodeOf(err)
			if !ok {
				code = "unknown"
			}
			codes = append(codes, string(code))
		}
		telemetry.RecordDecode(time.Since(start), codes...)
		resp.Records = append(resp.Records, e)
	}
	if keep {
		if err := s.orch.Archive().AppendRecords(ctx, entry.Copybook.Name, resp.Records); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		resp.Archived = true
	}
	common.Logger().Debug("api: records decoded", "copybook", entry.Copybook.Name, "records", len(raws), "failures", resp.Failures)
	writeJSON(w, http.StatusOK, resp)
}

func readRecords(w http.ResponseWriter, r *http.Request) ([][]byte, error) {
	body := http.MaxBytesReader(w, r.Body, maxDecodeBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req decodeRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid request body: %w", err)
		}
		if len(req.Records) == 0 {
			return nil, fmt.Errorf("records required")
		}
		return req.Records, nil
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty record")
	}
	return [][]byte{data}, nil
}
