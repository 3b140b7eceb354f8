// File path: internal/api/types.go
package api

import (
	"github.com/nicodishanthj/Katral_copybook/internal/archive"
	"github.com/nicodishanthj/Katral_copybook/internal/catalog"
	"github.com/nicodishanthj/Katral_copybook/internal/copybook"
)

type registerRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

type decodeRequest struct {
	// Records are base64 encoded raw records.
	Records [][]byte `json:"records"`
}

type decodeResponse struct {
	Copybook string          `json:"copybook"`
	Records  []archive.Entry `json:"records"`
	Failures int             `json:"failures"`
	Archived bool            `json:"archived,omitempty"`
}

type fieldView struct {
	Path       string   `json:"path"`
	Level      int      `json:"level"`
	Offset     int      `json:"offset"`
	Length     int      `json:"length"`
	Occurs     int      `json:"occurs,omitempty"`
	Type       string   `json:"type"`
	Redefines  string   `json:"redefines,omitempty"`
	Conditions []string `json:"conditions,omitempty"`
}

type copybookView struct {
	catalog.Copybook
	Fields []fieldView `json:"fields"`
}

func viewLayout(layout *copybook.Layout) []fieldView {
	fields := layout.Fields()
	out := make([]fieldView, 0, len(fields))
	for _, f := range fields {
		def := f.Definition
		view := fieldView{
			Path:      f.Path,
			Level:     def.Level(),
			Offset:    f.Offset,
			Length:    f.Length,
			Type:      def.DataType().String(),
			Redefines: def.Redefines(),
		}
		if def.HasOccurs() {
			view.Occurs = f.Occurs
		}
		if conds := def.Conditions(); conds != nil {
			view.Conditions = conds.Labels()
		}
		out = append(out, view)
	}
	return out
}
