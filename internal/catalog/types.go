// File path: internal/catalog/types.go
package catalog

import "time"

// Copybook is a registered copybook definition row.
type Copybook struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Fingerprint  string    `db:"fingerprint" json:"fingerprint"`
	Source       string    `db:"source" json:"source,omitempty"`
	RecordLength int       `db:"record_length" json:"record_length"`
	FieldCount   int       `db:"field_count" json:"field_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Run status values.
const (
	RunSucceeded = "succeeded"
	RunPartial   = "partial"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// Run records one batch decode.
type Run struct {
	ID         string    `db:"id" json:"id"`
	CopybookID int64     `db:"copybook_id" json:"-"`
	Copybook   string    `db:"copybook" json:"copybook"`
	Input      string    `db:"input" json:"input,omitempty"`
	Records    int       `db:"records" json:"records"`
	Failures   int       `db:"failures" json:"failures"`
	Status     string    `db:"status" json:"status"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
