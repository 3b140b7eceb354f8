// File path: internal/orchestrator/options.go
package orchestrator

import "github.com/nicodishanthj/Katral_copybook/internal/catalog"

type Option func(*options)

type options struct {
	catalog         *catalog.Store
	archiveDisabled bool
}

// WithCatalog injects an open catalog. The orchestrator does not close it.
func WithCatalog(store *catalog.Store) Option {
	return func(o *options) {
		o.catalog = store
	}
}

// WithArchiveDisabled skips creating the record archive directory.
func WithArchiveDisabled() Option {
	return func(o *options) {
		o.archiveDisabled = true
	}
}
