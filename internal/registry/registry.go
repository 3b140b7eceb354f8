// File path: internal/registry/registry.go
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nicodishanthj/Katral_copybook/internal/catalog"
	"github.com/nicodishanthj/Katral_copybook/internal/common"
	"github.com/nicodishanthj/Katral_copybook/internal/common/telemetry"
	"github.com/nicodishanthj/Katral_copybook/internal/copybook"
	"github.com/nicodishanthj/Katral_copybook/internal/copybook/lexer"
)

// Catalog is the persistence the registry needs. *catalog.Store satisfies it.
type Catalog interface {
	SaveCopybook(ctx context.Context, cb catalog.Copybook) (*catalog.Copybook, error)
	GetCopybook(ctx context.Context, name string) (*catalog.Copybook, error)
	ListCopybooks(ctx context.Context) ([]catalog.Copybook, error)
	DeleteCopybook(ctx context.Context, name string) error
}

// Compiled is an immutable compiled copybook. It may be shared by any number
// of decoders and names.
type Compiled struct {
	Fingerprint string
	Tokens      []copybook.Token
	Tree        *copybook.FieldDefinition
	Layout      *copybook.Layout
}

// Entry pairs a catalog row with its compiled layout.
type Entry struct {
	Copybook catalog.Copybook
	*Compiled
}

// Option configures a Registry.
type Option func(*Registry)

// WithCacheSize bounds the number of compiled layouts kept in memory.
func WithCacheSize(n int) Option {
	return func(r *Registry) { r.cacheSize = n }
}

// WithMaxRecordLength is passed to the layout resolver.
func WithMaxRecordLength(n int) Option {
	return func(r *Registry) { r.maxRecordLength = n }
}

// WithSyntheticRoot lets copybooks declare several 01 records, wrapped in a
// group with the given label.
func WithSyntheticRoot(label string) Option {
	return func(r *Registry) { r.syntheticRoot = strings.ToUpper(strings.TrimSpace(label)) }
}

// Registry compiles copybook sources into layouts and keeps them by name.
type Registry struct {
	catalog         Catalog
	cache           *layoutCache
	cacheSize       int
	maxRecordLength int
	syntheticRoot   string
}

// New creates a registry persisting definitions in store.
func New(store Catalog, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, errors.New("registry: catalog required")
	}
	r := &Registry{catalog: store, maxRecordLength: copybook.DefaultMaxRecordLength}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.maxRecordLength <= 0 {
		r.maxRecordLength = copybook.DefaultMaxRecordLength
	}
	r.cache = newLayoutCache(r.cacheSize)
	return r, nil
}

// NormalizeName is the canonical form names are stored under.
func NormalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Compile turns copybook source into a layout, reusing a cached result when
// an identical definition was compiled before.
func (r *Registry) Compile(ctx context.Context, source []byte) (*Compiled, error) {
	tokens, err := lexer.Lex(ctx, source)
	if err != nil {
		return nil, err
	}
	fp := Fingerprint(tokens, r.syntheticRoot, r.maxRecordLength)
	if compiled, ok := r.cache.Get(fp); ok {
		telemetry.RecordLayoutLookup(true)
		return compiled, nil
	}
	telemetry.RecordLayoutLookup(false)

	start := time.Now()
	var buildOpts []copybook.BuildOption
	if r.syntheticRoot != "" {
		buildOpts = append(buildOpts, copybook.WithSyntheticRoot(r.syntheticRoot))
	}
	tree, err := copybook.Build(tokens, buildOpts...)
	if err != nil {
		return nil, err
	}
	layout, err := copybook.ResolveLayout(tree, copybook.WithMaxRecordLength(r.maxRecordLength))
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	telemetry.RecordCompile(elapsed)
	compiled := &Compiled{Fingerprint: fp, Tokens: tokens, Tree: tree, Layout: layout}
	r.cache.Set(fp, compiled)
	common.Logger().Debug("registry: layout compiled", "fingerprint", fp[:12], "length", layout.Length(), "fields", layout.Len(), "dur", elapsed)
	return compiled, nil
}

// Register compiles source and stores it under name, replacing any earlier
// definition. Nothing is stored when compilation fails.
func (r *Registry) Register(ctx context.Context, name string, source []byte) (*Entry, error) {
	name = NormalizeName(name)
	if name == "" {
		return nil, errors.New("registry: copybook name required")
	}
	compiled, err := r.Compile(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("registry: compile %s: %w", name, err)
	}
	row, err := r.catalog.SaveCopybook(ctx, catalog.Copybook{
		Name:         name,
		Fingerprint:  compiled.Fingerprint,
		Source:       string(source),
		RecordLength: compiled.Layout.Length(),
		FieldCount:   compiled.Layout.Len(),
	})
	if err != nil {
		return nil, err
	}
	common.Logger().Info("registry: copybook registered", "copybook", name, "length", row.RecordLength, "fields", row.FieldCount)
	return &Entry{Copybook: *row, Compiled: compiled}, nil
}

// Get returns the compiled layout of a registered copybook. The source is
// recompiled from the catalog when it has left the cache.
func (r *Registry) Get(ctx context.Context, name string) (*Entry, error) {
	name = NormalizeName(name)
	row, err := r.catalog.GetCopybook(ctx, name)
	if err != nil {
		return nil, err
	}
	if compiled, ok := r.cache.Get(row.Fingerprint); ok {
		telemetry.RecordLayoutLookup(true)
		return &Entry{Copybook: *row, Compiled: compiled}, nil
	}
	compiled, err := r.Compile(ctx, []byte(row.Source))
	if err != nil {
		return nil, fmt.Errorf("registry: recompile %s: %w", name, err)
	}
	if compiled.Fingerprint != row.Fingerprint {
		common.Logger().Warn("registry: fingerprint drift", "copybook", name, "stored", row.Fingerprint, "computed", compiled.Fingerprint)
	}
	return &Entry{Copybook: *row, Compiled: compiled}, nil
}

// List returns every registered copybook without its source.
func (r *Registry) List(ctx context.Context) ([]catalog.Copybook, error) {
	return r.catalog.ListCopybooks(ctx)
}

// Delete unregisters name. Cached layouts stay until evicted since another
// name may share them.
func (r *Registry) Delete(ctx context.Context, name string) error {
	name = NormalizeName(name)
	if err := r.catalog.DeleteCopybook(ctx, name); err != nil {
		return err
	}
	common.Logger().Info("registry: copybook deleted", "copybook", name)
	return nil
}

// Purge empties the layout cache.
func (r *Registry) Purge() { r.cache.Purge() }
