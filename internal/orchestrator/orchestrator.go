// File path: internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/nicodishanthj/Katral_copybook/internal/archive"
	"github.com/nicodishanthj/Katral_copybook/internal/batch"
	"github.com/nicodishanthj/Katral_copybook/internal/catalog"
	"github.com/nicodishanthj/Katral_copybook/internal/common"
	"github.com/nicodishanthj/Katral_copybook/internal/copybook"
	"github.com/nicodishanthj/Katral_copybook/internal/registry"
)

type closer interface {
	Close() error
}

// Orchestrator wires together the catalog, the record archive and the layout
// registry, and hands out decoders configured from Config.
type Orchestrator struct {
	cfg Config

	catalog  *catalog.Store
	archive  *archive.Store
	registry *registry.Registry

	decodeOpts []copybook.DecodeOption

	closers []closer
}

// New constructs an orchestrator from the provided configuration and optional
// overrides.
func New(ctx context.Context, cfg Config, opts ...Option) (*Orchestrator, error) {
	cfg = applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	settings := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	encoding, _ := copybook.ParseEncoding(cfg.Encoding)
	order, _ := ParseByteOrder(cfg.NativeByteOrder)
	orch := &Orchestrator{
		cfg: cfg,
		decodeOpts: []copybook.DecodeOption{
			copybook.WithEncoding(encoding),
			copybook.WithNativeByteOrder(order),
		},
	}

	store := settings.catalog
	if store == nil {
		opened, err := catalog.OpenWithConfig(cfg.Catalog)
		if err != nil {
			return nil, fmt.Errorf("init catalog: %w", err)
		}
		store = opened
		orch.closers = append(orch.closers, opened)
	}
	orch.catalog = store

	if !settings.archiveDisabled {
		arch, err := archive.NewStore(cfg.ArchiveDir)
		if err != nil {
			orch.Close()
			return nil, fmt.Errorf("init archive: %w", err)
		}
		orch.archive = arch
	}

	regOpts := []registry.Option{
		registry.WithCacheSize(cfg.CacheSize),
		registry.WithMaxRecordLength(cfg.MaxRecordLength),
	}
	if cfg.SyntheticRoot != "" {
		regOpts = append(regOpts, registry.WithSyntheticRoot(cfg.SyntheticRoot))
	}
	reg, err := registry.New(store, regOpts...)
	if err != nil {
		orch.Close()
		return nil, err
	}
	orch.registry = reg

	common.Logger().Debug("orchestrator: ready", "catalog", cfg.Catalog.Path, "archive", cfg.ArchiveDir, "encoding", encoding, "workers", cfg.Workers)
	return orch, nil
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	if o == nil {
		return Config{}
	}
	return o.cfg
}

// Catalog exposes the SQLite catalog.
func (o *Orchestrator) Catalog() *catalog.Store {
	if o == nil {
		return nil
	}
	return o.catalog
}

// Archive exposes the record archive. It is nil when disabled.
func (o *Orchestrator) Archive() *archive.Store {
	if o == nil {
		return nil
	}
	return o.archive
}

// Registry exposes the layout registry.
func (o *Orchestrator) Registry() *registry.Registry {
	if o == nil {
		return nil
	}
	return o.registry
}

// DecodeOptions returns the configured encoding and COMP-5 byte order
// followed by extra, so callers can override either.
func (o *Orchestrator) DecodeOptions(extra ...copybook.DecodeOption) []copybook.DecodeOption {
	out := append([]copybook.DecodeOption(nil), o.decodeOpts...)
	return append(out, extra...)
}

// NewDecoder builds a decoder for layout with the configured options.
func (o *Orchestrator) NewDecoder(layout *copybook.Layout, extra ...copybook.DecodeOption) *copybook.Decoder {
	return copybook.NewDecoder(layout, o.DecodeOptions(extra...)...)
}

// RunRequest describes a batch decode of a registered copybook.
type RunRequest struct {
	Copybook string
	Input    string
	Archive  bool
	FailFast bool
	Workers  int
	Decode   []copybook.DecodeOption
}

// NewRunner prepares a batch runner for a registered copybook. The run is
// recorded in the catalog and, when requested, archived.
func (o *Orchestrator) NewRunner(ctx context.Context, req RunRequest) (*batch.Runner, *registry.Entry, error) {
	entry, err := o.registry.Get(ctx, req.Copybook)
	if err != nil {
		return nil, nil, err
	}
	workers := req.Workers
	if workers <= 0 {
		workers = o.cfg.Workers
	}
	opts := []batch.Option{
		batch.WithWorkers(workers),
		batch.WithFailFast(req.FailFast),
		batch.WithRunRecorder(o.catalog, entry.Copybook.Name, req.Input),
	}
	if req.Archive {
		if o.archive == nil {
			return nil, nil, errors.New("orchestrator: archive disabled")
		}
		opts = append(opts, batch.WithArchive(o.archive, entry.Copybook.Name))
	}
	runner, err := batch.New(o.NewDecoder(entry.Layout, req.Decode...), opts...)
	if err != nil {
		return nil, nil, err
	}
	return runner, entry, nil
}

// DeleteCopybook unregisters a copybook and drops its archived records.
func (o *Orchestrator) DeleteCopybook(ctx context.Context, name string) error {
	if err := o.registry.Delete(ctx, name); err != nil {
		return err
	}
	if o.archive != nil {
		if err := o.archive.Delete(registry.NormalizeName(name)); err != nil {
			return err
		}
	}
	return nil
}

// Close releases any resources associated with the orchestrator.
func (o *Orchestrator) Close() error {
	if o == nil {
		return nil
	}
	var err error
	for i := len(o.closers) - 1; i >= 0; i-- {
		closer := o.closers[i]
		if closer == nil {
			continue
		}
		if cerr := closer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	o.closers = nil
	return err
}
