// File path: internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/nicodishanthj/Katral_copybook/internal/catalog"
	"github.com/nicodishanthj/Katral_copybook/internal/framer"
)

var configEnv = []string{
	"COPYBOOK_CONFIG", "COPYBOOK_CATALOG_CONFIG", "COPYBOOK_CATALOG_PATH",
	"COPYBOOK_CATALOG_MAX_OPEN_CONNS", "COPYBOOK_CATALOG_BUSY_TIMEOUT",
	"COPYBOOK_ARCHIVE_DIR", "COPYBOOK_CACHE_SIZE", "COPYBOOK_MAX_RECORD_LENGTH",
	"COPYBOOK_ENCODING", "COPYBOOK_COMP5_BYTE_ORDER", "COPYBOOK_SYNTHETIC_ROOT",
	"COPYBOOK_WORKERS", "COPYBOOK_ADDR",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("LoadConfig defaults mismatch: %#v", cfg)
	}
	if cfg.Workers != runtime.NumCPU() || cfg.Encoding != "ascii" {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("COPYBOOK_CATALOG_PATH", "/tmp/catalog.db")
	t.Setenv("COPYBOOK_ARCHIVE_DIR", "/tmp/archive")
	t.Setenv("COPYBOOK_CACHE_SIZE", "8")
	t.Setenv("COPYBOOK_MAX_RECORD_LENGTH", "4096")
	t.Setenv("COPYBOOK_ENCODING", "ebcdic")
	t.Setenv("COPYBOOK_COMP5_BYTE_ORDER", "little")
	t.Setenv("COPYBOOK_WORKERS", "3")
	t.Setenv("COPYBOOK_ADDR", "127.0.0.1:9000")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Catalog.Path != "/tmp/catalog.db" || cfg.ArchiveDir != "/tmp/archive" {
		t.Errorf("paths = %q, %q", cfg.Catalog.Path, cfg.ArchiveDir)
	}
	if cfg.CacheSize != 8 || cfg.MaxRecordLength != 4096 || cfg.Workers != 3 {
		t.Errorf("numbers = %d, %d, %d", cfg.CacheSize, cfg.MaxRecordLength, cfg.Workers)
	}
	if cfg.Encoding != "ebcdic" || cfg.NativeByteOrder != "little" || cfg.Addr != "127.0.0.1:9000" {
		t.Errorf("strings = %q, %q, %q", cfg.Encoding, cfg.NativeByteOrder, cfg.Addr)
	}

	t.Setenv("COPYBOOK_WORKERS", "many")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected parse error for COPYBOOK_WORKERS")
	}
}

func TestLoadConfigFilePrecedence(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "copybook.toml")
	tomlBody := "archive_dir = \"/srv/archive\"\nworkers = 2\nencoding = \"ebcdic\"\n\n[catalog]\npath = \"/srv/catalog.db\"\nmax_open_conns = 9\n"
	if err := os.WriteFile(tomlPath, []byte(tomlBody), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	t.Setenv("COPYBOOK_WORKERS", "6")
	cfg, err := LoadConfigWithFile(tomlPath)
	if err != nil {
		t.Fatalf("LoadConfigWithFile: %v", err)
	}
	if cfg.ArchiveDir != "/srv/archive" || cfg.Encoding != "ebcdic" || cfg.Catalog.Path != "/srv/catalog.db" || cfg.Catalog.MaxOpenConns != 9 {
		t.Fatalf("file values not applied: %#v", cfg)
	}
	if cfg.Workers != 6 {
		t.Fatalf("expected env to win over file, got %d workers", cfg.Workers)
	}

	yamlPath := filepath.Join(dir, "copybook.yaml")
	if err := os.WriteFile(yamlPath, []byte("cache_size: 5\ncomp5_byte_order: little\n"), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	yamlCfg, err := LoadConfigFile(yamlPath)
	if err != nil {
		t.Fatalf("LoadConfigFile yaml: %v", err)
	}
	if yamlCfg.CacheSize != 5 || yamlCfg.NativeByteOrder != "little" {
		t.Fatalf("unexpected yaml config %#v", yamlCfg)
	}
	if _, err := LoadConfigFile(filepath.Join(dir, "copybook.ini")); err == nil {
		t.Fatalf("expected error for unsupported file")
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Encoding = "utf-16"
	if err := applyDefaults(cfg).validate(); err == nil {
		t.Fatalf("expected encoding error")
	}
	cfg = DefaultConfig()
	cfg.NativeByteOrder = "middle"
	if err := applyDefaults(cfg).validate(); err == nil {
		t.Fatalf("expected byte order error")
	}
	if order, err := ParseByteOrder("LE"); err != nil || order != binary.LittleEndian {
		t.Fatalf("unexpected byte order %v (%v)", order, err)
	}
}

func newTestOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	cfg.Catalog.Path = filepath.Join(dir, "catalog.db")
	cfg.ArchiveDir = filepath.Join(dir, "archive")
	orch, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = orch.Close() })
	return orch
}

func TestNewInitializesStores(t *testing.T) {
	orch := newTestOrchestrator(t, Config{})
	if orch.Catalog() == nil || orch.Archive() == nil || orch.Registry() == nil {
		t.Fatalf("expected stores to be initialised")
	}
	if _, err := os.Stat(orch.Config().ArchiveDir); err != nil {
		t.Fatalf("archive dir missing: %v", err)
	}
}

func TestRunnerRecordsAndArchives(t *testing.T) {
	orch := newTestOrchestrator(t, Config{Workers: 2})
	ctx := context.Background()
	if _, err := orch.Registry().Register(ctx, "person", []byte("01 PERSON. 05 NAME PIC X(4). 05 AGE PIC 9(3).")); err != nil {
		t.Fatalf("register: %v", err)
	}
	runner, entry, err := orch.NewRunner(ctx, RunRequest{Copybook: "PERSON", Input: "inline", Archive: true})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	src, err := framer.NewReader(strings.NewReader("JOHN025MARY101"), framer.FormatFixed, entry.Layout.Length())
	if err != nil {
		t.Fatalf("framer: %v", err)
	}
	var out bytes.Buffer
	summary, err := runner.Run(ctx, src, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Records != 2 || summary.Status != catalog.RunSucceeded {
		t.Fatalf("unexpected summary %+v", summary)
	}
	runs, err := orch.Catalog().ListRuns(ctx, "", 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one recorded run, got %d (%v)", len(runs), err)
	}
	archived, err := orch.Archive().Records(ctx, "PERSON", 0, 0)
	if err != nil || len(archived) != 2 {
		t.Fatalf("expected two archived records, got %d (%v)", len(archived), err)
	}

	if err := orch.DeleteCopybook(ctx, "person"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if infos, _ := orch.Archive().Copybooks(ctx); len(infos) != 0 {
		t.Fatalf("expected archive cleared, got %+v", infos)
	}
	if _, _, err := orch.NewRunner(ctx, RunRequest{Copybook: "PERSON"}); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestDecodeOptionsFollowConfig(t *testing.T) {
	orch := newTestOrchestrator(t, Config{NativeByteOrder: "little"})
	ctx := context.Background()
	entry, err := orch.Registry().Register(ctx, "N", []byte("01 N PIC S9(4) COMP-5."))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	rec, err := orch.NewDecoder(entry.Layout).Decode([]byte{0x01, 0x00})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f, ok := rec.Get("N"); !ok || f.Value.Int != 1 {
		t.Fatalf("expected little-endian 1, got %+v", f)
	}
}
