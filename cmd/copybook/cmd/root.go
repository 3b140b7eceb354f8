// File path: cmd/copybook/cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nicodishanthj/Katral_copybook/internal/catalog"
	"github.com/nicodishanthj/Katral_copybook/internal/common"
	"github.com/nicodishanthj/Katral_copybook/internal/orchestrator"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile  string
	catalogPath string
	logLevel    string
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "copybook",
		Short: "Compile COBOL copybooks and decode fixed-layout records",
		Long: `copybook reads COBOL data description entries, resolves the byte layout
they describe and decodes records (DISPLAY, zoned, packed and binary fields,
ASCII or EBCDIC) into JSON lines.

Registered copybooks, run history and archived records live in a SQLite
catalog and a JSONL archive, shared with the HTTP API started by "serve".`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil {
				common.Logger().Debug("copybook: .env not loaded", "error", err)
			}
			if g.logLevel != "" {
				common.SetLogLevel(g.logLevel)
			}
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&g.configFile, "config", "", "config file (.toml or .yaml; default $COPYBOOK_CONFIG)")
	flags.StringVar(&g.catalogPath, "catalog", "", "path to the SQLite catalog (default data/copybooks.db)")
	flags.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL)")

	root.AddCommand(
		newLayoutCmd(g),
		newRegisterCmd(g),
		newListCmd(g),
		newDecodeCmd(g),
		newRunsCmd(g),
		newServeCmd(g),
	)
	return root
}

func (g *globalOptions) config() (orchestrator.Config, error) {
	path := strings.TrimSpace(g.configFile)
	if path == "" {
		path = os.Getenv("COPYBOOK_CONFIG")
	}
	cfg, err := orchestrator.LoadConfigWithFile(path)
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("load config: %w", err)
	}
	if trimmed := strings.TrimSpace(g.catalogPath); trimmed != "" {
		cfg.Catalog.Path = trimmed
	}
	return cfg, nil
}

func (g *globalOptions) open(ctx context.Context, mutate func(*orchestrator.Config)) (*orchestrator.Orchestrator, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return orchestrator.New(ctx, cfg)
}

// openScratch builds an orchestrator over a private in-memory catalog, for
// commands that only compile.
func (g *globalOptions) openScratch(ctx context.Context, mutate func(*orchestrator.Config)) (*orchestrator.Orchestrator, func(), error) {
	cfg, err := g.config()
	if err != nil {
		return nil, nil, err
	}
	if mutate != nil {
		mutate(&cfg)
	}
	store, err := catalog.Open(catalog.MemoryPath)
	if err != nil {
		return nil, nil, err
	}
	orch, err := orchestrator.New(ctx, cfg, orchestrator.WithCatalog(store), orchestrator.WithArchiveDisabled())
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return orch, func() {
		orch.Close()
		store.Close()
	}, nil
}
