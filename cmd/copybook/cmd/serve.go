// File path: cmd/copybook/cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nicodishanthj/Katral_copybook/internal/api"
	"github.com/nicodishanthj/Katral_copybook/internal/common"
	"github.com/nicodishanthj/Katral_copybook/internal/orchestrator"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the copybook HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := common.Logger()
			orch, err := g.open(ctx, func(cfg *orchestrator.Config) {
				if addr != "" {
					cfg.Addr = addr
				}
			})
			if err != nil {
				return err
			}
			defer orch.Close()
			handler, err := api.NewServer(orch)
			if err != nil {
				return err
			}
			listen := orch.Config().Addr
			httpSrv := &http.Server{Addr: listen, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			errCh := make(chan error, 1)
			go func() {
				errCh <- httpSrv.ListenAndServe()
			}()
			reachable := listen
			if strings.HasPrefix(reachable, ":") {
				reachable = "localhost" + reachable
			}
			logger.Info("copybook: server listening", "addr", listen, "health", fmt.Sprintf("http://%s/healthz", reachable))

			select {
			case <-ctx.Done():
				logger.Info("copybook: shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("serve: %w", err)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}
