// File: cmd/serve.go
package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/inmate-bot/internal/observability"
	"github.com/xkilldash9x/inmate-bot/internal/server"
	"github.com/xkilldash9x/inmate-bot/internal/service"
)

const shutdownGrace = 30 * time.Second

// newServeCmd creates the `serve` command, exposing runs over HTTP until the context
// is cancelled.
func newServeCmd(a *app) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search endpoint over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := observability.GetLogger()
			runner := service.NewRunner(a.cfg, a.factory)
			srv := server.New(a.cfg.Server, runner, logger)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(srv.ListenAndServe)
			g.Go(func() error {
				<-ctx.Done()
				// In-flight runs get a grace period; the parent context is already done.
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	serveCmd.Flags().String("addr", ":8080", "listen address")
	_ = a.v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	return serveCmd
}
