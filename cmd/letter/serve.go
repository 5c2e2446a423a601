package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"ai-letter/api/router"
	"ai-letter/config"
	"ai-letter/db"
	"ai-letter/pipeline"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API (digests, manual runs, metrics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.API.Addr
			}
			runner := pipeline.NewRunner(a.pipeline.Run, a.cfg.API.RunTimeout)

			deps := router.Deps{
				Digests:         a.artifacts,
				Runner:          runner,
				HistoryDegraded: a.memory.Degraded,
			}
			if a.usesMongo {
				deps.Health = func(ctx context.Context) error {
					return db.Database().RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
				}
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           router.Handler(deps, a.cfg.API.AllowedOrigins),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				config.Logger.Infof("API listening on %s", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			// 진행 중인 실행이 끝나야 이력/다이제스트가 일관된다.
			runner.Wait()
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default api.addr)")
	return cmd
}
