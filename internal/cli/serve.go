package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpm/stuplan/internal/api"
)

func newServeCmd() *cobra.Command {
	var addr string
	var port int
	var cleanupInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Start the stuplan HTTP server.

Provides a REST API for running planning conversations, a health check
and Prometheus metrics. Expired conversations are cleaned up periodically.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{
				Addr:         a.cfg.Server.ListenAddr(),
				Handler:      api.NewHandler(a.processor, a.metrics, a.logger).Router(),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			go runCleanup(ctx, a, cleanupInterval)

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("server listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown server: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1", "Address to listen on")
	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on")
	cmd.Flags().DurationVar(&cleanupInterval, "cleanup-interval", time.Hour, "How often to remove expired conversations (0 disables)")

	return cmd
}

// runCleanup removes expired conversations every interval until ctx ends.
func runCleanup(ctx context.Context, a *app, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := a.processor.Cleanup(ctx)
			if err != nil {
				a.logger.Warn("conversation cleanup failed", "error", err)
				continue
			}
			if res.Local+res.Database > 0 {
				a.logger.Info("expired conversations removed", "local", res.Local, "database", res.Database)
			}
		}
	}
}
