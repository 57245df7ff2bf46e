package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/kvsession"
	httpAdapter "github.com/aretw0/kvsession/pkg/adapters/http"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP session API",
		Long:  `Serves /sessions, /healthz and /metrics over HTTP until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				settings.HTTP.Addr = addr
			}

			svc, err := kvsession.New(settings)
			if err != nil {
				return err
			}
			defer svc.Close()

			logger := svc.Logger()
			handler := httpAdapter.NewHandler(svc.Manager(),
				httpAdapter.WithPing(svc.Ping),
				httpAdapter.WithGatherer(svc.Gatherer()),
				httpAdapter.WithVersion(kvsession.Version),
				httpAdapter.WithLogger(logger.With("component", "http")),
			)

			srv := &http.Server{
				Addr:              settings.HTTP.Addr,
				Handler:           handler,
				ReadHeaderTimeout: 5 * time.Second,
			}

			// Channel to listen for errors coming from the listener.
			serverErrors := make(chan error, 1)
			go func() {
				logger.Info("Starting kvsession server", "addr", srv.Addr, "backend", settings.Backend)
				serverErrors <- srv.ListenAndServe()
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)
			case <-ctx.Done():
				logger.Info("Shutdown signal received")

				// Give outstanding requests a deadline for completion.
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					_ = srv.Close()
					return fmt.Errorf("graceful shutdown did not complete: %w", err)
				}
				logger.Info("Server stopped gracefully")
				return nil
			}
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
	return cmd
}
