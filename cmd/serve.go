package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tqgap/internal/api"
	"github.com/sells-group/tqgap/internal/choropleth"
	"github.com/sells-group/tqgap/internal/metrics"
)

var servePort int

const sweepInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the map API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initApp(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		sessions := choropleth.NewSessions(env.Builder, time.Duration(cfg.Server.SessionTTLMins)*time.Minute)
		go sessions.RunSweeper(ctx, sweepInterval, func(removed, remaining int) {
			metrics.ActiveSessions.Set(float64(remaining))
			if removed > 0 {
				zap.L().Debug("expired sessions removed", zap.Int("removed", removed), zap.Int("remaining", remaining))
			}
			env.purgeCaches(ctx)
		})

		srv := api.NewServer(env.Builder, sessions, api.Options{Presets: env.Presets, Cache: env.Memory})
		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           srv.Router(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.Int("records", env.Dataset.Len()),
			zap.String("boundary_provider", cfg.Boundary.Provider),
		)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
