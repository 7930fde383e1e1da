package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/raytchel123/raytchel/internal/adapters/http"
	"github.com/raytchel123/raytchel/internal/config"
	"github.com/raytchel123/raytchel/internal/conversation"
	"github.com/raytchel123/raytchel/internal/flows"
	"github.com/raytchel123/raytchel/internal/guardrail"
	"github.com/raytchel123/raytchel/internal/logging"
	"github.com/raytchel123/raytchel/internal/snapshot"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Starts the authoring, sync, guardrail and conversation API over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.Listen = listen
		}

		logger := logging.New(logging.ParseLevel(cfg.Log.Level))

		st, err := buildStores(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer st.close()

		snapshots := snapshot.NewService(st.snapshots, st.audit, logger,
			snapshot.WithPageLimit(cfg.Sync.PageLimit))
		engine := guardrail.NewEngine(snapshots, st.audit, guardrail.Config{
			Thresholds:       cfg.Guardrail.Thresholds,
			DefaultThreshold: cfg.Guardrail.DefaultThreshold,
		}, logger)

		server := httpadapter.NewServer(
			flows.NewController(st.flows, st.audit, logger),
			snapshots,
			engine,
			conversation.NewService(st.conversations, st.audit, logger),
			httpadapter.WithLogger(logger),
		)

		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("server listening", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "error", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("close server: %w", err)
				}
			}
			logger.Info("server stopped")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Listen address (overrides config)")
}
