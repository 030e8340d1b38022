package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ashgrove-systems/godagent-memory/internal/config"
	"github.com/ashgrove-systems/godagent-memory/internal/daemon"
	"github.com/ashgrove-systems/godagent-memory/internal/observability"
	"github.com/ashgrove-systems/godagent-memory/internal/pattern"
	"github.com/ashgrove-systems/godagent-memory/internal/provenance"
	"github.com/ashgrove-systems/godagent-memory/internal/reasoning"
	"github.com/ashgrove-systems/godagent-memory/internal/vectorstore"
)

func newStartCmd() *cobra.Command {
	var (
		socketFlag     string
		verbose        bool
		maxConnections int
		httpAddr       string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the memory-server daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintln(os.Stderr, "config:", err)
				os.Exit(exitInvalidConfig)
			}
			if socketFlag != "" {
				cfg.SocketPath = socketFlag
			}
			if maxConnections > 0 {
				cfg.Daemon.MaxConnections = maxConnections
			}

			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			observability.InitGlobalLogger(observability.LoggerConfig{Level: level, Format: observability.LogFormat(cfg.LogFormat)})

			if err := os.MkdirAll(cfg.Home, 0o755); err != nil {
				return fmt.Errorf("create home dir: %w", err)
			}

			prov, err := provenance.Open(cfg.Home)
			if err != nil {
				return fmt.Errorf("open provenance store: %w", err)
			}
			defer prov.Close()

			deps := daemon.Deps{
				Provenance: prov,
				Patterns:   pattern.NewStore(),
				Reasoning:  reasoning.NewBank(reasoning.Config{}),
				Vectors:    vectorstore.New(vectorstore.Config{Dimension: cfg.VectorDim}),
			}

			bus := observability.NewBus(1024)
			metrics := observability.NewMetrics()

			limits := daemon.Limits{
				MaxConnections:  cfg.Daemon.MaxConnections,
				RequestTimeout:  time.Duration(cfg.Daemon.RequestTimeoutMs) * time.Millisecond,
				MaxMessageBytes: cfg.Daemon.MaxMessageBytes,
			}
			srv := daemon.New(cfg.SocketPath, limits, deps, bus, metrics)

			var httpServer *http.Server
			if httpAddr != "" {
				httpServer = &http.Server{Addr: httpAddr, Handler: daemon.NewSidecarRouter(srv, metrics)}
				go func() {
					log.Info().Str("addr", httpAddr).Msg("daemon: http sidecar listening")
					if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.Error().Err(err).Msg("daemon: http sidecar failed")
					}
				}()
			}

			ctx, cancel := context.WithCancel(context.Background())
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			serveErr := make(chan error, 1)
			go func() { serveErr <- srv.Serve(ctx) }()

			select {
			case <-quit:
				log.Info().Msg("daemon: shutdown signal received")
			case err := <-serveErr:
				cancel()
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				return nil
			}

			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), daemon.DefaultShutdownTimeout)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				fmt.Fprintln(os.Stderr, "shutdown:", err)
				os.Exit(exitTimeout)
			}
			if httpServer != nil {
				_ = httpServer.Shutdown(shutdownCtx)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&socketFlag, "socket", "", "override the daemon's Unix socket path")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")
	cmd.Flags().IntVar(&maxConnections, "max-connections", 0, "override the configured connection limit")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "address for the /metrics and /healthz sidecar (disabled if empty)")
	return cmd
}
