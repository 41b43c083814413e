package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jonathan/contract-analyzer/internal/server"
	"github.com/jonathan/contract-analyzer/internal/server/ratelimit"
	"github.com/spf13/cobra"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the contract analysis endpoints, including SSE streaming of attempt progress.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config, 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	analyzer, client, err := buildAnalyzer(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	srv := server.New(serverConfig(), analyzer, logger)
	if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// serverConfig maps the loaded configuration onto the HTTP server settings
func serverConfig() server.Config {
	port := cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}

	sc := server.Config{
		Port:           port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
		DefaultModel:   cfg.LLM.DefaultModel,
	}
	if cfg.RateLimit.Enabled {
		sc.RateLimit = ratelimit.NewConfig(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	}
	return sc
}
