// Package main provides the entry point for the Contract Analyzer CLI, HTTP API and MCP server.
package main

import (
	"fmt"
	"os"

	"github.com/jonathan/contract-analyzer/internal/config"
	"github.com/jonathan/contract-analyzer/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	configFile string
	logLevel   string
	logJSON    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "contract_agent",
	Short:         "Contract risk analyzer",
	Long:          "Contract Analyzer reviews employment offers, terms of service, NDAs and leases with an LLM and reports risky clauses with evidence quotes, plain-English explanations and negotiation language.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-json") {
			loaded.Log.JSON = logJSON
		}

		l, err := logging.New(loaded.Log.Level, loaded.Log.JSON)
		if err != nil {
			return err
		}
		cfg, logger = loaded, l
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: ./config.yaml or $HOME/.contract-analyzer/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit JSON logs")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
