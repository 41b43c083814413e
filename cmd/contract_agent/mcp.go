package main

import (
	"os/signal"
	"syscall"

	"github.com/jonathan/contract-analyzer/internal/mcpserver"
	"github.com/spf13/cobra"
)

var mcpBrowser bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve analysis tools over MCP on stdio",
	Long:  "Run a Model Context Protocol server on stdin/stdout exposing the analyze_contract and list_models tools. Logs go to stderr.",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func init() {
	mcpCmd.Flags().BoolVar(&mcpBrowser, "browser", false, "Render script-heavy pages in headless Chrome when a url is analyzed")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	analyzer, client, err := buildAnalyzer(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	srv := mcpserver.New(analyzer, version,
		mcpserver.WithFetcher(newFetcher(mcpBrowser)),
		mcpserver.WithLogger(logger),
	)
	return srv.Run(ctx)
}
