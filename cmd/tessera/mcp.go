package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantfold/tessera"
	"github.com/quantfold/tessera/internal/logging"
	mcpAdapter "github.com/quantfold/tessera/pkg/adapters/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the tessera engine over the Model Context Protocol so MCP
clients (Claude Desktop and similar) can run and inspect patterns as tools.

Transports:
- stdio (default): JSON-RPC over standard input/output for local integration.
- sse: Server-Sent Events over HTTP for remote agents or debuggers.`,
	Run: func(cmd *cobra.Command, args []string) {
		repoPath, _ := cmd.Flags().GetString("dir")
		if !cmd.Flags().Changed("dir") && len(args) > 0 {
			repoPath = args[0]
		}

		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		logger := logging.New(slog.LevelInfo)
		slog.SetDefault(logger)

		engine, err := tessera.New(repoPath, tessera.WithLogger(logger))
		if err != nil {
			log.Fatalf("Error initializing tessera: %v", err)
		}
		if err := engine.Init(cmd.Context()); err != nil {
			log.Fatalf("Error loading patterns: %v", err)
		}

		srv := mcpAdapter.NewServer(engine)

		switch transport {
		case "stdio":
			// Logs must not corrupt JSON-RPC on stdout
			log.SetOutput(os.Stderr)
			slog.Info("tessera MCP server listening on stdio")
			if err := srv.ServeStdio(); err != nil {
				slog.Error("MCP server failed", "error", err)
				os.Exit(1)
			}
		case "sse":
			slog.Info("tessera MCP server listening", "transport", "sse", "port", port)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ServeSSE(ctx, port); err != nil && err != http.ErrServerClosed {
				slog.Error("MCP server failed", "error", err)
				os.Exit(1)
			}
			slog.Info("MCP server stopped")
		default:
			log.Fatalf("unknown transport %q (supported: stdio, sse)", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE)")
}
