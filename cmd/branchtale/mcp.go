package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/branchtale/internal/cli"
	"github.com/aretw0/branchtale/internal/logging"
	"github.com/aretw0/branchtale/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts branchtale as an MCP server so AI agents can play stories as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cli.SignalContext(context.Background())
		defer cancel()

		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		// Logs must never corrupt JSON-RPC on Stdout.
		logger := logging.NewWithWriter(os.Stderr, level)
		log.SetOutput(os.Stderr)

		app, err := cli.NewApp(ctx, cfg, cli.BuildOptions{Logger: logger})
		if err != nil {
			return err
		}
		defer app.Close()

		srv := mcp.NewServer(app.Controller, logger)
		switch transport {
		case "stdio":
			logger.Info("starting branchtale MCP server (stdio)")
			return srv.ServeStdio()
		case "sse":
			addr := fmt.Sprintf(":%d", port)
			return srv.ServeSSE(ctx, addr, fmt.Sprintf("http://localhost:%d", port))
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}
