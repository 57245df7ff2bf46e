package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/kvsession"
	"github.com/aretw0/kvsession/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the Model Context Protocol (MCP) server",
		Long: `Exposes session operations as MCP tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			transport, _ := cmd.Flags().GetString("transport")
			port, _ := cmd.Flags().GetInt("port")

			svc, err := getService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			srv := mcp.NewServer(svc.Manager(), kvsession.Version, mcp.WithLogger(svc.Logger()))

			switch transport {
			case "stdio":
				// Logs go to Stderr so they don't corrupt JSON-RPC on Stdout.
				svc.Logger().Info("Starting kvsession MCP Server (Stdio)")
				return srv.ServeStdio()
			case "sse":
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				addr := fmt.Sprintf(":%d", port)
				return srv.ServeSSE(ctx, addr, fmt.Sprintf("http://localhost:%d", port))
			default:
				return fmt.Errorf("unknown transport %q (want stdio or sse)", transport)
			}
		},
	}
	cmd.Flags().StringP("transport", "t", "stdio", "Transport: stdio or sse")
	cmd.Flags().IntP("port", "p", 8081, "Port for the sse transport")
	return cmd
}
