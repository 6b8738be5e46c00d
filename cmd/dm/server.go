package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datememo/datememo/internal/config"
	"github.com/datememo/datememo/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Serve a live dashboard over WebSocket",
	Long: `Start a local server that pushes every change to connected clients.

Endpoints:
  /ws           WebSocket stream of changes and stats
  /api/persons  JSON list of everyone on this device
  /health       liveness check
  /metrics      Prometheus metrics

In cloud mode the dashboard also refreshes from the cloud on an interval.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()

		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = a.cfg.Dashboard.Port
		}
		host, _ := cmd.Flags().GetString("host")

		server := dashboard.NewServer(&dashboard.Config{
			Port:   port,
			Host:   host,
			Source: a.local,
			Logger: config.NewLogger(a.logs, "dashboard"),
		})
		if err := server.Start(); err != nil {
			fail("%v", err)
		}

		handler := dashboard.NewHandler(server, a.local, config.NewLogger(a.logs, "dashboard"))
		go handler.Run(ctx, a.broker.Subscribe())

		fmt.Printf("Dashboard on ws://%s/ws (mode %s). Press Ctrl+C to stop...\n", server.GetAddr(), a.orch.Session().Mode)
		runErr := a.orch.Run(ctx)

		if err := server.Stop(); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
		if runErr != nil {
			fail("%v", runErr)
		}
	},
}

func init() {
	dashboardCmd.Flags().IntP("port", "p", 8787, "Port to listen on (default dashboard.port)")
	dashboardCmd.Flags().String("host", "127.0.0.1", "Address to bind")

	rootCmd.AddCommand(dashboardCmd)
}
