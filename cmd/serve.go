package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"trackgate/internal/agents"
	"trackgate/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the HTTP server exposing issue operations, the agent prompt
endpoint, and run traces under /api/v1. By default it listens on port 8080.
Use --port to change it.

The agent endpoint is enabled only when anthropic.api_key is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		traces, err := getTraceStore()
		if err != nil {
			return err
		}

		var orch *agents.Orchestrator
		if key := viper.GetString("anthropic.api_key"); key != "" {
			orch = agents.NewOrchestrator(key, viper.GetString("anthropic.model"), svc, traces)
		} else {
			ui.Warning("anthropic.api_key not set; /api/v1/agent/prompt is disabled")
		}

		server := api.NewServer(svc, orch, traces, viper.GetString("server.api_key"))

		port := viper.GetInt("port")
		addr := fmt.Sprintf(":%d", port)
		ui.Info("Serving API at http://localhost%s/api/v1", addr)
		return http.ListenAndServe(addr, server.Router())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}
