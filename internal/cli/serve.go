package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revq/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve [commit-range]",
	Short: "Serve read-only session state over HTTP",
	Long: `Start an HTTP server over the current session.

Endpoints:
  GET /health        — health check
  GET /api/status    — queue totals and breakdown
  GET /api/overview  — per-file progress
  GET /api/groups    — ranked groups (?scheme=...)
  GET /api/ws        — websocket status pushes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "127.0.0.1", "address to listen on")
	serveCmd.Flags().IntP("port", "p", 6142, "port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()

	addr, _ := cmd.Flags().GetString("addr")
	port, _ := cmd.Flags().GetInt("port")

	srv := api.New(fmt.Sprintf("%s:%d", addr, port), s, log)
	return srv.ListenAndServe()
}
