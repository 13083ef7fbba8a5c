package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/notekit/notekit/internal/api"
	"github.com/notekit/notekit/internal/logger"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP API server",
	Long: `Start the HTTP API server for notekit.

Endpoints under /api/v1 (all except /health require the X-API-Key header):

- POST   /notes           create a note (idempotent, rate limited)
- GET    /notes           paginated, sorted listing
- GET    /notes/search    ranked full-text search
- GET    /notes/stats     aggregate counts
- GET    /notes/{id}      fetch one note
- PUT    /notes/{id}      update title and/or content
- DELETE /notes/{id}      soft delete
- GET    /health          liveness probe (no auth)

Examples:
  notekit serve                              # Use host/port from config
  notekit serve --host 0.0.0.0 --port 3000   # Override listen address`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind the server to (default: from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to bind the server to (default: from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if appConfig.APIKey == "" {
		return fmt.Errorf("no API key configured; run 'notekit init' first")
	}

	host := appConfig.Host
	if serveHost != "" {
		host = serveHost
	}
	port := appConfig.Port
	if servePort != 0 {
		port = servePort
	}

	logger.Info("Initializing HTTP API server...")
	apiServer := api.NewAPIServer(appConfig, db.Conn(), noteRepo, engine, aggregator, limiter)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- apiServer.Start(host, port)
	}()

	fmt.Printf("notekit API listening on http://%s:%d\n", host, port)
	fmt.Printf("Health: http://%s:%d/api/v1/health\n", host, port)
	fmt.Printf("Press Ctrl+C to stop\n")

	select {
	case sig := <-sigChan:
		logger.Info("Received signal %v, shutting down gracefully...", sig)
		if err := apiServer.Stop(); err != nil {
			logger.Error("Error during server shutdown: %v", err)
			return err
		}
		logger.Info("Server stopped successfully")
		return nil
	case err := <-errChan:
		if err != nil {
			logger.Error("Server error: %v", err)
			return err
		}
		return nil
	}
}
