package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notekit/notekit/internal/config"
)

var (
	initDataDir string
	initAPIKey  string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize notekit configuration",
	Long: `Create the notekit configuration file and data directory.

An API key is generated unless one is supplied with --api-key. Every API
request must carry it in the X-API-Key header.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initDataDir, "data-dir", "", "Data directory (default: ~/.local/share/notekit)")
	initCmd.Flags().StringVar(&initAPIKey, "api-key", "", "API key to use (default: generated)")
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.InitializeConfig(initDataDir, initAPIKey)
	if err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	configPath, _ := config.GetConfigPath()
	fmt.Printf("Configuration written to %s\n", configPath)
	fmt.Printf("Data directory: %s\n", cfg.DataDirectory)
	fmt.Printf("API key: %s\n", cfg.APIKey)
	fmt.Println("\nStart the server with 'notekit serve'.")
	return nil
}
