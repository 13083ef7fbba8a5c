package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/notekit/notekit/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		configPath, _ := config.GetConfigPath()
		fmt.Printf("Config file: %s\n\n", configPath)
		fmt.Printf("data_directory:            %s\n", cfg.DataDirectory)
		fmt.Printf("database_path:             %s\n", cfg.GetDatabasePath())
		fmt.Printf("api_key:                   %s\n", cfg.APIKey)
		fmt.Printf("host:                      %s\n", cfg.Host)
		fmt.Printf("port:                      %d\n", cfg.Port)
		fmt.Printf("rate_limit:                %d\n", cfg.RateLimit)
		fmt.Printf("rate_limit_window_seconds: %d\n", cfg.RateLimitWindowSeconds)
		fmt.Printf("cache_max_entries:         %d\n", cfg.CacheMaxEntries)
		fmt.Printf("debug:                     %v\n", cfg.Debug)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		key, value := args[0], args[1]
		switch key {
		case "api_key":
			cfg.APIKey = value
		case "host":
			cfg.Host = value
		case "port":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid port: %s", value)
			}
			cfg.Port = n
		case "rate_limit":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid rate_limit: %s", value)
			}
			cfg.RateLimit = n
		case "rate_limit_window_seconds":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid rate_limit_window_seconds: %s", value)
			}
			cfg.RateLimitWindowSeconds = n
		case "cache_max_entries":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid cache_max_entries: %s", value)
			}
			cfg.CacheMaxEntries = n
		case "debug":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid boolean value (use true/false): %s", value)
			}
			cfg.Debug = b
		default:
			return fmt.Errorf("unknown configuration key: %s", key)
		}

		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
