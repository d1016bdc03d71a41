package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sheetchat/sheetchat/internal/config"
)

var configInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display the active configuration",
	Long: `Show the current active configuration merged from defaults, the config
file, environment variables, and flags. With --init, write the merged
configuration to the config file as a starting point for editing.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadActiveConfig()
		if err != nil {
			return err
		}

		if configInit {
			path, err := config.SaveConfig(cfg)
			if err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", path)
		}

		printConfig(os.Stdout, cfg)

		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "Write the active configuration to the config file")

	rootCmd.AddCommand(configCmd)
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Active configuration:")

	fmt.Fprintln(w, "\nServer:")
	fmt.Fprintf(w, "  Host: %s\n", cfg.Server.Host)
	fmt.Fprintf(w, "  Port: %d\n", cfg.Server.Port)
	fmt.Fprintf(w, "  Session TTL: %s\n", cfg.Server.SessionTTL)
	fmt.Fprintf(w, "  Max Upload: %d MB\n", cfg.Server.MaxUploadMB)

	fmt.Fprintln(w, "\nModel:")
	fmt.Fprintf(w, "  Provider: %s\n", cfg.LLM.Provider)
	fmt.Fprintf(w, "  Model: %s\n", cfg.LLM.Model)
	fmt.Fprintf(w, "  API Key: %s\n", maskSecret(cfg.LLM.APIKey))

	if cfg.LLM.BaseURL != "" {
		fmt.Fprintf(w, "  Base URL: %s\n", cfg.LLM.BaseURL)
	}

	fmt.Fprintf(w, "  Timeout: %s\n", cfg.LLM.Timeout)
	fmt.Fprintf(w, "  Retry Attempts: %d\n", cfg.LLM.RetryAttempts)
	fmt.Fprintf(w, "  Retry Delay: %s\n", cfg.LLM.RetryDelay)

	fmt.Fprintln(w, "\nLoader:")
	fmt.Fprintf(w, "  Max Rows: %d\n", cfg.Loader.MaxRows)
	fmt.Fprintf(w, "  Max Columns: %d\n", cfg.Loader.MaxColumns)

	fmt.Fprintln(w, "\nLogging:")
	fmt.Fprintf(w, "  Level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "  Format: %s\n", cfg.Logging.Format)
	fmt.Fprintf(w, "  Output: %s\n", cfg.Logging.Output)

	if cfg.Logging.Output == "file" {
		fmt.Fprintf(w, "  File: %s\n", cfg.Logging.File)
	}
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}

	if len(s) <= 8 {
		return "****"
	}

	return s[:4] + "..." + s[len(s)-4:]
}
