package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sheetchat/sheetchat/internal/config"
	"github.com/sheetchat/sheetchat/internal/logging"
)

var (
	flagLogLevel string
	flagProvider string
	flagModel    string
)

var rootCmd = &cobra.Command{
	Use:   "sheetchat",
	Short: "Ask natural language questions about your spreadsheets",
	Long: `sheetchat loads an Excel or CSV spreadsheet and answers natural language
questions about it with summary statistics, charts, and filtered row views.
Questions are translated into a fixed set of analysis descriptors, either by
a hosted language model or by a built-in rule engine, and every descriptor
is executed locally against an in-memory DuckDB table. Cell values never
leave the machine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	ctx := context.Background()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "Model provider: gemini, openai, anthropic")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "Model name, e.g. gemini-2.0-flash")
}

// loadActiveConfig merges defaults, the config file, environment variables,
// and the persistent flags, then initializes the global logger.
func loadActiveConfig() (*config.Config, error) {
	overrides := map[string]interface{}{}
	if flagLogLevel != "" {
		overrides["log-level"] = flagLogLevel
	}
	if flagProvider != "" {
		overrides["provider"] = flagProvider
	}
	if flagModel != "" {
		overrides["model"] = flagModel
	}

	cfg, err := config.LoadConfigWithOverrides(overrides)
	if err != nil {
		return nil, err
	}

	if err := logging.InitializeLogger(cfg.Logging); err != nil {
		logging.SetupFallbackLogger()
	}

	return cfg, nil
}
