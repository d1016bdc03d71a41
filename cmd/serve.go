package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sheetchat/sheetchat/internal/config"
	"github.com/sheetchat/sheetchat/internal/dataset"
	"github.com/sheetchat/sheetchat/internal/errors"
	"github.com/sheetchat/sheetchat/internal/logging"
	"github.com/sheetchat/sheetchat/internal/planner"
	"github.com/sheetchat/sheetchat/internal/web"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web application",
	Long: `Start the sheetchat web server. Open the printed address in a browser,
upload a spreadsheet, and start asking questions.

Examples:
  sheetchat serve
  sheetchat serve --port 9000
  sheetchat serve --host 0.0.0.0 --provider openai --model gpt-4o-mini`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Address to bind (default 127.0.0.1)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default 8742)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadActiveConfig()
	if err != nil {
		return err
	}

	if serveHost != "" {
		cfg.Server.Host = serveHost
	}

	if servePort != 0 {
		if servePort < 1 || servePort > 65535 {
			return errors.NewConfigError(fmt.Sprintf("invalid port: %d", servePort), "port")
		}

		cfg.Server.Port = servePort
	}

	// An ephemeral secret is fine for a single-process server: cookies
	// just stop validating across restarts.
	if cfg.Server.SessionSecret == "" {
		cfg.Server.SessionSecret = uuid.NewString()
	}

	logger := logging.GetLogger()

	store, err := dataset.NewStore()
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDataset, "failed to open analysis database")
	}
	defer store.Close()

	svc, err := buildPlanner(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeConfig, "failed to configure planner")
	}

	if cfg.LLM.APIKey == "" {
		logger.Info("no API key configured, using the rule-based planner")
	} else {
		logger.WithFields(map[string]interface{}{
			"provider": cfg.LLM.Provider,
			"model":    cfg.LLM.Model,
		}).Info("hosted model planner enabled")
	}

	srv := web.NewServer(cfg, store, svc)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx)
}

// buildPlanner wires the planning chain for the active config. With an API
// key the hosted client runs first with retries, falling back to the rule
// engine; without one the rule engine answers everything.
func buildPlanner(cfg *config.Config) (planner.Service, error) {
	mc := planner.ManagerConfig{
		RetryAttempts:  cfg.LLM.RetryAttempts,
		RetryDelay:     cfg.LLMRetryDelay(),
		Timeout:        cfg.LLMTimeout(),
		EnableFallback: true,
	}

	if cfg.LLM.APIKey == "" {
		return planner.NewManager(nil, mc), nil
	}

	client := planner.NewClient(planner.Config{})
	if err := client.Configure(planner.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	}); err != nil {
		return nil, err
	}

	return planner.NewManager(client, mc), nil
}
