package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"toolgate/internal/auth"
	"toolgate/internal/config"
	"toolgate/internal/dispatcher"
	googleprovider "toolgate/internal/providers/google"
	"toolgate/internal/server"
	"toolgate/internal/tools/calendar"
	"toolgate/pkg/logging"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveConfigPath specifies a custom configuration directory. When empty,
// configuration is loaded from ~/.config/toolgate.
var serveConfigPath string

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the toolgate gateway server",
	Long: `Starts the gateway: the MCP endpoint exposing the gated tools, and the
authorization endpoints that complete deferred OAuth flows.

Configuration is read from config.yaml in the configuration directory
(--config-path, default ~/.config/toolgate). The Google provider needs an
OAuth client credentials file; point google.credentialsFile at the JSON
downloaded from the Google Cloud console.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Configuration directory (default ~/.config/toolgate)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	logLevel := logging.LevelInfo
	if serveDebug {
		logLevel = logging.LevelDebug
	}
	logging.Init(logLevel, os.Stdout)

	configPath := serveConfigPath
	if configPath == "" {
		var err error
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			return err
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	grantStore, err := googleprovider.NewGrantStore(googleprovider.GrantStoreConfig{
		Dir:      cfg.Google.TokenDir,
		FileMode: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create grant store: %w", err)
	}

	google, err := googleprovider.New(googleprovider.Config{
		CredentialsFile: cfg.Google.CredentialsFile,
		BaseURL:         cfg.BaseURL(),
		Store:           grantStore,
	})
	if err != nil {
		return fmt.Errorf("failed to create Google provider: %w", err)
	}

	providers, err := auth.NewProviderRegistry(google)
	if err != nil {
		return fmt.Errorf("failed to create provider registry: %w", err)
	}

	elicitations := auth.NewElicitationStore(auth.ElicitationStoreConfig{
		TTL:           cfg.Elicitation.TTL.Std(),
		SweepInterval: cfg.Elicitation.SweepInterval.Std(),
	})

	gate := auth.NewGate(providers, elicitations, cfg.Principal)

	d := dispatcher.New(gate)
	if err := calendar.NewTools(googleprovider.ProviderName).Register(d); err != nil {
		return fmt.Errorf("failed to register calendar tools: %w", err)
	}

	srv := server.New(cfg, GetVersion(), d, providers, elicitations)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(runCtx)
}
