package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expdash/internal/config"
	"expdash/internal/engine"
	"expdash/internal/eventlog"
	"expdash/internal/logging"
	"expdash/internal/records"
	"expdash/internal/server"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose    bool
	listenAddr string
	openUI     bool
	cfg        *config.AppConfig

	recordsClient records.Client
	engineClient  engine.Client
)

var rootCmd = &cobra.Command{
	Use:   "expdash",
	Short: "expdash is the backend for the A/B experimentation dashboard",
	Long: `A workflow-orchestration backend for A/B experimentation: ticket lifecycle
tracking over a record backend, timeline and kanban views, and an analysis
wizard driving a remote statistics engine via HTTP polling.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)

		// Load configuration
		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		// Initialize external clients
		recordsClient = records.NewClient(cfg.Records)
		engineClient = engine.NewClient(cfg.Engine)

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Msg("expdash starting")
	},
	Run: func(cmd *cobra.Command, args []string) {
		addr := cfg.ListenAddr
		if listenAddr != "" {
			addr = listenAddr
		}

		events := eventlog.NewStore()
		srv := server.New(recordsClient, engineClient, events, cfg.CacheDir)

		go func() {
			if err := srv.Listen(addr); err != nil {
				log.Fatal().Err(err).Msg("Server stopped")
			}
		}()

		if openUI {
			if err := browser.OpenURL(cfg.DashboardURL); err != nil {
				log.Warn().Err(err).Str("url", cfg.DashboardURL).Msg("Failed to open dashboard in browser")
			}
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Info().Msg("Shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Shutdown error")
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides LISTEN_ADDR)")
	rootCmd.Flags().BoolVar(&openUI, "open", false, "open the dashboard in the default browser")
}
