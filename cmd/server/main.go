package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/opswatch/internal/alarms"
	"github.com/good-yellow-bee/opswatch/internal/api"
	"github.com/good-yellow-bee/opswatch/internal/api/health"
	"github.com/good-yellow-bee/opswatch/internal/bus"
	"github.com/good-yellow-bee/opswatch/internal/metrics"
	"github.com/good-yellow-bee/opswatch/internal/models"
	"github.com/good-yellow-bee/opswatch/internal/notifier"
	"github.com/good-yellow-bee/opswatch/internal/rules"
	"github.com/good-yellow-bee/opswatch/internal/storage"
	"github.com/good-yellow-bee/opswatch/internal/tracker"
	"github.com/good-yellow-bee/opswatch/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "opswatch-server",
	Short: "opswatch server - event hub, rule engine, and alarm manager",
	Long: `opswatch-server ingests events from connectors and telemetry feeds,
matches them against automation rules, and manages alarms with
notification dispatch and timed escalation.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("opswatch-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	// Load configuration from file if provided
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.HTTPAddress = httpAddr
	}
	cfg.Verbose = verbose

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	// Notification channels
	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	defer registry.Close()

	// Optional alarm archive
	var archive *storage.AlarmArchive
	if cfg.Alarms.ArchivePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Alarms.ArchivePath), 0750); err != nil {
			return fmt.Errorf("create archive directory: %w", err)
		}
		archive = storage.NewAlarmArchive(cfg.Alarms.ArchivePath)
		if err := archive.Open(); err != nil {
			return fmt.Errorf("open alarm archive: %w", err)
		}
		defer archive.Close()
		log.Printf("alarm archive at %s", cfg.Alarms.ArchivePath)
	}

	// Alarm manager
	managerOpts := alarms.Options{
		HistorySize:          cfg.Alarms.HistorySize,
		DefaultChannels:      cfg.Alarms.DefaultChannels,
		RateLimitWindow:      cfg.Alarms.RateLimitWindow,
		BypassTypeContains:   cfg.Alarms.BypassTypeContains,
		BypassSourceContains: cfg.Alarms.BypassSourceContains,
		EscalationEnabled:    cfg.Alarms.Escalation.Enabled,
		EscalationDelays:     cfg.Alarms.Escalation.Delays,
	}
	if archive != nil {
		managerOpts.Archive = archive
	}
	manager := alarms.NewManager(registry, managerOpts)
	defer manager.Close()

	// Rule engine with the manager as notify handler
	engine := rules.NewEngine(nil)
	engine.RegisterHandler(manager)
	defer engine.Close()

	if cfg.Rules.File != "" {
		loaded, err := rules.LoadRulesFromFile(cfg.Rules.File)
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		if err := engine.ReplaceRules(loaded); err != nil {
			return fmt.Errorf("register rules: %w", err)
		}
		log.Printf("loaded %d rules from %s", len(loaded), cfg.Rules.File)
	}

	// Event bus feeding the engine
	eventBus := bus.New(&bus.Options{
		HistorySize:       cfg.Bus.HistorySize,
		SubscriberTimeout: cfg.Bus.SubscriberTimeout,
	})
	eventBus.Subscribe("rule-engine", bus.Matcher{}, func(ctx context.Context, evt *models.Event) error {
		engine.ProcessEvent(evt)
		return nil
	})

	// Aircraft tracker publishing into the bus
	var aircraftTracker *tracker.Tracker
	if cfg.Tracker.Enabled {
		aircraftTracker = tracker.New(eventBus, tracker.Options{
			ReferenceLat:    cfg.Tracker.ReferenceLat,
			ReferenceLon:    cfg.Tracker.ReferenceLon,
			TrackingRadius:  cfg.Tracker.TrackingRadius,
			ApproachRadius:  cfg.Tracker.ApproachRadius,
			RunwayThreshold: cfg.Tracker.RunwayThreshold,
			Runways:         cfg.Tracker.Runways,
			HistorySize:     cfg.Tracker.HistorySize,
			Source:          cfg.Tracker.Source,
		})
	} else {
		// The API still serves the aircraft routes; the tracker just has
		// no reference geometry worth reporting against.
		aircraftTracker = tracker.New(eventBus, tracker.Options{})
	}

	eventBus.Start(ctx)
	engine.Start(ctx)
	go drainExecutions(ctx, engine, cfg.Verbose)

	if cfg.Rules.File != "" && cfg.Rules.Watch {
		if err := rules.WatchRulesFile(ctx, cfg.Rules.File, engine); err != nil {
			return fmt.Errorf("watch rules file: %w", err)
		}
	}

	// HTTP API
	apiServer, err := api.New(&api.Config{
		Address:        cfg.Server.HTTPAddress,
		JWTSecret:      cfg.JWTSecret(),
		AccessTokenTTL: cfg.Server.TokenTTL,
		Verbose:        cfg.Verbose,
	}, eventBus, engine, manager, aircraftTracker)
	if err != nil {
		return fmt.Errorf("create API server: %w", err)
	}
	if archive != nil {
		apiServer.RegisterHealthChecker(health.CheckerFunc{CheckName: "archive", Fn: archive.Ping})
	}

	metricsServer := metrics.NewServer(cfg.Server.MetricsAddress)

	log.Printf("starting opswatch-server %s", config.Version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return apiServer.Run(gctx)
	})
	g.Go(func() error {
		return metricsServer.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	log.Printf("server stopped")
	return nil
}

// drainExecutions consumes rule-executed notifications so the engine's
// observability channel keeps flowing; verbose mode logs each one.
func drainExecutions(ctx context.Context, engine *rules.Engine, verbose bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case exec, ok := <-engine.Executions():
			if !ok {
				return
			}
			if verbose {
				log.Printf("rule %q executed for event %s (%d actions)",
					exec.RuleName, exec.Event.ID, len(exec.Results))
			}
		}
	}
}

// buildRegistry creates the notifier registry from configured channels.
func buildRegistry(cfg *Config) (*notifier.Registry, error) {
	registry := notifier.NewRegistry()

	if cfg.Notifiers.Telegram.BotToken != "" {
		tg, err := notifier.NewTelegramNotifier(notifier.TelegramConfig{
			BotToken: cfg.Notifiers.Telegram.BotToken,
			ChatID:   cfg.Notifiers.Telegram.ChatID,
		})
		if err != nil {
			return nil, fmt.Errorf("telegram notifier: %w", err)
		}
		registry.Register(tg)
	}

	if cfg.Notifiers.Slack.WebhookURL != "" {
		slack, err := notifier.NewSlackNotifier(notifier.SlackConfig{
			WebhookURL: cfg.Notifiers.Slack.WebhookURL,
		})
		if err != nil {
			return nil, fmt.Errorf("slack notifier: %w", err)
		}
		registry.Register(slack)
	}

	for _, wh := range cfg.Notifiers.Webhooks {
		n, err := notifier.NewWebhookNotifier(notifier.WebhookConfig{
			Name:    wh.Name,
			URL:     wh.URL,
			Headers: wh.Headers,
			Timeout: wh.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("webhook notifier %s: %w", wh.Name, err)
		}
		registry.Register(n)
	}

	log.Printf("notification channels: %v", registry.Channels())
	return registry, nil
}
