package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"assistbot/internal/assistant"
	"assistbot/internal/channel"
	"assistbot/internal/config"
	"assistbot/internal/domain"
	"assistbot/internal/provider"
	"assistbot/internal/store"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "assistbot",
		Short: "Assistbot: personal AI assistant with web and Telegram front doors",
		Long:  "Assistbot serves a REST backend for the browser dashboard and a Telegram bot against one shared store of persons, chat turns, uploads, and searches.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ~/.assistbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}
	return cfg
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and data directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.General.UploadsDir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "uploads", cfg.General.UploadsDir)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the enabled channel adapters",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setLogLevel(cfg.General.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.Store.DBPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	persona, err := config.LoadPersona(cfg.General.PersonaPath)
	if err != nil {
		logger.Warn("persona file rejected, using defaults", "err", err)
	}

	httpClient := provider.SharedHTTPClient(0)
	chatLM := provider.NewOpenAI(provider.OpenAIConfig{
		APIKey:  cfg.Provider.APIKey,
		APIBase: cfg.Provider.APIBase,
		Model:   cfg.Provider.ChatModel,
		Client:  httpClient,
		Logger:  logger,
	})
	visionLM := provider.NewOpenAI(provider.OpenAIConfig{
		APIKey:  cfg.Provider.APIKey,
		APIBase: cfg.Provider.APIBase,
		Model:   cfg.Provider.VisionModel,
		Client:  httpClient,
		Logger:  logger,
	})

	var browserFallback *provider.BrowserSearch
	if cfg.Search.BrowserFallback {
		browserFallback = provider.NewBrowserSearch(logger)
	}

	svc, err := assistant.New(assistant.ServiceConfig{
		Identity: db,
		Ledger:   db,
		LM:       chatLM,
		Search: provider.NewWebSearch(provider.WebSearchConfig{
			Endpoint:     cfg.Search.Endpoint,
			LM:           chatLM,
			Browser:      browserFallback,
			SystemPrompt: persona.SearchPrompt,
			Logger:       logger,
		}),
		Analyzer: provider.NewAnalyzer(provider.AnalyzerConfig{
			LM:           visionLM,
			SystemPrompt: persona.AnalyzerPrompt,
			Logger:       logger,
		}),
		Persona:        persona,
		UploadsDir:     cfg.General.UploadsDir,
		MaxUploadBytes: cfg.General.MaxUploadMB << 20,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	// The two adapters run concurrently with no shared in-process state;
	// the store is their only coordination point.
	errCh := make(chan error, 2)
	running := 0

	if cfg.Channels.Web.Enabled {
		web := channel.NewWeb(channel.WebAdapterConfig{
			Host:        cfg.Channels.Web.Host,
			Port:        cfg.Channels.Web.Port,
			CORSOrigins: cfg.Channels.Web.CORSOrigins,
			Service:     svc,
			Version:     version,
			Logger:      logger,
		})
		running++
		go func() { errCh <- web.Start(ctx) }()
	}

	if cfg.Channels.Bot.Enabled {
		bot := channel.NewTelegram(channel.TelegramAdapterConfig{
			Token:     cfg.Channels.Bot.Token,
			AllowFrom: cfg.Channels.Bot.AllowFrom,
			Service:   svc,
			Logger:    logger,
		})
		running++
		go func() { errCh <- bot.Start(ctx) }()
	}

	if running == 0 {
		return fmt.Errorf("no channels enabled; enable channels.web or channels.bot in the config")
	}

	for i := 0; i < running; i++ {
		if err := <-errCh; err != nil {
			stop()
			return err
		}
	}
	return nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			db, err := store.Open(cfg.Store.DBPath, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			persons, err := db.CountPersons(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("assistbot v%s\n", version)
			fmt.Printf("database: %s\n", cfg.Store.DBPath)
			fmt.Printf("persons:  %d\n", persons)
			for _, stream := range []domain.Stream{domain.StreamChat, domain.StreamFile, domain.StreamSearch} {
				n, err := db.CountEntries(ctx, stream)
				if err != nil {
					return err
				}
				fmt.Printf("%-7s entries: %d\n", stream, n)
			}
			return nil
		},
	}
}

func setLogLevel(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
