package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"renterchat/internal/agent"
	"renterchat/internal/catalog"
	"renterchat/internal/config"
	"renterchat/internal/embedding"
	"renterchat/internal/fuzzy"
	"renterchat/internal/llm"
	"renterchat/internal/logging"
	"renterchat/internal/mcp"
	"renterchat/internal/memory"
	"renterchat/internal/prefs"
	"renterchat/internal/server"
)

var (
	cfgPath string
	verbose bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "renterchat",
	Short: "Conversational leasing assistant",
	Long: `renterchat is a leasing assistant for apartment communities. It answers
prospective renters over an HTTP chat API, learns their preferences across
the conversation, and consults live inventory (availability, pet policies,
pricing) through model tool calls.

The same inventory tools are also exposed as an MCP server for external
agents.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP chat API",
	RunE:  runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the inventory tools over MCP (stdio)",
	RunE:  runMCP,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Validate the catalog data source and print a summary",
	RunE:  runCatalog,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.DefaultConfig()
		fmt.Printf("%s %s\n", cfg.Name, cfg.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file path (default: config.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd, mcpCmd, catalogCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	path := cfgPath
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.DebugMode = true
	}
	return cfg, nil
}

func setupLogging(cfg config.Config) error {
	return logging.Configure(logging.Options{
		Dir:        cfg.Logging.Dir,
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
		Categories: cfg.Logging.Categories,
	})
}

// buildCatalog constructs the catalog store, with the fuzzy matcher wired
// in when an embedding backend is configured. Matcher setup failures soften
// to exact-only matching; a failed catalog load is fatal.
func buildCatalog(ctx context.Context, cfg config.Config) (*catalog.Store, error) {
	provider, err := catalog.NewProvider(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	var opts []catalog.StoreOption
	if cfg.Embedding.Provider != "" && cfg.Embedding.Provider != "disabled" {
		engine, err := embedding.NewEngine(embedding.Config{
			Provider:       cfg.Embedding.Provider,
			OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
			OllamaModel:    cfg.Embedding.OllamaModel,
			GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
			GenAIModel:     cfg.Embedding.GenAIModel,
		})
		if err != nil {
			logger.Warn("embedding engine unavailable, fuzzy pet matching disabled", zap.Error(err))
		} else {
			opts = append(opts, catalog.WithMatcher(fuzzy.NewMatcher(engine, cfg.Matcher.ConfidenceThreshold)))
		}
	}

	return catalog.NewStore(ctx, provider, opts...)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}
	defer logging.CloseAll()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := buildCatalog(ctx, cfg)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	if cfg.Catalog.Watch && cfg.Catalog.Provider != "sqlite" {
		watcher, err := catalog.NewWatcher(cfg.Catalog.DataDir, store)
		if err != nil {
			logger.Warn("catalog watcher unavailable", zap.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("catalog watcher failed to start", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm client: %w", err)
	}

	var memOpts []memory.StoreOption
	if cfg.Extractor.Enabled {
		extractorClient, err := llm.NewClient(config.LLMConfig{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.Extractor.Model,
			Timeout:  cfg.Extractor.Timeout,
		})
		if err != nil {
			logger.Warn("extractor client unavailable, preference learning disabled", zap.Error(err))
		} else {
			memOpts = append(memOpts, memory.WithExtractor(prefs.NewExtractor(extractorClient)))
		}
	}
	mem := memory.NewStore(memOpts...)

	coord := agent.NewCoordinator(client, store, mem)
	srv := server.New(cfg, coord, mem)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("renterchat serving",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("model", cfg.LLM.Model),
		zap.String("catalog", cfg.Catalog.Provider))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// MCP mode needs no model credentials, only the catalog.
	if err := setupLogging(cfg); err != nil {
		return err
	}
	defer logging.CloseAll()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := buildCatalog(ctx, cfg)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	logger.Info("renterchat mcp server on stdio")
	return mcp.ServeStdio(mcp.New(cfg.Name, cfg.Version, store))
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}
	defer logging.CloseAll()

	store, err := buildCatalog(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	snap := store.Snapshot()
	fmt.Printf("catalog source: %s\n", cfg.Catalog.Provider)
	fmt.Printf("communities:    %d\n", len(snap.Communities))
	fmt.Printf("units:          %d\n", snap.UnitCount())
	fmt.Printf("specials:       %d\n", len(snap.Specials))
	fmt.Printf("pet types:      %v\n", snap.PetVocabulary())
	for _, id := range store.Communities() {
		info, _ := store.CommunityInfo(id)
		fmt.Printf("  %-20s %s (%s)\n", id, info.Name, info.Location)
	}
	return nil
}
