package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/camposer/agentrelay/internal/agent"
	"github.com/camposer/agentrelay/internal/batch"
	"github.com/camposer/agentrelay/internal/bus"
	"github.com/camposer/agentrelay/internal/config"
	"github.com/camposer/agentrelay/internal/gateway"
	"github.com/camposer/agentrelay/internal/httpapi"
	"github.com/camposer/agentrelay/internal/knowledge"
	"github.com/camposer/agentrelay/internal/providers"
	"github.com/camposer/agentrelay/internal/redis"
	"github.com/camposer/agentrelay/internal/store"
	"github.com/camposer/agentrelay/internal/store/file"
	"github.com/camposer/agentrelay/internal/store/memory"
	"github.com/camposer/agentrelay/internal/store/pg"
	"github.com/camposer/agentrelay/internal/store/sqlite"
	"github.com/camposer/agentrelay/internal/telemetry"
	"github.com/camposer/agentrelay/internal/webhook"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry first so everything downstream traces through it.
	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry init failed, continuing without traces", "error", err)
	} else {
		defer shutdownTelemetry(context.Background())
	}

	// Agent store by database mode.
	agents, closeStore, err := openAgentStore(cfg)
	if err != nil {
		slog.Error("failed to open agent store", "error", err)
		os.Exit(1)
	}
	if closeStore != nil {
		defer closeStore()
	}

	if cfg.Agents.SeedDefault {
		seedDefaultAgent(ctx, agents, cfg)
	}

	// Optional JSON5 agents file: sync now, re-sync on change.
	if cfg.Database.AgentsFile != "" {
		loader := file.NewSeedLoader(cfg.Database.AgentsFile, agents)
		if err := loader.Sync(ctx); err != nil {
			slog.Warn("agents file sync failed", "error", err)
		}
		if err := loader.Watch(ctx); err != nil {
			slog.Warn("agents file watch failed", "error", err)
		} else {
			defer loader.Stop()
		}
	}

	// Providers from config. Registration order matters: the first becomes
	// the fallback for unprefixed model ids.
	registry := providers.NewRegistry()
	registerProviders(registry, cfg)
	if !cfg.HasAnyProvider() {
		slog.Warn("no provider API keys configured, all invocations will fall back",
			"hint", "set AGENTRELAY_OPENAI_API_KEY or AGENTRELAY_ANTHROPIC_API_KEY")
	}

	// Optional collaborators. Each disables itself cleanly when unconfigured.
	rdb := redis.Connect(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}
	knowledgeStore := knowledge.NewStore(cfg.Knowledge)

	msgBus := bus.New()
	runner := agent.NewRunner(registry)
	sender := webhook.NewSender(cfg.Webhook.Timeout(), cfg.Webhook.RateLimitRPM)

	var recorder batch.TurnRecorder
	if knowledgeStore != nil {
		recorder = knowledgeStore
	}
	dispatcher := batch.NewDispatcher(agents, runner, recorder, sender, msgBus)

	// Dispatch outlives ctx: a drain at shutdown must still reach providers
	// and webhooks after the server context is cancelled.
	dispatchCtx := context.WithoutCancel(ctx)
	debouncer := batch.NewDebouncer(cfg.Debounce.DefaultInterval(), func(key string, msgs []batch.Message) {
		dispatcher.Dispatch(dispatchCtx, key, msgs)
	})

	server := gateway.NewServer(cfg.Server, msgBus,
		httpapi.NewMessagesHandler(debouncer, rdb, cfg.Auth.APIKey),
		httpapi.NewAgentsHandler(agents, cfg.Auth.APIKey, msgBus),
		httpapi.NewKnowledgeHandler(knowledgeStore, cfg.Auth.APIKey),
		httpapi.NewHealthHandler(agents, rdb, knowledgeStore, debouncer, Version),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("graceful shutdown initiated", "signal", sig)
		msgBus.Broadcast(bus.Event{Name: bus.EventShutdown})
		cancel()
	}()

	slog.Info("agentrelay starting",
		"version", Version,
		"addr", cfg.Server.Addr(),
		"database_mode", cfg.Database.Mode,
		"debounce_default", cfg.Debounce.DefaultInterval(),
		"providers", registry.Names(),
		"redis", rdb != nil,
		"knowledge", knowledgeStore != nil,
	)

	serveErr := server.Start(ctx)

	// Intake is closed; settle what is still pending before exiting.
	debouncer.Stop(cfg.Debounce.DrainOnShutdown)

	if serveErr != nil {
		slog.Error("gateway error", "error", serveErr)
		os.Exit(1)
	}
}

// openAgentStore selects the store backend from config. The returned
// close func may be nil (memory mode).
func openAgentStore(cfg *config.Config) (store.AgentStore, func() error, error) {
	switch {
	case cfg.Database.IsManagedMode():
		db, err := pg.OpenDB(cfg.Database.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("agent store: postgres")
		return pg.NewAgentStore(db), db.Close, nil
	case cfg.Database.Mode == "sqlite":
		path := cfg.Database.SQLitePath
		if path == "" {
			path = "agentrelay.db"
		}
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("agent store: sqlite", "path", path)
		return s, s.Close, nil
	default:
		slog.Info("agent store: memory")
		return memory.NewAgentStore(), nil, nil
	}
}

// seedDefaultAgent guarantees at least one agent exists so the gateway is
// usable out of the box. An existing "default" agent is left untouched.
func seedDefaultAgent(ctx context.Context, agents store.AgentStore, cfg *config.Config) {
	a := &store.AgentData{
		ID:           "default",
		Name:         "Default Agent",
		Description:  "Built-in agent seeded on first start",
		Instructions: cfg.Agents.DefaultInstructions,
		Model:        cfg.Agents.DefaultModel,
	}
	a.Normalize()
	a.ID = "default"
	switch err := agents.Create(ctx, a); err {
	case nil:
		slog.Info("seeded default agent", "model", a.Model)
	case store.ErrAlreadyExists:
		// Already seeded on a previous start.
	default:
		slog.Warn("default agent seeding failed", "error", err)
	}
}

// registerProviders builds the provider registry from configured API keys.
// OpenRouter reuses the OpenAI wire format against its own base URL.
func registerProviders(registry *providers.Registry, cfg *config.Config) {
	if k := cfg.Providers.OpenAI.APIKey; k != "" {
		registry.Register(providers.NewOpenAIProvider(
			"openai", k, cfg.Providers.OpenAI.APIBase, cfg.Providers.OpenAI.DefaultModel))
		slog.Info("provider registered", "name", "openai")
	}
	if k := cfg.Providers.Anthropic.APIKey; k != "" {
		opts := []providers.AnthropicOption{}
		if m := cfg.Providers.Anthropic.DefaultModel; m != "" {
			opts = append(opts, providers.WithAnthropicModel(m))
		}
		if b := cfg.Providers.Anthropic.APIBase; b != "" {
			opts = append(opts, providers.WithAnthropicBaseURL(b))
		}
		registry.Register(providers.NewAnthropicProvider(k, opts...))
		slog.Info("provider registered", "name", "anthropic")
	}
	if k := cfg.Providers.OpenRouter.APIKey; k != "" {
		base := cfg.Providers.OpenRouter.APIBase
		if base == "" {
			base = "https://openrouter.ai/api/v1"
		}
		registry.Register(providers.NewOpenAIProvider(
			"openrouter", k, base, cfg.Providers.OpenRouter.DefaultModel))
		slog.Info("provider registered", "name", "openrouter")
	}
}
