package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskpilot/internal/application/port/output"
	"taskpilot/internal/infrastructure/browser/page"
	"taskpilot/internal/infrastructure/browser/rod"
	"taskpilot/internal/infrastructure/fetch"
	"taskpilot/internal/infrastructure/httpapi"
	"taskpilot/internal/infrastructure/llm/compat"
	"taskpilot/internal/infrastructure/llm/guard"
	"taskpilot/internal/infrastructure/llm/ollama"
	"taskpilot/internal/infrastructure/llm/openrouter"
	"taskpilot/internal/infrastructure/logger"
	"taskpilot/internal/infrastructure/metrics"
	"taskpilot/internal/infrastructure/store"
	"taskpilot/internal/infrastructure/userinteraction"
	"taskpilot/internal/usecase/memory"
	"taskpilot/internal/usecase/perception"
	"taskpilot/internal/usecase/scheduler"
)

type Container struct {
	Logger    output.LoggerPort
	Store     output.PersistentStore
	Memory    *memory.UseCase
	Tabs      *rod.TabController
	LLM       output.LLMPort
	Loop      *perception.UseCase
	Scheduler *scheduler.UseCase
	Metrics   *metrics.Observer
	API       *httpapi.Server
}

// NewMemoryContainer builds only what the memory maintenance commands need:
// no browser, no planner.
func NewMemoryContainer(ctx context.Context, cfg Config) (*Container, error) {
	log, err := logger.NewLoggerAdapter(loggerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	memCfg := memory.DefaultConfig()
	memCfg.MaxSize = cfg.MemoryMaxSize

	return &Container{
		Logger: log,
		Store:  st,
		Memory: memory.New(st, log, memCfg),
	}, nil
}

func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	c, err := NewMemoryContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	llm, err := NewLLM(cfg.Planner, c.Logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.LLM = llm

	browserCfg := rod.DefaultConfig()
	browserCfg.Headless = cfg.BrowserHeadless
	browserCfg.ControlURL = cfg.BrowserControlURL
	tabs, err := rod.NewTabController(ctx, browserCfg, c.Logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create browser: %w", err)
	}
	c.Tabs = tabs

	driver := page.NewDriver(tabs, c.Logger)

	loopCfg := perception.DefaultConfig()
	loopCfg.LoadTimeout = cfg.TabLoadTimeout
	if cfg.Planner.VisionModel != "" {
		loopCfg.VisionModel = cfg.Planner.VisionModel
	}
	if cfg.Planner.Model != "" {
		loopCfg.PlanModel = cfg.Planner.Model
	}
	c.Loop = perception.New(tabs, driver, llm, c.Logger, loopCfg)

	fetchCfg := fetch.DefaultConfig()
	fetchCfg.Logger = c.Logger

	c.Metrics = metrics.NewObserver("taskpilot")

	schedCfg := scheduler.DefaultConfig()
	schedCfg.MaxDepth = cfg.MaxDepth
	schedCfg.TaskInterval = cfg.TaskInterval
	schedCfg.LoadTimeout = cfg.TabLoadTimeout
	schedCfg.Learning = cfg.LearningEnabled
	schedCfg.SearchURL = cfg.SearchURL
	if cfg.Planner.Model != "" {
		schedCfg.AnalysisModel = cfg.Planner.Model
	}

	c.Scheduler = scheduler.New(scheduler.Deps{
		Store:      c.Store,
		Memory:     c.Memory,
		Tabs:       tabs,
		Page:       driver,
		LLM:        llm,
		Loop:       c.Loop,
		Downloader: fetch.NewHTTPDownloader(fetchCfg),
		Sink:       fetch.NewDirSink(cfg.DownloadDir),
		Logger:     c.Logger,
		Observers: []output.TaskObserver{
			c.Metrics,
			userinteraction.NewConsoleReporter(),
		},
	}, schedCfg)

	apiCfg := httpapi.DefaultConfig()
	apiCfg.Addr = cfg.HTTPAddr
	c.API = httpapi.NewServer(apiCfg, c.Scheduler, c.Memory, c.Metrics.Handler(), c.Logger)

	return c, nil
}

// NewLLM builds the planner backend for the provider, behind the rate
// limiter and circuit breaker.
func NewLLM(cfg PlannerConfig, log output.LoggerPort) (output.LLMPort, error) {
	var backend output.LLMPort
	switch cfg.Provider {
	case ProviderOpenAI, "openrouter", "":
		if cfg.APIKey == "" {
			return nil, errors.New("PLANNER_API_KEY is required for the openai provider")
		}
		orCfg := openrouter.DefaultConfig(cfg.APIKey, cfg.Model)
		if cfg.BaseURL != "" {
			orCfg.BaseURL = cfg.BaseURL
		}
		orCfg.Logger = log
		backend = openrouter.NewOpenRouterAdapter(orCfg)

	case ProviderOllama:
		olCfg := ollama.DefaultConfig(cfg.Model)
		if cfg.BaseURL != "" {
			olCfg.ServerURL = cfg.BaseURL
		}
		olCfg.Logger = log
		a, err := ollama.NewAdapter(olCfg)
		if err != nil {
			return nil, err
		}
		backend = a

	case ProviderCompat:
		if cfg.BaseURL == "" {
			return nil, errors.New("PLANNER_BASE_URL is required for the compat provider")
		}
		cCfg := compat.DefaultConfig(cfg.BaseURL, cfg.Model)
		cCfg.APIKey = cfg.APIKey
		cCfg.Logger = log
		backend = compat.NewAdapter(cCfg)

	default:
		return nil, fmt.Errorf("unknown planner provider %q", cfg.Provider)
	}

	gCfg := guard.DefaultConfig()
	gCfg.RequestsPerSecond = cfg.RPS
	gCfg.Logger = log
	return guard.New(backend, gCfg), nil
}

func loggerConfig(cfg Config) logger.Config {
	lc := logger.DefaultConfig("agent")
	if cfg.LogDir != "" {
		lc.Dir = cfg.LogDir
	}
	if cfg.LogLevel != "" {
		lc.Level = cfg.LogLevel
	}
	lc.Console = cfg.LogConsole
	return lc
}

// Close stops the worker first so its last checkpoint reaches the store.
func (c *Container) Close() {
	if c.Scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := c.Scheduler.Shutdown(ctx); err != nil {
			c.Logger.Warn("Scheduler shutdown", "error", err)
		}
		cancel()
	}
	if c.Tabs != nil {
		c.Tabs.Shutdown()
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.Logger.Warn("Store close", "error", err)
		}
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}
