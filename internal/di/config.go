package di

import (
	"time"

	"taskpilot/internal/application/port/output"
	"taskpilot/internal/infrastructure/store"
	"taskpilot/internal/usecase/memory"
	"taskpilot/internal/usecase/scheduler"
)

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
	ProviderCompat Provider = "compat"
)

type Config struct {
	Planner PlannerConfig
	Store   store.Config

	MemoryMaxSize   int
	LearningEnabled bool
	MaxDepth        int
	TaskInterval    time.Duration
	TabLoadTimeout  time.Duration
	SearchURL       string

	BrowserHeadless   bool
	BrowserControlURL string
	DownloadDir       string

	HTTPAddr string
	LogLevel string
	LogDir   string
	// LogConsole mirrors the log file on stderr.
	LogConsole bool
}

type PlannerConfig struct {
	Provider    Provider
	APIKey      string
	BaseURL     string
	Model       string
	VisionModel string
	RPS         float64
}

// LoadConfig reads the environment. Every key has a usable default except
// the planner credentials, which only some providers need.
func LoadConfig(env output.ConfigPort) Config {
	storeDefaults := store.DefaultConfig()
	schedDefaults := scheduler.DefaultConfig()

	model := env.Get("PLANNER_MODEL")
	return Config{
		Planner: PlannerConfig{
			Provider:    Provider(env.GetWithDefault("PLANNER_PROVIDER", string(ProviderOpenAI))),
			APIKey:      env.Get("PLANNER_API_KEY"),
			BaseURL:     env.Get("PLANNER_BASE_URL"),
			Model:       model,
			VisionModel: env.GetWithDefault("PLANNER_VISION_MODEL", model),
			RPS:         env.GetFloat("PLANNER_RPS", 2),
		},
		Store: store.Config{
			Type:          store.Type(env.GetWithDefault("STORE_TYPE", string(storeDefaults.Type))),
			Path:          env.GetWithDefault("STORE_PATH", storeDefaults.Path),
			RedisAddr:     env.GetWithDefault("REDIS_ADDR", storeDefaults.RedisAddr),
			RedisPassword: env.Get("REDIS_PASSWORD"),
			RedisDB:       env.GetInt("REDIS_DB", 0),
			Namespace:     env.GetWithDefault("STORE_NAMESPACE", storeDefaults.Namespace),
		},
		MemoryMaxSize:     env.GetInt("MEMORY_MAX_SIZE", memory.DefaultMaxSize),
		LearningEnabled:   env.GetBool("LEARNING_ENABLED", true),
		MaxDepth:          env.GetInt("SCHEDULER_MAX_DEPTH", schedDefaults.MaxDepth),
		TaskInterval:      env.GetDuration("SCHEDULER_TASK_INTERVAL", schedDefaults.TaskInterval),
		TabLoadTimeout:    env.GetDuration("TAB_LOAD_TIMEOUT", schedDefaults.LoadTimeout),
		SearchURL:         env.GetWithDefault("SEARCH_URL", schedDefaults.SearchURL),
		BrowserHeadless:   env.GetBool("BROWSER_HEADLESS", true),
		BrowserControlURL: env.Get("BROWSER_CONTROL_URL"),
		DownloadDir:       env.GetWithDefault("DOWNLOAD_DIR", "downloads"),
		HTTPAddr:          env.GetWithDefault("HTTP_ADDR", ":8080"),
		LogLevel:          env.GetWithDefault("LOG_LEVEL", "info"),
		LogDir:            env.GetWithDefault("LOG_DIR", "log"),
		LogConsole:        env.GetBool("LOG_CONSOLE", false),
	}
}
