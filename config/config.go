package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir    string `json:"project_dir"`
	CacheDir      string `json:"cache_dir"`
	TempDir       string `json:"temp_dir"`
	PodcastDir    string `json:"podcast_dir"`
	AppConfigPath string `json:"app_config_path"`

	LLMProvider   string  `json:"llm_provider"`
	LLMRatePerSec float64 `json:"llm_rate_per_sec"`
	LLMBurst      int     `json:"llm_burst"`

	WorkerMaxIterations int `json:"worker_max_iterations"`
	FanoutConcurrency   int `json:"fanout_concurrency"`

	DebateMinRounds           int     `json:"debate_min_rounds"`
	DebateMaxRounds           int     `json:"debate_max_rounds"`
	DebateConsensusConfidence float64 `json:"debate_consensus_confidence"`
	ThemeRefinerMaxRetries    int     `json:"theme_refiner_max_retries"`

	NewsBodyMaxChars   int           `json:"news_body_max_chars"`
	SECFilingPageChars int           `json:"sec_filing_page_chars"`
	SECUserAgent       string        `json:"sec_user_agent"`
	SECTimeout         time.Duration `json:"sec_timeout"`

	OHLCVProvider string `json:"ohlcv_provider"`

	IndexDBDriver string `json:"index_db_driver"`
	IndexDBDSN    string `json:"index_db_dsn"`

	// Tool result cache; file backed unless REDIS_ADDR is set
	CacheEnabled  bool          `json:"cache_enabled"`
	CacheTTL      time.Duration `json:"cache_ttl"`
	RedisAddr     string        `json:"redis_addr"`
	RedisPassword string        `json:"-"`
	RedisDB       int           `json:"redis_db"`

	ServeAddr string `json:"serve_addr"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`

	// Longport API Configuration
	LongportAppKey      string `json:"-"`
	LongportAppSecret   string `json:"-"`
	LongportAccessToken string `json:"-"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := &Config{
		ProjectDir:    currentDir,
		CacheDir:      filepath.Join(currentDir, "cache"),
		TempDir:       filepath.Join(currentDir, "temp"),
		PodcastDir:    filepath.Join(currentDir, "podcast"),
		AppConfigPath: filepath.Join(currentDir, "config", "app.yaml"),

		LLMProvider:   "openai",
		LLMRatePerSec: 2,
		LLMBurst:      4,

		WorkerMaxIterations: 12,
		FanoutConcurrency:   4,

		DebateMinRounds:           2,
		DebateMaxRounds:           2,
		DebateConsensusConfidence: 0.7,
		ThemeRefinerMaxRetries:    2,

		NewsBodyMaxChars:   8000,
		SECFilingPageChars: 20000,
		SECTimeout:         30 * time.Second,

		OHLCVProvider: "yahoo",

		IndexDBDriver: "sqlite",
		IndexDBDSN:    filepath.Join(currentDir, "podcast", "index.db"),

		CacheEnabled: true,
		CacheTTL:     6 * time.Hour,

		ServeAddr: ":8080",

		// Eino Debug defaults
		EinoDebugEnabled: false,
		EinoDebugPort:    52538,
	}

	if val := os.Getenv("APP_CONFIG_PATH"); val != "" {
		cfg.AppConfigPath = val
	}
	// real env > app.yaml > .env; neither loader overrides what is already set
	if _, err := LoadEnvFromYAML(cfg.AppConfigPath, false); err != nil {
		log.Printf("[Config] app config %s ignored: %v", cfg.AppConfigPath, err)
	}

	// Load environment variables from .env file
	_ = godotenv.Load()

	// Override with environment variables if they exist
	cfg.loadFromEnv()

	return cfg
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("CACHE_DIR"); val != "" {
		c.CacheDir = val
	}
	if val := os.Getenv("TEMP_DIR"); val != "" {
		c.TempDir = val
	}
	if val := os.Getenv("PODCAST_DIR"); val != "" {
		c.PodcastDir = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = strings.ToLower(strings.TrimSpace(val))
	}
	if val := os.Getenv("LLM_RATE_PER_SEC"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.LLMRatePerSec = v
		}
	}
	envInt("LLM_BURST", &c.LLMBurst)
	envInt("WORKER_MAX_ITERATIONS", &c.WorkerMaxIterations)
	envInt("FANOUT_CONCURRENCY", &c.FanoutConcurrency)

	envInt("DEBATE_MIN_ROUNDS", &c.DebateMinRounds)
	envInt("DEBATE_MAX_ROUNDS", &c.DebateMaxRounds)
	if val := os.Getenv("DEBATE_CONSENSUS_CONFIDENCE"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.DebateConsensusConfidence = v
		}
	}
	envInt("THEME_REFINER_MAX_RETRIES", &c.ThemeRefinerMaxRetries)

	envInt("NEWS_BODY_MAX_CHARS", &c.NewsBodyMaxChars)
	envInt("SEC_FILING_PAGE_CHARS", &c.SECFilingPageChars)
	if val := os.Getenv("SEC_USER_AGENT"); val != "" {
		c.SECUserAgent = strings.TrimSpace(val)
	}
	if val := os.Getenv("SEC_TIMEOUT"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
			c.SECTimeout = time.Duration(secs) * time.Second
		}
	}

	if val := os.Getenv("OHLCV_PROVIDER"); val != "" {
		c.OHLCVProvider = strings.ToLower(strings.TrimSpace(val))
	}

	if val := os.Getenv("INDEX_DB_DRIVER"); val != "" {
		c.IndexDBDriver = strings.ToLower(strings.TrimSpace(val))
	}
	if val := os.Getenv("INDEX_DB_DSN"); val != "" {
		c.IndexDBDSN = val
	} else if val := os.Getenv("PODCAST_DIR"); val != "" {
		c.IndexDBDSN = filepath.Join(val, "index.db")
	}

	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		if cache, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = cache
		}
	}
	if val := os.Getenv("CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.CacheTTL = d
		}
	}
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.RedisAddr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.RedisPassword = val
	}
	envInt("REDIS_DB", &c.RedisDB)

	if val := os.Getenv("SERVE_ADDR"); val != "" {
		c.ServeAddr = val
	}

	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	envInt("EINO_DEBUG_PORT", &c.EinoDebugPort)

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if v, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			*dst = v
		}
	}
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.CacheDir, c.TempDir, c.PodcastDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

// Validate rejects settings that would make a run meaningless.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "openai", "deepseek":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.OHLCVProvider {
	case "yahoo", "longport":
	default:
		return fmt.Errorf("unsupported OHLCV_PROVIDER %q", c.OHLCVProvider)
	}
	switch c.IndexDBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported INDEX_DB_DRIVER %q", c.IndexDBDriver)
	}
	if c.WorkerMaxIterations <= 0 {
		return fmt.Errorf("WORKER_MAX_ITERATIONS must be positive")
	}
	if c.LLMRatePerSec < 0 {
		return fmt.Errorf("LLM_RATE_PER_SEC must not be negative")
	}
	return nil
}

// DateCacheDir is the per-briefing input directory, cache/{YYYYMMDD}.
func (c *Config) DateCacheDir(date string) string {
	return filepath.Join(c.CacheDir, date)
}

// StageArtifactPath is temp/{stage}.json.
func (c *Config) StageArtifactPath(stage string) string {
	return filepath.Join(c.TempDir, stage+".json")
}

// ScriptPath is where the final artifact for a date is written.
func (c *Config) ScriptPath(date string) string {
	return filepath.Join(c.PodcastDir, date, "script.json")
}
