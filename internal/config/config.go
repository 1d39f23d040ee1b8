package config

import (
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server struct {
		Port         int           `yaml:"port" default:"8080"`
		Host         string        `yaml:"host" default:"0.0.0.0"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
		IdleTimeout  time.Duration `yaml:"idle_timeout" default:"60s"`
	} `yaml:"server"`

	// Concurrency governs the request-facing bounded-resource model: a
	// global in-flight cap and a per-client sliding-window rate limit.
	Concurrency struct {
		LimitConcurrency int           `yaml:"limit_concurrency" default:"100"`
		RateLimit        int           `yaml:"rate_limit" default:"100"` // requests per window
		RateLimitWindow  time.Duration `yaml:"rate_limit_window" default:"60s"`
		DefaultTimeout   time.Duration `yaml:"default_timeout" default:"60s"`
	} `yaml:"concurrency"`

	BackgroundTasks struct {
		ReapInterval     time.Duration `yaml:"reap_interval" default:"30s"`
		ScalingInterval  time.Duration `yaml:"scaling_interval" default:"60s"`
		CacheSweepPeriod time.Duration `yaml:"cache_sweep_period" default:"60s"`
	} `yaml:"background_tasks"`

	// Pool holds the default pool-configuration template applied when a
	// create request omits a field; see the pool config schema.
	Pool struct {
		MaxBrowsers     int           `yaml:"max_browsers" default:"5"`
		MinBrowsers     int           `yaml:"min_browsers" default:"0"`
		MaxPagesPerTab  int           `yaml:"max_pages_per_browser" default:"10"`
		BrowserIdleTTL  time.Duration `yaml:"browser_idle_ttl" default:"10m"`
		PageIdleTTL     time.Duration `yaml:"page_idle_ttl" default:"5m"`
		PageMaxTTL      time.Duration `yaml:"page_max_ttl" default:"30m"`
		CacheCapacity   int           `yaml:"cache_capacity" default:"256"`
		NavigateTimeout time.Duration `yaml:"navigate_timeout" default:"30s"`
		WaitForTextPoll time.Duration `yaml:"wait_for_text_poll" default:"500ms"`
	} `yaml:"pool"`

	// Autoscale thresholds are named constants per the design notes, not
	// magic numbers baked into the scaling manager.
	Autoscale struct {
		ScaleUpLoadRatio   float64 `yaml:"scale_up_load_ratio" default:"0.6"`
		ScaleUpCPURatio    float64 `yaml:"scale_up_cpu_ratio" default:"0.7"`
		ScaleDownLoadRatio float64 `yaml:"scale_down_load_ratio" default:"0.3"`
		ScaleDownCPURatio  float64 `yaml:"scale_down_cpu_ratio" default:"0.3"`
	} `yaml:"autoscale"`

	Driver struct {
		UserAgent       string        `yaml:"user_agent"`
		HeadlessMode    bool          `yaml:"headless_mode" default:"true"`
		StealthMode     bool          `yaml:"stealth_mode" default:"true"`
		ChromePath      string        `yaml:"chrome_path"`
		LaunchTimeout   time.Duration `yaml:"launch_timeout" default:"45s"`
	} `yaml:"driver"`

	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`

		Adapters []struct {
			Name    string                 `yaml:"name"`
			Type    string                 `yaml:"type"`
			Enabled bool                   `yaml:"enabled"`
			Options map[string]interface{} `yaml:"options"`
		} `yaml:"adapters"`
	} `yaml:"logging"`

	Redis struct {
		URL      string        `yaml:"url" default:"redis://localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db" default:"0"`
		Timeout  time.Duration `yaml:"timeout" default:"5s"`
	} `yaml:"redis"`

	Snapshot struct {
		Backend string        `yaml:"backend" default:"memory"` // memory|redis
		TTL     time.Duration `yaml:"ttl" default:"1h"`
	} `yaml:"snapshot"`
}

// expandEnvVars expands environment variables in a string using ${VAR} or $VAR syntax.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return s
}

// LoadConfig loads configuration from a YAML file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Server.Port = 8080
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.IdleTimeout = 60 * time.Second

	cfg.Concurrency.LimitConcurrency = 100
	cfg.Concurrency.RateLimit = 100
	cfg.Concurrency.RateLimitWindow = 60 * time.Second
	cfg.Concurrency.DefaultTimeout = 60 * time.Second

	cfg.BackgroundTasks.ReapInterval = 30 * time.Second
	cfg.BackgroundTasks.ScalingInterval = 60 * time.Second
	cfg.BackgroundTasks.CacheSweepPeriod = 60 * time.Second

	cfg.Pool.MaxBrowsers = 5
	cfg.Pool.MinBrowsers = 0
	cfg.Pool.MaxPagesPerTab = 10
	cfg.Pool.BrowserIdleTTL = 10 * time.Minute
	cfg.Pool.PageIdleTTL = 5 * time.Minute
	cfg.Pool.PageMaxTTL = 30 * time.Minute
	cfg.Pool.CacheCapacity = 256
	cfg.Pool.NavigateTimeout = 30 * time.Second
	cfg.Pool.WaitForTextPoll = 500 * time.Millisecond

	cfg.Autoscale.ScaleUpLoadRatio = 0.6
	cfg.Autoscale.ScaleUpCPURatio = 0.7
	cfg.Autoscale.ScaleDownLoadRatio = 0.3
	cfg.Autoscale.ScaleDownCPURatio = 0.3

	cfg.Driver.HeadlessMode = true
	cfg.Driver.StealthMode = true
	cfg.Driver.LaunchTimeout = 45 * time.Second
	cfg.Driver.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stdout"

	cfg.Redis.URL = "redis://localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.Timeout = 5 * time.Second

	cfg.Snapshot.Backend = "memory"
	cfg.Snapshot.TTL = time.Hour

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			yamlContent := expandEnvVars(string(data))
			if err := yaml.Unmarshal([]byte(yamlContent), cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromEnv overrides configuration from environment variables.
func (c *Config) loadFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.URL = redisURL
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		c.Redis.Password = redisPassword
	}

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			c.Redis.DB = db
		}
	}

	if redisTimeout := os.Getenv("REDIS_TIMEOUT"); redisTimeout != "" {
		if timeout, err := time.ParseDuration(redisTimeout); err == nil {
			c.Redis.Timeout = timeout
		}
	}

	if snapshotBackend := os.Getenv("SNAPSHOT_BACKEND"); snapshotBackend != "" {
		c.Snapshot.Backend = snapshotBackend
	}

	if chromePath := os.Getenv("CHROME_PATH"); chromePath != "" {
		c.Driver.ChromePath = chromePath
	} else if chromeBin := os.Getenv("CHROME_BIN"); chromeBin != "" {
		c.Driver.ChromePath = chromeBin
	}

	if maxBrowsers := os.Getenv("POOL_MAX_BROWSERS"); maxBrowsers != "" {
		if v, err := strconv.Atoi(maxBrowsers); err == nil {
			c.Pool.MaxBrowsers = v
		}
	}

	if minBrowsers := os.Getenv("POOL_MIN_BROWSERS"); minBrowsers != "" {
		if v, err := strconv.Atoi(minBrowsers); err == nil {
			c.Pool.MinBrowsers = v
		}
	}

	if limitConcurrency := os.Getenv("LIMIT_CONCURRENCY"); limitConcurrency != "" {
		if v, err := strconv.Atoi(limitConcurrency); err == nil {
			c.Concurrency.LimitConcurrency = v
		}
	}

	if rateLimit := os.Getenv("RATE_LIMIT"); rateLimit != "" {
		if v, err := strconv.Atoi(rateLimit); err == nil {
			c.Concurrency.RateLimit = v
		}
	}

	if defaultTimeout := os.Getenv("DEFAULT_TIMEOUT"); defaultTimeout != "" {
		if v, err := time.ParseDuration(defaultTimeout); err == nil {
			c.Concurrency.DefaultTimeout = v
		}
	}
}
