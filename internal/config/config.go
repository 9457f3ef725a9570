package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Upstream struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"upstream"`
	Session struct {
		CookieName string `yaml:"cookie_name"`
		MaxAgeDays int    `yaml:"max_age_days"`
		KeyFile    string `yaml:"key_file"`
		// APIKey is the process-level default credential, env only.
		APIKey string `yaml:"-"`
	} `yaml:"session"`
	Poll struct {
		DefaultIntervalSeconds int `yaml:"default_interval_seconds"`
		MinIntervalSeconds     int `yaml:"min_interval_seconds"`
		MaxIntervalSeconds     int `yaml:"max_interval_seconds"`
	} `yaml:"poll"`
}

func Load(path string) (*Config, error) {
	explicit := path != "" || os.Getenv("CONFIG_PATH") != ""
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		// The dashboard runs on defaults when no config file exists, but an
		// explicitly named file must be readable.
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.Upstream.BaseURL == "" {
		return nil, errors.New("upstream.base_url is required")
	}
	if cfg.Poll.MinIntervalSeconds > cfg.Poll.MaxIntervalSeconds {
		return nil, errors.New("poll interval bounds are inverted")
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":3000"
	cfg.Upstream.BaseURL = "https://hero-sms.com/stubs/handler_api.php"
	cfg.Upstream.TimeoutSeconds = 15
	cfg.Session.CookieName = "hero_api_key"
	cfg.Session.MaxAgeDays = 30
	cfg.Session.KeyFile = "config.json"
	cfg.Poll.DefaultIntervalSeconds = 5
	cfg.Poll.MinIntervalSeconds = 3
	cfg.Poll.MaxIntervalSeconds = 60
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	if v := os.Getenv("HERO_SMS_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("UPSTREAM_TIMEOUT_SECONDS"); v != "" {
		cfg.Upstream.TimeoutSeconds = atoiOr(cfg.Upstream.TimeoutSeconds, v)
	}
	if v := os.Getenv("SESSION_COOKIE_NAME"); v != "" {
		cfg.Session.CookieName = v
	}
	if v := os.Getenv("SESSION_MAX_AGE_DAYS"); v != "" {
		cfg.Session.MaxAgeDays = atoiOr(cfg.Session.MaxAgeDays, v)
	}
	if v := os.Getenv("SESSION_KEY_FILE"); v != "" {
		cfg.Session.KeyFile = v
	}
	cfg.Session.APIKey = os.Getenv("HERO_SMS_API_KEY")
	if v := os.Getenv("POLL_DEFAULT_INTERVAL_SECONDS"); v != "" {
		cfg.Poll.DefaultIntervalSeconds = atoiOr(cfg.Poll.DefaultIntervalSeconds, v)
	}
	if v := os.Getenv("POLL_MIN_INTERVAL_SECONDS"); v != "" {
		cfg.Poll.MinIntervalSeconds = atoiOr(cfg.Poll.MinIntervalSeconds, v)
	}
	if v := os.Getenv("POLL_MAX_INTERVAL_SECONDS"); v != "" {
		cfg.Poll.MaxIntervalSeconds = atoiOr(cfg.Poll.MaxIntervalSeconds, v)
	}
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
