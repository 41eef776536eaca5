package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"genstrat/internal/scheduler"
)

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Redis    RedisConfig    `mapstructure:"redis"`
	History  HistoryConfig  `mapstructure:"history"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Trading  TradingConfig  `mapstructure:"trading"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type HistoryConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type ExchangeConfig struct {
	APIKey             string        `mapstructure:"api_key"`
	APISecret          string        `mapstructure:"api_secret"`
	RESTBaseURL        string        `mapstructure:"rest_base_url"`
	FuturesRESTBaseURL string        `mapstructure:"futures_rest_base_url"`
	HTTPTimeout        time.Duration `mapstructure:"http_timeout"`
	// DryRun skips order placement entirely; trades still move through the
	// lifecycle with synthetic acks.
	DryRun bool `mapstructure:"dry_run"`
}

type MonitorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	// ReconcileInterval paces full reconciliation against fresh candidates,
	// independent of entry signals.
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	CandleLimit       int           `mapstructure:"candle_limit"`
}

type TradingConfig struct {
	Budget float64 `mapstructure:"budget"`
	// Suggester selects the candidate source: "rule" or "llm".
	Suggester string `mapstructure:"suggester"`
}

type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
}

// Load reads the YAML config at path, layers GENSTRAT_* environment
// overrides on top, applies defaults, and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GENSTRAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// stringToDurationHookFunc decodes duration strings, accepting both Go syntax
// ("90s", "2h45m") and candle-style intervals ("15m", "1d") that
// time.ParseDuration rejects.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		raw := strings.TrimSpace(data.(string))
		if d, err := time.ParseDuration(raw); err == nil {
			return d, nil
		}
		if d, ok := scheduler.ParseIntervalDuration(raw); ok {
			return d, nil
		}
		return nil, fmt.Errorf("invalid duration %q", raw)
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if strings.TrimSpace(c.Redis.Addr) == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(c.Redis.KeyPrefix) == "" {
		c.Redis.KeyPrefix = "genstrat"
	}
	if strings.TrimSpace(c.History.DBPath) == "" {
		c.History.DBPath = "data/history.db"
	}
	if c.Exchange.HTTPTimeout <= 0 {
		c.Exchange.HTTPTimeout = 15 * time.Second
	}
	if c.Monitor.Interval <= 0 {
		c.Monitor.Interval = 60 * time.Second
	}
	if c.Monitor.ReconcileInterval <= 0 {
		c.Monitor.ReconcileInterval = 5 * time.Minute
	}
	if c.Monitor.CandleLimit <= 0 {
		c.Monitor.CandleLimit = 200
	}
	c.Trading.Suggester = strings.ToLower(strings.TrimSpace(c.Trading.Suggester))
	if c.Trading.Suggester == "" {
		c.Trading.Suggester = "rule"
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug/info/warn/error", c.Log.Level)
	}
	if c.Trading.Budget <= 0 {
		return fmt.Errorf("trading.budget must be positive, got %v", c.Trading.Budget)
	}
	switch strings.ToLower(strings.TrimSpace(c.Trading.Suggester)) {
	case "rule":
	case "llm":
		if strings.TrimSpace(c.LLM.Model) == "" {
			return fmt.Errorf("llm.model is required when trading.suggester=llm")
		}
	default:
		return fmt.Errorf("trading.suggester %q is not one of rule/llm", c.Trading.Suggester)
	}
	if !c.Exchange.DryRun && strings.TrimSpace(c.Exchange.APIKey) == "" {
		return fmt.Errorf("exchange.api_key is required unless exchange.dry_run is set")
	}
	return nil
}
