package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the fund tracker.
type Config struct {
	// Input and site addresses
	FundListFile string `mapstructure:"fund_list_file"`
	FundBaseURL  string `mapstructure:"fund_base_url"`
	StockBaseURL string `mapstructure:"stock_base_url"`

	// Artifacts
	HoldingsDir string `mapstructure:"holdings_dir"`
	StocksFile  string `mapstructure:"stocks_file"`
	ReportFile  string `mapstructure:"report_file"`

	// Concurrency
	MaxWorkers int `mapstructure:"max_workers"`
	ChunkSize  int `mapstructure:"chunk_size"`

	// Fund page HTTP client
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	HTTPRetryCount    int           `mapstructure:"http_retry_count"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	UserAgent         string        `mapstructure:"user_agent"`

	// Browser
	Headless        bool          `mapstructure:"headless"`
	ChromePath      string        `mapstructure:"chrome_path"`
	ChromeRemoteURL string        `mapstructure:"chrome_remote_url"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout"`
	ElementTimeout  time.Duration `mapstructure:"element_timeout"`

	// Selectors
	HoldingsSelector string `mapstructure:"holdings_selector"`
	PriceSelector    string `mapstructure:"price_selector"`

	// Aggregation and output
	MissingPolicy string `mapstructure:"missing_policy"`
	LogLevel      string `mapstructure:"log_level"`
}

// keys lists every setting; each is bound to FUNDTRACKER_<KEY> in upper case
var keys = []string{
	"fund_list_file", "fund_base_url", "stock_base_url",
	"holdings_dir", "stocks_file", "report_file",
	"max_workers", "chunk_size",
	"http_timeout", "http_retry_count", "requests_per_second", "user_agent",
	"headless", "chrome_path", "chrome_remote_url", "page_load_timeout", "element_timeout",
	"holdings_selector", "price_selector",
	"missing_policy", "log_level",
}

// Load reads configuration from environment variables, an optional .env file
// and an optional config file. Environment variables take precedence over
// config file values.
//
// Config file locations: ./config.yaml, $HOME/.fundtracker/config.yaml
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.fundtracker")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromFile reads configuration from the given file. Environment variables
// still take precedence.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	for _, key := range keys {
		_ = v.BindEnv(key, "FUNDTRACKER_"+strings.ToUpper(key))
	}
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("fund_list_file", "mutual_funds")
	v.SetDefault("fund_base_url", "https://groww.in/mutual-funds/")
	v.SetDefault("stock_base_url", "https://groww.in")

	v.SetDefault("holdings_dir", "mutual_fund_jsons")
	v.SetDefault("stocks_file", "mf_stocks.json")
	v.SetDefault("report_file", "report_summary.md")

	v.SetDefault("max_workers", 10)
	v.SetDefault("chunk_size", 30)

	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("http_retry_count", 0)
	v.SetDefault("requests_per_second", 0)
	v.SetDefault("user_agent", "")

	v.SetDefault("headless", true)
	v.SetDefault("chrome_path", "")
	v.SetDefault("chrome_remote_url", "")
	v.SetDefault("page_load_timeout", 300*time.Second)
	v.SetDefault("element_timeout", 100*time.Second)

	v.SetDefault("holdings_selector", "table.holdings101Table")
	v.SetDefault("price_selector", ".lpu38HeadWrap div:nth-child(3)")

	v.SetDefault("missing_policy", "zero")
	v.SetDefault("log_level", "info")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var invalid []string
	if c.FundBaseURL == "" {
		invalid = append(invalid, "fund_base_url must be set")
	}
	if c.StockBaseURL == "" {
		invalid = append(invalid, "stock_base_url must be set")
	}
	if c.MaxWorkers < 1 {
		invalid = append(invalid, "max_workers must be at least 1")
	}
	if c.ChunkSize < 1 {
		invalid = append(invalid, "chunk_size must be at least 1")
	}
	if c.HTTPRetryCount < 0 {
		invalid = append(invalid, "http_retry_count must not be negative")
	}
	if c.RequestsPerSecond < 0 {
		invalid = append(invalid, "requests_per_second must not be negative")
	}
	if c.PageLoadTimeout <= 0 || c.ElementTimeout <= 0 || c.HTTPTimeout <= 0 {
		invalid = append(invalid, "timeouts must be positive")
	}
	switch strings.ToLower(c.MissingPolicy) {
	case "zero", "renormalize":
	default:
		invalid = append(invalid, fmt.Sprintf("missing_policy %q must be zero or renormalize", c.MissingPolicy))
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(invalid, ", "))
	}
	return nil
}
