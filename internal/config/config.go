// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the root configuration for inmate-bot.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Site     SiteConfig     `mapstructure:"site" yaml:"site"`
	Profile  ProfileConfig  `mapstructure:"profile" yaml:"profile"`
	Search   SearchConfig   `mapstructure:"search" yaml:"search"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls how the Chrome instance is launched or attached to.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// RemoteURL attaches to an already running Chrome (ws:// devtools URL) instead of launching one.
	RemoteURL    string   `mapstructure:"remote_url" yaml:"remote_url"`
	ExecPath     string   `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir  string   `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	WindowWidth  int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int      `mapstructure:"window_height" yaml:"window_height"`
	Stealth      bool     `mapstructure:"stealth" yaml:"stealth"`
	UserAgent    string   `mapstructure:"user_agent" yaml:"user_agent"`
	Locale       string   `mapstructure:"locale" yaml:"locale"`
	Timezone     string   `mapstructure:"timezone" yaml:"timezone"`
	Args         []string `mapstructure:"args" yaml:"args"`
}

// SiteConfig holds the entry points of the target website.
type SiteConfig struct {
	HomeURL      string `mapstructure:"home_url" yaml:"home_url"`
	SendMoneyURL string `mapstructure:"send_money_url" yaml:"send_money_url"`
}

// ProfileConfig carries the identity used to fill the site's forms.
type ProfileConfig struct {
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"password"`
	FirstName   string `mapstructure:"first_name" yaml:"first_name"`
	MiddleName  string `mapstructure:"middle_name" yaml:"middle_name"`
	LastName    string `mapstructure:"last_name" yaml:"last_name"`
	Phone       string `mapstructure:"phone" yaml:"phone"`
	DateOfBirth string `mapstructure:"date_of_birth" yaml:"date_of_birth"`
	Address     string `mapstructure:"address" yaml:"address"`
	City        string `mapstructure:"city" yaml:"city"`
	State       string `mapstructure:"state" yaml:"state"`
	Zip         string `mapstructure:"zip" yaml:"zip"`
	Agency      string `mapstructure:"agency" yaml:"agency"`
}

// SearchConfig tunes record search and bulk discovery.
type SearchConfig struct {
	// MinIDDigits is the shortest digit run accepted as an inmate identifier.
	MinIDDigits    int           `mapstructure:"min_id_digits" yaml:"min_id_digits"`
	MaxResults     int           `mapstructure:"max_results" yaml:"max_results"`
	ResultTimeout  time.Duration `mapstructure:"result_timeout" yaml:"result_timeout"`
	DiscoveryRate  float64       `mapstructure:"discovery_rate" yaml:"discovery_rate"`
	DiscoveryBurst int           `mapstructure:"discovery_burst" yaml:"discovery_burst"`
}

// TimeoutsConfig bounds every wait the bot performs.
type TimeoutsConfig struct {
	Navigation     time.Duration `mapstructure:"navigation" yaml:"navigation"`
	LoginSettle    time.Duration `mapstructure:"login_settle" yaml:"login_settle"`
	StepSettle     time.Duration `mapstructure:"step_settle" yaml:"step_settle"`
	Dialog         time.Duration `mapstructure:"dialog" yaml:"dialog"`
	SendMoneyReady time.Duration `mapstructure:"send_money_ready" yaml:"send_money_ready"`
	DiscoveryReady time.Duration `mapstructure:"discovery_ready" yaml:"discovery_ready"`
	TypeDelay      time.Duration `mapstructure:"type_delay" yaml:"type_delay"`
	Action         time.Duration `mapstructure:"action" yaml:"action"`
}

// ServerConfig configures the HTTP search endpoint.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	MaxConcurrentRuns int           `mapstructure:"max_concurrent_runs" yaml:"max_concurrent_runs"`
	RunTimeout        time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "inmate-bot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.locale", "en-US")
	v.SetDefault("browser.timezone", "America/Chicago")
	v.SetDefault("browser.args", []string{})

	// -- Site --
	v.SetDefault("site.home_url", "https://www.accesscorrections.com/")
	v.SetDefault("site.send_money_url", "https://www.accesscorrections.com/v2/send-money")

	// -- Profile --
	v.SetDefault("profile.username", "")
	v.SetDefault("profile.password", "StrongPassword123")
	v.SetDefault("profile.first_name", "")
	v.SetDefault("profile.middle_name", "sumit")
	v.SetDefault("profile.last_name", "Smith")
	v.SetDefault("profile.phone", "5551234567")
	v.SetDefault("profile.date_of_birth", "02/12/1994")
	v.SetDefault("profile.address", "")
	v.SetDefault("profile.city", "Dallas")
	v.SetDefault("profile.state", "Texas")
	v.SetDefault("profile.zip", "471642")
	v.SetDefault("profile.agency", "Tarrant County Jail")

	// -- Search --
	v.SetDefault("search.min_id_digits", 5)
	v.SetDefault("search.max_results", 20)
	v.SetDefault("search.result_timeout", "4s")
	v.SetDefault("search.discovery_rate", 1.0)
	v.SetDefault("search.discovery_burst", 1)

	// -- Timeouts --
	v.SetDefault("timeouts.navigation", "60s")
	v.SetDefault("timeouts.login_settle", "4s")
	v.SetDefault("timeouts.step_settle", "3s")
	v.SetDefault("timeouts.dialog", "1500ms")
	v.SetDefault("timeouts.send_money_ready", "10s")
	v.SetDefault("timeouts.discovery_ready", "8s")
	v.SetDefault("timeouts.type_delay", "30ms")
	v.SetDefault("timeouts.action", "15s")

	// -- Server --
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_concurrent_runs", 2)
	v.SetDefault("server.run_timeout", "5m")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Credentials are expected from the environment rather than the config file.
	_ = v.BindEnv("profile.username", "INMATEBOT_USERNAME")
	_ = v.BindEnv("profile.password", "INMATEBOT_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Browser.UserDataDir, &c.Browser.ExecPath, &c.Logger.LogFile} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
// Profile credentials are checked later, per run, since the HTTP surface supplies the username.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Site.HomeURL) == "" {
		return fmt.Errorf("site.home_url is a required configuration field")
	}
	if strings.TrimSpace(c.Site.SendMoneyURL) == "" {
		return fmt.Errorf("site.send_money_url is a required configuration field")
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search configuration invalid: %w", err)
	}
	if err := c.Timeouts.Validate(); err != nil {
		return fmt.Errorf("timeouts configuration invalid: %w", err)
	}
	if c.Server.MaxConcurrentRuns < 1 {
		return fmt.Errorf("server.max_concurrent_runs must be a positive integer")
	}
	if c.Server.RunTimeout <= 0 {
		return fmt.Errorf("server.run_timeout must be positive")
	}
	return nil
}

// Validate checks the search configuration.
func (s *SearchConfig) Validate() error {
	if s.MinIDDigits < 1 {
		return fmt.Errorf("min_id_digits must be at least 1")
	}
	if s.MaxResults < 1 {
		return fmt.Errorf("max_results must be a positive integer")
	}
	if s.ResultTimeout <= 0 {
		return fmt.Errorf("result_timeout must be positive")
	}
	if s.DiscoveryRate < 0 {
		return fmt.Errorf("discovery_rate cannot be negative")
	}
	return nil
}

// Validate checks that every timeout is positive. TypeDelay may be zero.
func (t *TimeoutsConfig) Validate() error {
	checks := map[string]time.Duration{
		"navigation":       t.Navigation,
		"login_settle":     t.LoginSettle,
		"step_settle":      t.StepSettle,
		"dialog":           t.Dialog,
		"send_money_ready": t.SendMoneyReady,
		"discovery_ready":  t.DiscoveryReady,
		"action":           t.Action,
	}
	for name, d := range checks {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if t.TypeDelay < 0 {
		return fmt.Errorf("type_delay cannot be negative")
	}
	return nil
}
