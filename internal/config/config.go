package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"palmbudget/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Keeper   KeeperConfig   `mapstructure:"keeper"`
	Ethereum EthereumConfig `mapstructure:"ethereum"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Server   ServerConfig   `mapstructure:"server"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// KeeperConfig governs the automation loop.
type KeeperConfig struct {
	Cron            string `mapstructure:"cron"`
	AdvisoryLockKey int64  `mapstructure:"advisory_lock_key"`
	RunOnStart      bool   `mapstructure:"run_on_start"`
}

// EthereumConfig covers on-chain vault access.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RouterAddress  string        `mapstructure:"router_address"`
	PrivateKey     string        `mapstructure:"private_key"`
	ChainID        int64         `mapstructure:"chain_id"`
	TokenDecimals  int32         `mapstructure:"token_decimals"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PolicyConfig holds the system-wide sweep defaults.
type PolicyConfig struct {
	DefaultMinimumBalance float64     `mapstructure:"default_minimum_balance"`
	DefaultRatio          RatioConfig `mapstructure:"default_ratio"`
}

// RatioConfig is the configurable system-preset split ratio.
type RatioConfig struct {
	Bills     uint `mapstructure:"bills"`
	Savings   uint `mapstructure:"savings"`
	Growth    uint `mapstructure:"growth"`
	Spendable uint `mapstructure:"spendable"`
}

// AdminConfig names the single administrator identity allowed to pause.
type AdminConfig struct {
	Identity string `mapstructure:"identity"`
}

// AlertingConfig defines sweep notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram notification channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ServerConfig governs the HTTP trigger surface.
type ServerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	ListenAddress string        `mapstructure:"listen_address"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PALMBUDGET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "palmbudget")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.service", "palmbudget")

	// Hourly ticks: cheap probes outside the window, prompt sweeps inside.
	v.SetDefault("keeper.cron", "0 * * * *")
	v.SetDefault("keeper.advisory_lock_key", int64(0x70616c6d))
	v.SetDefault("keeper.run_on_start", false)

	v.SetDefault("ethereum.request_timeout", "10s")
	v.SetDefault("ethereum.token_decimals", 6)

	v.SetDefault("policy.default_minimum_balance", 0.0)
	v.SetDefault("policy.default_ratio.bills", 50)
	v.SetDefault("policy.default_ratio.savings", 20)
	v.SetDefault("policy.default_ratio.growth", 20)
	v.SetDefault("policy.default_ratio.spendable", 10)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.listen_address", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Keeper.Cron == "" {
		return fmt.Errorf("keeper.cron must be set")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Policy.DefaultMinimumBalance < 0 {
		return fmt.Errorf("policy.default_minimum_balance cannot be negative")
	}
	ratio := c.Policy.DefaultRatio
	if sum := ratio.Bills + ratio.Savings + ratio.Growth + ratio.Spendable; sum != 100 {
		return fmt.Errorf("policy.default_ratio must sum to 100, got %d", sum)
	}
	if c.Ethereum.TokenDecimals < 0 {
		return fmt.Errorf("ethereum.token_decimals cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be set")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be set")
		}
	}
	if c.Server.Enabled && c.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address must be set when server.enabled")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
