package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DefaultBaseURL = "https://api.ethoswallet.xyz/api/v1"

type Config struct {
	API struct {
		BaseURL string        `mapstructure:"base_url"`
		Key     string        `mapstructure:"key"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"api"`

	Demo struct {
		Accounts           int    `mapstructure:"accounts"`
		MinWeightOfSigners int    `mapstructure:"min_weight_of_signers"`
		SignerWeight       int    `mapstructure:"signer_weight"`
		Data               string `mapstructure:"data"`
		AccountName        string `mapstructure:"account_name"`
		WalletName         string `mapstructure:"wallet_name"`
		Parallel           bool   `mapstructure:"parallel"`
		Concurrency        int    `mapstructure:"concurrency"`
		// RunTimeout bounds a whole run; zero leaves only signal cancellation.
		RunTimeout time.Duration `mapstructure:"run_timeout"`
	} `mapstructure:"demo"`

	Poll struct {
		Interval time.Duration `mapstructure:"interval"`
		Timeout  time.Duration `mapstructure:"timeout"`
	} `mapstructure:"poll"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Datadog struct {
		Host string `mapstructure:"host"`
		Port string `mapstructure:"port"`
	} `mapstructure:"datadog"`

	Redis struct {
		Enabled  bool          `mapstructure:"enabled"`
		Host     string        `mapstructure:"host"`
		Port     string        `mapstructure:"port"`
		User     string        `mapstructure:"user"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"redis"`

	BlockStorage struct {
		Enabled   bool   `mapstructure:"enabled"`
		Host      string `mapstructure:"host"`
		Region    string `mapstructure:"region"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Bucket    string `mapstructure:"bucket"`
	} `mapstructure:"block_storage"`

	Sandbox struct {
		Host   string `mapstructure:"host"`
		Port   int64  `mapstructure:"port"`
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"sandbox"`
}

// setDefaults registers every key so AutomaticEnv can override it, e.g.
// API_KEY for api.key or DEMO_ACCOUNTS for demo.accounts.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.key", "")
	v.SetDefault("api.timeout", 30*time.Second)

	v.SetDefault("demo.accounts", 3)
	v.SetDefault("demo.min_weight_of_signers", 2)
	v.SetDefault("demo.signer_weight", 1)
	v.SetDefault("demo.data", "Hello World!")
	v.SetDefault("demo.account_name", "My Account")
	v.SetDefault("demo.wallet_name", "My Wallet")
	v.SetDefault("demo.parallel", false)
	v.SetDefault("demo.concurrency", 4)
	v.SetDefault("demo.run_timeout", 5*time.Minute)

	v.SetDefault("poll.interval", time.Second)
	v.SetDefault("poll.timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("datadog.host", "")
	v.SetDefault("datadog.port", "8125")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.user", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("block_storage.enabled", false)
	v.SetDefault("block_storage.host", "")
	v.SetDefault("block_storage.region", "us-east-1")
	v.SetDefault("block_storage.access_key", "")
	v.SetDefault("block_storage.secret_key", "")
	v.SetDefault("block_storage.bucket", "")

	v.SetDefault("sandbox.host", "localhost")
	v.SetDefault("sandbox.port", 8181)
	v.SetDefault("sandbox.api_key", "")
}

// ReadConfig loads <configName>.yaml from the working directory when present and
// applies environment overrides on top of the defaults.
func ReadConfig(configName string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("fail to read config file, err: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, err: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the demo runner relies on.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api.base_url: %q", c.API.BaseURL)
	}
	if c.API.Key == "" {
		return errors.New("api.key is required (set API_KEY)")
	}
	if c.Demo.Accounts <= 0 {
		return errors.New("demo.accounts must be positive")
	}
	if c.Demo.MinWeightOfSigners <= 0 {
		return errors.New("demo.min_weight_of_signers must be positive")
	}
	if c.Demo.SignerWeight <= 0 {
		return errors.New("demo.signer_weight must be positive")
	}
	if attainable := c.MaxAttainableWeight(); attainable < c.Demo.MinWeightOfSigners {
		return fmt.Errorf("demo.min_weight_of_signers %d exceeds the weight %d of all signers", c.Demo.MinWeightOfSigners, attainable)
	}
	if c.Demo.Data == "" {
		return errors.New("demo.data is required")
	}
	if c.Demo.Parallel && c.Demo.Concurrency <= 0 {
		return errors.New("demo.concurrency must be positive when demo.parallel is set")
	}
	if c.Poll.Interval <= 0 {
		return errors.New("poll.interval must be positive")
	}
	if c.Poll.Timeout <= 0 {
		return errors.New("poll.timeout must be positive")
	}
	if c.Demo.RunTimeout < 0 {
		return errors.New("demo.run_timeout cannot be negative")
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return errors.New("redis.host is required when redis is enabled")
	}
	if c.BlockStorage.Enabled && c.BlockStorage.Bucket == "" {
		return errors.New("block_storage.bucket is required when block storage is enabled")
	}
	return nil
}

// MaxAttainableWeight is the weight the demo registers when every signer succeeds.
func (c *Config) MaxAttainableWeight() int {
	return c.Demo.Accounts * c.Demo.SignerWeight
}

func (c *Config) DatadogAddr() string {
	if c.Datadog.Host == "" {
		return ""
	}
	return c.Datadog.Host + ":" + c.Datadog.Port
}
