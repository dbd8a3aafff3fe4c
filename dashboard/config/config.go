package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/yaron8/netmon/analytics"
	"github.com/yaron8/netmon/dashboard/stream"
	"github.com/yaron8/netmon/logi"
	"github.com/yaron8/netmon/metrics"
)

type Config struct {
	Port       int              `mapstructure:"port"` // API port
	Feed       FeedConfig       `mapstructure:"feed"`
	Backoff    BackoffConfig    `mapstructure:"backoff"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Buffer     BufferConfig     `mapstructure:"buffer"`
	Aggregate  AggregateConfig  `mapstructure:"aggregate"`
	Refresh    RefreshConfig    `mapstructure:"refresh"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Log        LogConfig        `mapstructure:"log"`
}

type FeedConfig struct {
	URL string `mapstructure:"url"`
	// ReadLimit is the largest frame accepted, in bytes
	ReadLimit int64 `mapstructure:"read_limit"`
}

type BackoffConfig struct {
	Base time.Duration `mapstructure:"base"`
	Cap  time.Duration `mapstructure:"cap"`
}

type RedisConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type BufferConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type AggregateConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type ThresholdsConfig struct {
	// File is an optional YAML threshold spec; empty means the built-in limits
	File string `mapstructure:"file"`
}

type LogConfig struct {
	Dir    string `mapstructure:"dir"`
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// NewViper returns a viper instance with every default set and environment
// lookup enabled. Nested keys map to env vars with "_", so redis.ttl is
// REDIS_TTL.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("feed.url", "ws://localhost:8000/ws")
	v.SetDefault("feed.read_limit", stream.DefaultReadLimit)
	v.SetDefault("backoff.base", stream.DefaultBaseDelay)
	v.SetDefault("backoff.cap", stream.DefaultMaxDelay)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.ttl", 30*time.Second)
	v.SetDefault("buffer.capacity", metrics.DefaultCapacity)
	v.SetDefault("aggregate.interval", analytics.DefaultInterval)
	v.SetDefault("refresh.interval", time.Second)
	v.SetDefault("thresholds.file", "")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", logi.OutputFile)

	return v
}

// Load reads the optional config file into v, decodes and validates it.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// NewConfig loads the configuration from the environment only.
func NewConfig() (*Config, error) {
	return Load(NewViper(), "")
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Feed),
		validation.Field(&c.Backoff),
		validation.Field(&c.Redis),
		validation.Field(&c.Buffer),
		validation.Field(&c.Aggregate),
		validation.Field(&c.Refresh),
		validation.Field(&c.Log),
	)
}

func (f FeedConfig) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.URL, validation.Required, validation.By(websocketURL)),
		validation.Field(&f.ReadLimit, validation.Required, validation.Min(int64(1024))),
	)
}

func (b BackoffConfig) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Base, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&b.Cap, validation.Required, validation.Min(b.Base)),
	)
}

func (r RedisConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Host, validation.When(r.Enabled, validation.Required)),
		validation.Field(&r.Port, validation.When(r.Enabled, validation.Required, validation.Min(1), validation.Max(65535))),
		validation.Field(&r.TTL, validation.When(r.Enabled, validation.Required, validation.Min(time.Second))),
	)
}

func (b BufferConfig) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Capacity, validation.Required, validation.Min(1)),
	)
}

func (a AggregateConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Interval, validation.Required, validation.Min(time.Millisecond)),
	)
}

func (r RefreshConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Interval, validation.Required, validation.Min(10*time.Millisecond)),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.By(func(value interface{}) error {
			_, err := logi.ParseLevel(value.(string))
			return err
		})),
		validation.Field(&l.Output, validation.In(logi.OutputFile, logi.OutputStdout)),
	)
}

// LoggerConfig converts the log section for logi.NewLog. Level was checked by
// Validate.
func (c *Config) LoggerConfig() *logi.Config {
	level, _ := logi.ParseLevel(c.Log.Level)
	return &logi.Config{
		Output: c.Log.Output,
		LogDir: c.Log.Dir,
		Level:  level,
	}
}

// LoadThresholds returns the configured threshold spec, or the built-in
// defaults when no file is set.
func (c *Config) LoadThresholds() (analytics.ThresholdSpec, error) {
	if c.Thresholds.File == "" {
		return analytics.DefaultThresholds(), nil
	}

	f, err := os.Open(c.Thresholds.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open thresholds file: %w", err)
	}
	defer f.Close()

	return analytics.LoadThresholds(f)
}

func websocketURL(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.New("must be a ws:// or wss:// URL")
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}
