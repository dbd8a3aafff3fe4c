package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/yaron8/netmon/logi"
)

const (
	TimestampRFC3339 = "rfc3339"
	TimestampCtime   = "ctime"
)

type Config struct {
	Port         int           `mapstructure:"port"`          // Default port
	FeedInterval time.Duration `mapstructure:"feed_interval"` // Time between metrics frames
	// AttackEvery sends an attack_detection frame after every N metrics frames
	AttackEvery int `mapstructure:"attack_every"`
	// Timestamp selects the sample timestamp layout: rfc3339 or ctime
	Timestamp string    `mapstructure:"timestamp"`
	Sim       SimConfig `mapstructure:"sim"`
	Log       LogConfig `mapstructure:"log"`
}

// SimConfig shapes the simulated external link: added latency and packet
// loss rate (0.1 means 10%).
type SimConfig struct {
	Delay time.Duration `mapstructure:"delay"`
	Loss  float64       `mapstructure:"loss"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8000)
	v.SetDefault("feed_interval", 2*time.Second)
	v.SetDefault("attack_every", 10)
	v.SetDefault("timestamp", TimestampRFC3339)
	v.SetDefault("sim.delay", 0)
	v.SetDefault("sim.loss", 0.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", logi.OutputStdout)

	return v
}

func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func NewConfig() (*Config, error) {
	return Load(NewViper())
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.FeedInterval, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.AttackEvery, validation.Min(0)),
		validation.Field(&c.Timestamp, validation.In(TimestampRFC3339, TimestampCtime)),
		validation.Field(&c.Sim),
		validation.Field(&c.Log),
	)
}

func (s SimConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Delay, validation.Min(time.Duration(0))),
		validation.Field(&s.Loss, validation.Min(0.0), validation.Max(1.0)),
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

func (c *Config) LoggerConfig() *logi.Config {
	level, _ := logi.ParseLevel(c.Log.Level)
	return &logi.Config{
		Output:      c.Log.Output,
		LogFileName: "generator.log",
		Level:       level,
	}
}

// TimestampLayout is the time layout matching Timestamp.
func (c *Config) TimestampLayout() string {
	if c.Timestamp == TimestampCtime {
		return time.ANSIC
	}
	return time.RFC3339Nano
}
