package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/DoyleJ11/pokdeng/internal/engine"
	"github.com/DoyleJ11/pokdeng/internal/session"
)

const envPrefix = "POKDENG"

type Config struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	HostURL        string        `mapstructure:"host_url"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	InboxSize      int           `mapstructure:"inbox_size"`
	OutboxSize     int           `mapstructure:"outbox_size"`
	TurnSeconds    int           `mapstructure:"turn_seconds"`

	DefaultBet      int  `mapstructure:"default_bet"`
	MinBet          int  `mapstructure:"min_bet"`
	MaxBet          int  `mapstructure:"max_bet"`
	StartingBalance int  `mapstructure:"starting_balance"`
	Multipliers     bool `mapstructure:"multipliers"`
	RejectNotices   bool `mapstructure:"reject_notices"`
	MaxChatLength   int  `mapstructure:"max_chat_length"`

	LogLevel       string `mapstructure:"log_level"`
	LogDevelopment bool   `mapstructure:"log_development"`

	PlayerName   string `mapstructure:"player_name"`
	PlayerAvatar string `mapstructure:"player_avatar"`
}

var defaults = map[string]any{
	"listen_addr":      ":8080",
	"host_url":         "ws://localhost:8080",
	"connect_timeout":  "15s",
	"write_timeout":    "3s",
	"inbox_size":       64,
	"outbox_size":      16,
	"turn_seconds":     30,
	"default_bet":      10,
	"min_bet":          1,
	"max_bet":          1000,
	"starting_balance": 1000,
	"multipliers":      false,
	"reject_notices":   false,
	"max_chat_length":  280,
	"log_level":        "info",
	"log_development":  false,
	"player_name":      "",
	"player_avatar":    "",
}

// Load reads envFile if it exists, then the environment (POKDENG_*), then
// any flags that were set. Later sources win.
func Load(envFile string, flags *pflag.FlagSet) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	if flags != nil {
		if err := BindFlags(v, flags); err != nil {
			return Config{}, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, c.Validate()
}

// BindFlags binds every flag to the key of the same name, with dashes
// read as underscores.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err == nil {
			err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
		}
	})
	return err
}

func (c Config) Validate() error {
	switch {
	case c.MinBet < 1 || c.MaxBet < c.MinBet:
		return fmt.Errorf("bet limits [%d, %d] are invalid", c.MinBet, c.MaxBet)
	case c.DefaultBet < c.MinBet || c.DefaultBet > c.MaxBet:
		return fmt.Errorf("default_bet %d outside [%d, %d]", c.DefaultBet, c.MinBet, c.MaxBet)
	case c.InboxSize < 1 || c.OutboxSize < 1:
		return fmt.Errorf("queue sizes must be positive")
	case c.ConnectTimeout <= 0 || c.WriteTimeout <= 0:
		return fmt.Errorf("timeouts must be positive")
	case c.TurnSeconds < 0:
		return fmt.Errorf("turn_seconds must not be negative")
	case c.StartingBalance < 0:
		return fmt.Errorf("starting_balance must not be negative")
	}
	return nil
}

func (c Config) Rules() engine.Rules {
	r := engine.DefaultRules()
	r.MinBet = c.MinBet
	r.MaxBet = c.MaxBet
	r.DefaultBet = c.DefaultBet
	r.StartingBalance = c.StartingBalance
	r.Multipliers = c.Multipliers
	r.MaxChatLength = c.MaxChatLength
	return r
}

func (c Config) Session() session.Config {
	return session.Config{
		Rules:          c.Rules(),
		ConnectTimeout: c.ConnectTimeout,
		WriteTimeout:   c.WriteTimeout,
		InboxSize:      c.InboxSize,
		OutboxSize:     c.OutboxSize,
		RejectNotices:  c.RejectNotices,
		TurnSeconds:    c.TurnSeconds,
	}
}
