package main

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/edwinsyarief/sparsecs"
)

// benchConfig is the complete configuration of a run.
type benchConfig struct {
	Registry    sparsecs.Config `mapstructure:"registry" json:"registry"`
	Frames      int             `mapstructure:"frames" json:"frames"`
	Workers     int             `mapstructure:"workers" json:"workers"`
	Parallel    bool            `mapstructure:"parallel" json:"parallel"`
	Profile     string          `mapstructure:"profile" json:"profile,omitempty"`
	MetricsAddr string          `mapstructure:"metrics_addr" json:"metrics_addr,omitempty"`
	LogLevel    string          `mapstructure:"log_level" json:"log_level"`
}

func defaultConfig() benchConfig {
	reg := sparsecs.DefaultConfig()
	reg.Name = "sparsebench"
	return benchConfig{
		Registry: reg,
		Frames:   1000,
		LogLevel: "info",
	}
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"entities":     "registry.max_entities",
	"frames":       "frames",
	"workers":      "workers",
	"parallel":     "parallel",
	"profile":      "profile",
	"metrics-addr": "metrics_addr",
	"log-level":    "log_level",
}

// loadConfig merges defaults, the optional config file, SPARSECS_*
// environment variables and flags.
func loadConfig(file string, flags *pflag.FlagSet) (benchConfig, error) {
	cfg := defaultConfig()
	v := viper.New()
	v.SetDefault("registry.name", cfg.Registry.Name)
	v.SetDefault("registry.max_entities", cfg.Registry.MaxEntities)
	v.SetDefault("registry.max_component_types", cfg.Registry.MaxComponentTypes)
	v.SetDefault("frames", cfg.Frames)
	v.SetDefault("log_level", cfg.LogLevel)

	v.SetEnvPrefix("SPARSECS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return cfg, eris.Wrapf(err, "couldn't load config %s", file)
		}
	}
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return cfg, eris.Wrapf(err, "bind flag %s", name)
				}
			}
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, eris.Wrap(err, "couldn't read config")
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c benchConfig) validate() error {
	if err := c.Registry.Validate(); err != nil {
		return err
	}
	if c.Frames < 0 {
		return eris.Errorf("frames must not be negative, got %d", c.Frames)
	}
	switch c.Profile {
	case "", "cpu", "mem":
	default:
		return eris.Errorf("unknown profile mode %q", c.Profile)
	}
	return nil
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}
