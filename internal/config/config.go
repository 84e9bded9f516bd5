package config

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"
)

const (
	FlagConfig         = "config"
	FlagDebug          = "debug"
	FlagMetricsAddress = "metrics-address"

	DefaultConfigPath = "config.json"

	envPrefix = "NFC_WATCH_"
)

// Config holds the process level parameters. The set of watched folders lives
// in the watch configuration file, see [Watch].
type Config struct {
	ConfigPath     string
	Debug          bool
	MetricsAddress string
}

func (c *Config) validate() error {
	if c.ConfigPath == "" {
		return fmt.Errorf("%w: configuration file is required", ErrValidationFailed)
	}

	return nil
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:      FlagConfig,
			Aliases:   []string{"c"},
			Usage:     "watch configuration file (.json, .yaml or .toml)",
			Value:     DefaultConfigPath,
			TakesFile: true,
			Sources:   cli.EnvVars(envPrefix + "CONFIG"),
		},
		&cli.BoolFlag{
			Name:    FlagDebug,
			Usage:   "debug mode",
			Sources: cli.EnvVars(envPrefix + "DEBUG"),
		},
		&cli.StringFlag{
			Name:    FlagMetricsAddress,
			Usage:   "listen address of the metrics endpoint, disabled when empty",
			Sources: cli.EnvVars(envPrefix + "METRICS_ADDRESS"),
		},
	}
}

func FromCommand(cmd *cli.Command) (Config, error) {
	cfg := Config{
		ConfigPath:     cmd.String(FlagConfig),
		Debug:          cmd.Bool(FlagDebug),
		MetricsAddress: cmd.String(FlagMetricsAddress),
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	absPath, err := filepath.Abs(cfg.ConfigPath)
	if err != nil {
		return cfg, fmt.Errorf("can't resolve %s: %w", cfg.ConfigPath, err)
	}
	cfg.ConfigPath = absPath

	return cfg, nil
}
