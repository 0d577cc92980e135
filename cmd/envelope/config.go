package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/absfs/envelope"
)

// config is loaded from .env and the environment; flags override it
type config struct {
	Password   string `env:"ENVELOPE_PASSWORD"`
	Salt       string `env:"ENVELOPE_SALT" envDefault:"envelope-demo-salt"`
	Mode       string `env:"ENVELOPE_MODE" envDefault:"gcm"`
	Iterations int    `env:"ENVELOPE_ITERATIONS" envDefault:"100000"`
	Verbose    bool   `env:"ENVELOPE_VERBOSE"`
	LogFormat  string `env:"ENVELOPE_LOG_FORMAT" envDefault:"console"` // console or json
}

// loadConfig reads envFile (if present) and then the process environment
func loadConfig(envFile string) (config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg, err := env.ParseAs[config]()
	if err != nil {
		return config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// cipher builds an envelope cipher from the resolved settings
func (c config) cipher() (*envelope.Cipher, error) {
	mode, err := envelope.ParseMode(c.Mode)
	if err != nil {
		return nil, err
	}

	opts := []envelope.Option{envelope.WithIterations(c.Iterations)}
	if c.Verbose {
		opts = append(opts, envelope.WithDebug())
	}
	return envelope.New(c.Password, []byte(c.Salt), mode, opts...)
}

// newLogger builds the CLI logger; verbose enables debug output
func newLogger(format string, verbose bool) (*zap.Logger, error) {
	var cfg zap.Config
	switch format {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console", "":
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		cfg.Level.SetLevel(zapcore.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
