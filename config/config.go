// Package config resolves the server's settings from CLI flags, an
// optional YAML file, and environment variables, in that override order
// (flags win, then file, then environment, then built-in defaults) —
// mirroring the "flags + env" ambient layer the original implementation
// covered with a single RUST_LOG environment variable read in main.rs.
package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Config holds every setting the server needs at startup.
type Config struct {
	WorkerCount int    `yaml:"worker_count"`
	Addr        string `yaml:"addr"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
}

// Defaults returns the built-in configuration before any flag, file, or
// environment override is applied.
func Defaults() Config {
	return Config{
		WorkerCount: 0, // 0 means "auto": runtime.GOMAXPROCS(0)
		Addr:        "0.0.0.0:6379",
		LogLevel:    "info",
	}
}

// fileConfig is what a YAML config file may set. Every field is a
// pointer so an absent key doesn't clobber a default or an
// already-resolved flag value with a YAML-typed zero value.
type fileConfig struct {
	WorkerCount *int    `yaml:"worker_count"`
	Addr        *string `yaml:"addr"`
	LogLevel    *string `yaml:"log_level"`
	LogFile     *string `yaml:"log_file"`
}

// Parse resolves a Config from argv (as passed to flag.NewFlagSet, not
// including the program name) and the process environment. It reads a
// YAML file named by -config, if any, before applying flags so
// explicitly-set flags always win over file values.
func Parse(argv []string, env func(string) string) (Config, error) {
	if env == nil {
		env = os.Getenv
	}
	cfg := Defaults()

	fs := flag.NewFlagSet("kvshard", flag.ContinueOnError)
	addr := fs.String("addr", cfg.Addr, "listen address")
	logLevel := fs.String("log-level", cfg.LogLevel, "zap log level (debug, info, warn, error)")
	logFile := fs.String("log-file", "", "rotate logs through this file instead of stderr")
	configPath := fs.String("config", "", "optional YAML config file")

	if err := fs.Parse(argv); err != nil {
		return Config{}, err
	}

	if v := env("KVSHARD_LOG_LEVEL"); v != "" && !isFlagSet(fs, "log-level") {
		cfg.LogLevel = v
	}

	if *configPath != "" {
		fc, err := loadFile(*configPath)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		applyFile(&cfg, fc)
	}

	// Flags always win over file/env, applied last.
	if isFlagSet(fs, "addr") {
		cfg.Addr = *addr
	}
	if isFlagSet(fs, "log-level") {
		cfg.LogLevel = *logLevel
	}
	if isFlagSet(fs, "log-file") {
		cfg.LogFile = *logFile
	}

	if rest := fs.Args(); len(rest) > 0 {
		n, err := cast.ToIntE(rest[0])
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid worker_count %q: %w", rest[0], err)
		}
		cfg.WorkerCount = n
	}

	return cfg, nil
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func loadFile(path string) (fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fileConfig{}, err
	}
	return fc, nil
}

func applyFile(cfg *Config, fc fileConfig) {
	if fc.WorkerCount != nil {
		cfg.WorkerCount = *fc.WorkerCount
	}
	if fc.Addr != nil {
		cfg.Addr = *fc.Addr
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.LogFile != nil {
		cfg.LogFile = *fc.LogFile
	}
}

// ParseLevel turns a level name into the form zapcore.Level.UnmarshalText
// expects. It accepts debug, info, warn and error, plus "warning" as an
// alias for warn; any other name is rejected.
func ParseLevel(name string) (string, error) {
	switch name {
	case "debug", "info", "warn", "warning", "error":
		if name == "warning" {
			return "warn", nil
		}
		return name, nil
	default:
		return "", fmt.Errorf("config: unknown log level %q", name)
	}
}
