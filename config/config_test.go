package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func TestDefaults(t *testing.T) {
	cfg, err := Parse(nil, noEnv)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:6379", cfg.Addr)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 0, cfg.WorkerCount)
}

func TestFlagsOverrideDefaults(t *testing.T) {
	cfg, err := Parse([]string{"-addr", "127.0.0.1:7000", "-log-level", "debug"}, noEnv)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7000", cfg.Addr)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestPositionalWorkerCount(t *testing.T) {
	cfg, err := Parse([]string{"4"}, noEnv)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.WorkerCount)
}

func TestEnvLogLevelAppliesWithoutFlag(t *testing.T) {
	env := func(k string) string {
		if k == "KVSHARD_LOG_LEVEL" {
			return "warn"
		}
		return ""
	}
	cfg, err := Parse(nil, env)
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.LogLevel)
}

func TestFlagWinsOverEnv(t *testing.T) {
	env := func(k string) string {
		if k == "KVSHARD_LOG_LEVEL" {
			return "warn"
		}
		return ""
	}
	cfg, err := Parse([]string{"-log-level", "error"}, env)
	require.NoError(t, err)
	require.Equal(t, "error", cfg.LogLevel)
}

func TestConfigFileAndFlagOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvshard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \"10.0.0.1:6379\"\nworker_count: 8\n"), 0o644))

	cfg, err := Parse([]string{"-config", path}, noEnv)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1:6379", cfg.Addr)
	require.Equal(t, 8, cfg.WorkerCount)

	cfg, err = Parse([]string{"-config", path, "-addr", "127.0.0.1:1"}, noEnv)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:1", cfg.Addr)
	require.Equal(t, 8, cfg.WorkerCount)
}

func TestMissingConfigFileIsError(t *testing.T) {
	_, err := Parse([]string{"-config", "/nonexistent/kvshard.yaml"}, noEnv)
	require.Error(t, err)
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func TestParseLevelAcceptsWarningAlias(t *testing.T) {
	lvl, err := ParseLevel("warning")
	require.NoError(t, err)
	require.Equal(t, "warn", lvl)
}
