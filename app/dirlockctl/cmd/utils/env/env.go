// Package env resolves dirlockctl's runtime settings from environment
// variables, with .env file support.
package env

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
)

type Env interface {
	// Load reads the settings from the environment. A .env file in the
	// working directory is merged in first; real environment variables win.
	Load(ctx context.Context) (*Settings, error)
}

type Settings struct {
	// BasePath is the directory all lock directories live under. Every
	// process competing for the same locks must use the same base path.
	BasePath string
	// LogLevel controls slog output of the CLI.
	LogLevel slog.Level
}

type env struct{}

func New() Env {
	return &env{}
}

// Load implements Env.
func (e *env) Load(ctx context.Context) (*Settings, error) {
	// Best-effort: a missing .env file is the normal case.
	_ = godotenv.Load()

	settings := &Settings{
		BasePath: defaultBasePath(),
		LogLevel: slog.LevelInfo,
	}

	if v := os.Getenv("DIRLOCK_ROOT"); v != "" {
		settings.BasePath = v
	}

	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		settings.LogLevel = slog.LevelDebug
	case "warn":
		settings.LogLevel = slog.LevelWarn
	case "error":
		settings.LogLevel = slog.LevelError
	}

	return settings, nil
}

// defaultBasePath returns the directory used when DIRLOCK_ROOT is not set.
func defaultBasePath() string {
	switch runtime.GOOS {
	case "linux":
		// /var/lock is world-writable on common distributions
		return "/var/lock/dirlock"
	default:
		return filepath.Join(os.TempDir(), "dirlock")
	}
}
