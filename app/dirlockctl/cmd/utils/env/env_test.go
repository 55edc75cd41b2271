package env

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("should fall back to defaults", func(t *testing.T) {
		t.Setenv("DIRLOCK_ROOT", "")
		t.Setenv("LOG_LEVEL", "")

		settings, err := New().Load(ctx)

		require.NoError(t, err)
		assert.NotEmpty(t, settings.BasePath)
		assert.Equal(t, slog.LevelInfo, settings.LogLevel)
	})

	t.Run("should honor DIRLOCK_ROOT", func(t *testing.T) {
		t.Setenv("DIRLOCK_ROOT", "/srv/locks")

		settings, err := New().Load(ctx)

		require.NoError(t, err)
		assert.Equal(t, "/srv/locks", settings.BasePath)
	})

	t.Run("should parse LOG_LEVEL", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "debug")

		settings, err := New().Load(ctx)

		require.NoError(t, err)
		assert.Equal(t, slog.LevelDebug, settings.LogLevel)
	})

	t.Run("should keep info for an unknown LOG_LEVEL", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "chatty")

		settings, err := New().Load(ctx)

		require.NoError(t, err)
		assert.Equal(t, slog.LevelInfo, settings.LogLevel)
	})
}
