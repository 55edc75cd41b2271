package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dirlock/dirlock/app/core/dirlock"
	"github.com/dirlock/dirlock/app/core/filesystem"
	"github.com/dirlock/dirlock/app/core/fingerprint"
	"github.com/dirlock/dirlock/app/dirlockctl/cmd/utils/env"
)

// Version is set via ldflags at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "dirlockctl",
	Short:   "Dirlock Control CLI",
	Version: Version,
	Long: `
🔐 Dirlock Control CLI (` + Version + `)

dirlockctl runs workloads under crash-safe, filesystem-backed named locks and
inspects the lock state other processes left behind.

RUNNING WORK:
  run         Run a command while holding a named lock

MONITORING & CLEANUP:
  status      Show who holds a named lock
  list        Show all locks under the base directory with holder status
  reclaim     Remove a lock whose holder process is provably dead

All commands share one base directory (DIRLOCK_ROOT, default
/var/lock/dirlock on Linux). Processes only exclude each other when they use
the same base directory on the same filesystem.

EXAMPLES:
  dirlockctl run --name nightly-backup -- pg_dump mydb
  dirlockctl run --name nightly-backup --wait --timeout 5m -- pg_dump mydb
  dirlockctl status --name nightly-backup --json
  dirlockctl list
  dirlockctl reclaim --name nightly-backup
`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("❌ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Disable Cobra's automatic "completion" command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("dirlockctl {{.Version}}\n")
}

// newLock builds the lock manager from the environment settings, creating
// the base directory when it does not exist yet.
func newLock(ctx context.Context) (dirlock.Dirlock, *env.Settings, error) {
	settings, err := env.New().Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if err := os.MkdirAll(settings.BasePath, 0o777); err != nil {
		return nil, nil, fmt.Errorf("failed to create lock base directory '%s': %w", settings.BasePath, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: settings.LogLevel,
	}))
	slog.SetDefault(logger)

	lock := dirlock.New(settings.BasePath, filesystem.New(), fingerprint.NewInspector(), logger)
	return lock, settings, nil
}
