package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dirlock/dirlock/app/core/dirlock"
	"github.com/dirlock/dirlock/app/panichandler"
)

var (
	runLockName string
	runWait     bool
	runTimeout  time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run --name <lock> -- <command> [args...]",
	Short: "Run a command while holding a named lock",
	Long: `Acquires the named lock, runs the given command, and releases the lock on
every exit path: normal completion, workload failure, SIGINT/SIGTERM, and
panics inside dirlockctl itself.

By default a busy lock fails immediately; the lock performs no waiting of its
own. With --wait, dirlockctl polls with backoff until the lock becomes free
or --timeout elapses.

Exit codes:
0 - the workload finished successfully
1 - the lock is busy (another live holder)
2 - lock or I/O error, or the workload could not be started
Otherwise the workload's own exit code is propagated.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		lock, _, err := newLock(ctx)
		if err != nil {
			fmt.Println("❌ Failed to set up lock manager:", err)
			os.Exit(2)
		}

		handle, err := acquireMaybeWait(ctx, lock, runLockName)
		if err != nil {
			if errors.Is(err, dirlock.ErrBusy) {
				fmt.Printf("🔒 Lock \"%s\" is busy. Another process holds it; try again later or use --wait.\n", runLockName)
				os.Exit(1)
			}
			fmt.Println("❌ Failed to acquire lock:", err)
			os.Exit(2)
		}

		// The lock must go back on every exit path, including a panic in
		// our own code. Release is idempotent-by-once here so the deferred
		// call and the direct call below cannot double-release.
		var releaseOnce sync.Once
		release := func() {
			releaseOnce.Do(func() {
				if err := lock.Release(context.Background(), handle); err != nil &&
					!errors.Is(err, dirlock.ErrAlreadyReleased) {
					slog.Error("failed to release lock", "name", runLockName, "error", err)
				}
			})
		}
		defer release()
		defer panichandler.RecoverWithCallback("dirlockctl run", release)

		workload := exec.CommandContext(ctx, args[0], args[1:]...)
		workload.Stdin = os.Stdin
		workload.Stdout = os.Stdout
		workload.Stderr = os.Stderr

		runErr := workload.Run()
		release()

		if runErr != nil {
			var exitErr *exec.ExitError
			if errors.As(runErr, &exitErr) && exitErr.ExitCode() >= 0 {
				os.Exit(exitErr.ExitCode())
			}
			fmt.Println("❌ Workload failed:", runErr)
			os.Exit(2)
		}
	},
}

// acquireMaybeWait makes a single acquisition attempt, or polls with
// exponential backoff when --wait is set. Retry policy deliberately lives
// here with the caller; the lock itself never blocks.
func acquireMaybeWait(ctx context.Context, lock dirlock.Dirlock, name string) (dirlock.Handle, error) {
	handle, err := lock.Acquire(ctx, name)
	if err == nil || !errors.Is(err, dirlock.ErrBusy) || !runWait {
		return handle, err
	}

	var deadline time.Time
	if runTimeout > 0 {
		deadline = time.Now().Add(runTimeout)
	}

	backoff := 100 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return dirlock.Handle{}, ctx.Err()
		case <-time.After(backoff):
		}

		handle, err = lock.Acquire(ctx, name)
		if err == nil || !errors.Is(err, dirlock.ErrBusy) {
			return handle, err
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return dirlock.Handle{}, err
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runLockName, "name", "n", "", "Name of the lock to hold while the command runs")
	runCmd.MarkFlagRequired("name")
	runCmd.Flags().BoolVarP(&runWait, "wait", "w", false, "Poll with backoff until the lock becomes free")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Give up waiting after this duration (0 waits forever)")
}
