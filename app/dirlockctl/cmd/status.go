package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statusLockName string

type statusOutput struct {
	Name      string `json:"name"`
	State     string `json:"state"` // free | held | stale | corrupt
	Pid       int32  `json:"pid,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who holds a named lock",
	Long: `Reports the state of a named lock without mutating anything. The result is
a snapshot: the lock can change hands right after the observation.

Exit codes:
0 - the lock is free
1 - the lock is held by a live process
2 - the lock is stale (holder dead) or in an indeterminate state
3 - an error occurred`,
	Run: func(cmd *cobra.Command, args []string) {

		jsonOutput, _ := cmd.Flags().GetBool("json")

		lock, _, err := newLock(context.Background())
		if err != nil {
			fmt.Println("❌ Failed to set up lock manager:", err)
			os.Exit(3)
		}

		state, err := lock.Inspect(context.Background(), statusLockName)
		if err != nil {
			fmt.Println("❌ Failed to inspect lock:", err)
			os.Exit(3)
		}

		out := statusOutput{Name: statusLockName}
		switch {
		case state.Free:
			out.State = "free"
		case state.Corrupt:
			out.State = "corrupt"
		case state.HolderAlive:
			out.State = "held"
			out.Pid = state.Holder.Pid
			out.StartedAt = time.UnixMilli(state.Holder.Epoch).Format(time.RFC3339)
		default:
			out.State = "stale"
			out.Pid = state.Holder.Pid
			out.StartedAt = time.UnixMilli(state.Holder.Epoch).Format(time.RFC3339)
		}

		if jsonOutput {
			encoded, _ := json.MarshalIndent(out, "", "  ")
			fmt.Println(string(encoded))
		} else {
			switch out.State {
			case "free":
				fmt.Printf("🟢 Lock \"%s\" is free.\n", statusLockName)
			case "held":
				fmt.Printf("🔒 Lock \"%s\" is held by pid %d (started %s).\n", statusLockName, out.Pid, out.StartedAt)
			case "stale":
				fmt.Printf("💀 Lock \"%s\" is held by a dead process (pid %d, started %s).\n", statusLockName, out.Pid, out.StartedAt)
				fmt.Println("   Run 'dirlockctl reclaim --name " + statusLockName + "' or simply acquire it; stale locks are reclaimed automatically.")
			case "corrupt":
				fmt.Printf("⚠️  Lock \"%s\" is in an indeterminate state; nothing will touch it automatically.\n", statusLockName)
			}
		}

		switch out.State {
		case "free":
			os.Exit(0)
		case "held":
			os.Exit(1)
		default:
			os.Exit(2)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusLockName, "name", "n", "", "Name of the lock to inspect")
	statusCmd.MarkFlagRequired("name")
	statusCmd.Flags().Bool("json", false, "Output in JSON format")
}
