package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dirlock/dirlock/app/core/filesystem"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show all locks under the base directory with holder status",
	Long: `Scans the base directory for lock directories and reports, per lock, who
holds it and whether that holder is still alive. Locks whose names were too
unwieldy for a flat directory entry appear under their hashed name.`,
	Run: func(cmd *cobra.Command, args []string) {

		ctx := context.Background()

		lock, settings, err := newLock(ctx)
		if err != nil {
			fmt.Println("❌ Failed to set up lock manager:", err)
			os.Exit(3)
		}

		entries, err := filesystem.New().ListDir(ctx, settings.BasePath)
		if err != nil {
			fmt.Printf("❌ Error scanning base directory: %v\n", err)
			os.Exit(1)
		}

		var names []string
		for _, entry := range entries {
			if strings.HasSuffix(entry, ".lock") {
				names = append(names, strings.TrimSuffix(entry, ".lock"))
			}
		}
		sort.Strings(names)

		if len(names) == 0 {
			fmt.Printf("🟢 No locks under %s.\n", settings.BasePath)
			return
		}

		bar := progressbar.NewOptions(len(names),
			progressbar.OptionSetDescription("🔍 Scanning locks"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionClearOnFinish(),
		)

		type row struct {
			name   string
			status string
		}
		var rows []row

		for _, name := range names {
			state, err := lock.Inspect(ctx, name)
			_ = bar.Add(1)
			if err != nil {
				rows = append(rows, row{name: name, status: fmt.Sprintf("⚠️  error: %v", err)})
				continue
			}

			switch {
			case state.Free:
				// Released between the scan and the inspection.
				rows = append(rows, row{name: name, status: "🟢 free"})
			case state.Corrupt:
				rows = append(rows, row{name: name, status: "⚠️  indeterminate"})
			case state.HolderAlive:
				rows = append(rows, row{name: name, status: fmt.Sprintf("🔒 held by pid %d (started %s)",
					state.Holder.Pid, time.UnixMilli(state.Holder.Epoch).Format(time.RFC3339))})
			default:
				rows = append(rows, row{name: name, status: fmt.Sprintf("💀 stale, last holder pid %d",
					state.Holder.Pid)})
			}
		}

		fmt.Printf("Locks under %s:\n\n", settings.BasePath)
		for _, r := range rows {
			fmt.Printf("  %-32s %s\n", r.name, r.status)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
