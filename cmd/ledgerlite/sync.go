package main

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ledgerlite/ledgerlite/internal/cli"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local ledger with the remote store",
		Long: `Run one full sync cycle: confirm queued deletions, push unsynced local
changes, then pull remote changes since the last cursor. Local unsynced
edits always win over the remote copy.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			pending, err := a.coordinator.UnsyncedCount(ctx)
			if err == nil && pending > 0 {
				fmt.Println(cli.FormatInfo(fmt.Sprintf("%d local change(s) to push", pending)))
			}

			bar := progressbar.NewOptions(-1,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription(cli.SyncIcon+" Syncing..."),
				progressbar.OptionSpinnerType(14),
				progressbar.OptionClearOnFinish(),
			)
			stop := make(chan struct{})
			spinDone := make(chan struct{})
			go func() {
				defer close(spinDone)
				ticker := time.NewTicker(100 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-stop:
						return
					case <-ticker.C:
						_ = bar.Add(1)
					}
				}
			}()

			result := a.coordinator.SyncAll(ctx)
			close(stop)
			<-spinDone
			_ = bar.Finish()

			if result == nil {
				fmt.Println(cli.FormatWarning("Sync did not run"))
				return nil
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Sync finished: %d pushed, %d pulled, %d delete(s) confirmed",
				result.Pushed, result.Pulled, result.DeletesConfirmed)))
			if result.DeletesPending > 0 {
				fmt.Println(cli.FormatWarning(fmt.Sprintf("%d delete(s) still queued", result.DeletesPending)))
			}
			return nil
		},
	}
}
