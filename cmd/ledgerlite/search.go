package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerlite/ledgerlite/internal/cli"
)

func searchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search transactions by category prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			matches, err := a.coordinator.SearchByTerm(ctx, args[0], limit)
			if err != nil {
				return err
			}

			if len(matches) == 0 {
				fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("No transactions matching %q.", args[0])))
				return nil
			}

			fmt.Println(cli.FormatTitle(fmt.Sprintf("Matches for %q", args[0])))
			for _, txn := range matches {
				printTransaction(txn)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of matches")

	return cmd
}
