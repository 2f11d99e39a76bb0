package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerlite/ledgerlite/internal/cli"
	"github.com/ledgerlite/ledgerlite/internal/model"
	"github.com/ledgerlite/ledgerlite/internal/service"
)

func listCmd() *cobra.Command {
	var (
		pageSize    int
		afterDate   string
		afterID     string
		showPending bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Long: `List transactions in reverse chronological order. Output is paginated;
when more rows remain, the command prints the cursor flags to pass for the
next page.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			var cursor *service.PageCursor
			if afterDate != "" || afterID != "" {
				if afterDate == "" || afterID == "" {
					return fmt.Errorf("--after-date and --after-id must be given together")
				}
				cursor = &service.PageCursor{DateISO: afterDate, ID: afterID}
			}

			page, err := a.coordinator.PageByCursor(ctx, pageSize, cursor)
			if err != nil {
				return err
			}

			if len(page.Transactions) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No transactions."))
				return nil
			}

			fmt.Println(cli.FormatTitle("Transactions"))
			for _, txn := range page.Transactions {
				printTransaction(txn)
			}

			if showPending {
				count, err := a.coordinator.UnsyncedCount(ctx)
				if err == nil && count > 0 {
					fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("%d change(s) pending sync", count)))
				}
			}

			if page.Next != nil {
				fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf(
					"More available: --after-date %s --after-id %s", page.Next.DateISO, page.Next.ID)))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pageSize, "page-size", 25, "rows per page")
	cmd.Flags().StringVar(&afterDate, "after-date", "", "cursor: date of the last row seen")
	cmd.Flags().StringVar(&afterID, "after-id", "", "cursor: id of the last row seen")
	cmd.Flags().BoolVar(&showPending, "pending", false, "show the count of changes awaiting sync")

	return cmd
}

func printTransaction(txn model.Transaction) {
	amount := cli.ExpenseStyle.Render(fmt.Sprintf("-%.2f", txn.Amount))
	if txn.Type == model.TypeIncome {
		amount = cli.IncomeStyle.Render(fmt.Sprintf("+%.2f", txn.Amount))
	}

	marker := " "
	if !txn.Synced {
		marker = cli.WarningStyle.Render("*")
	}

	line := fmt.Sprintf("%s %-25s %10s  %s", marker, txn.Category, amount, txn.DateISO)
	if txn.Notes != "" {
		line += "  " + cli.SubtleStyle.Render(txn.Notes)
	}
	line += "  " + cli.SubtleStyle.Render(txn.ID)
	fmt.Println(line)
}
