package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerlite/ledgerlite/internal/cli"
)

func summaryCmd() *cobra.Command {
	var (
		monthly    bool
		byCategory bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show running totals",
		Long: `Show income, expense, and balance totals. Totals come from aggregate
tables maintained by the store, so this reads a single row regardless of
ledger size.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			summary, err := a.coordinator.Summary(ctx)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatTitle("Summary"))
			fmt.Printf("  Income:  %s\n", cli.IncomeStyle.Render(fmt.Sprintf("%12.2f", summary.TotalIncome)))
			fmt.Printf("  Expense: %s\n", cli.ExpenseStyle.Render(fmt.Sprintf("%12.2f", summary.TotalExpense)))

			balance := summary.Balance()
			style := cli.IncomeStyle
			if balance < 0 {
				style = cli.ExpenseStyle
			}
			fmt.Printf("  Balance: %s\n", style.Render(fmt.Sprintf("%12.2f", balance)))

			if monthly {
				months, err := a.coordinator.MonthlySummaries(ctx)
				if err != nil {
					return err
				}
				if len(months) > 0 {
					fmt.Println()
					fmt.Println(cli.FormatTitle("By month"))
					for _, m := range months {
						fmt.Printf("  %s %4d  income %s  expense %s\n",
							time.Month(m.Month).String()[:3], m.Year,
							cli.IncomeStyle.Render(fmt.Sprintf("%10.2f", m.Income)),
							cli.ExpenseStyle.Render(fmt.Sprintf("%10.2f", m.Expense)))
					}
				}
			}

			if byCategory {
				totals, err := a.coordinator.ExpensesByCategory(ctx)
				if err != nil {
					return err
				}
				if len(totals) > 0 {
					fmt.Println()
					fmt.Println(cli.FormatTitle("Expenses by category"))
					for _, ct := range totals {
						fmt.Printf("  %-25s %s\n", ct.Category,
							cli.ExpenseStyle.Render(fmt.Sprintf("%10.2f", ct.Amount)))
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&monthly, "monthly", false, "include the per-month breakdown")
	cmd.Flags().BoolVar(&byCategory, "by-category", false, "include expense totals per category")

	return cmd
}
