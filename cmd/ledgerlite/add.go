package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerlite/ledgerlite/internal/cli"
	"github.com/ledgerlite/ledgerlite/internal/model"
)

func addCmd() *cobra.Command {
	var (
		amount   float64
		category string
		date     string
		notes    string
		income   bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new transaction",
		Example: `  ledgerlite add --amount 12.50 --category Food
  ledgerlite add --amount 2500 --category Salary --income --date 2026-08-01`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			when, err := parseDate(date)
			if err != nil {
				return err
			}

			typ := model.TypeExpense
			if income {
				typ = model.TypeIncome
			}

			txn, err := a.coordinator.Add(ctx, amount, category, when, notes, typ)
			if err != nil {
				return err
			}

			state := "pending sync"
			if txn.Synced {
				state = "synced"
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Recorded %s of %.2f in %s (%s)",
				txn.Type, txn.Amount, txn.Category, state)))
			return nil
		},
	}

	cmd.Flags().Float64Var(&amount, "amount", 0, "transaction amount (required, > 0)")
	cmd.Flags().StringVar(&category, "category", "", "category (required)")
	cmd.Flags().StringVar(&date, "date", "", "when the transaction occurred (default: now)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.Flags().BoolVar(&income, "income", false, "record as income instead of expense")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}
