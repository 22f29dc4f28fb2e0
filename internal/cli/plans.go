package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newPlansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Browse the plan catalog",
	}

	cmd.AddCommand(newPlansListCmd())

	return cmd
}

func newPlansListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List purchasable plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := apiClient.Plans().List(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list plans: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(catalog)
			}

			t := NewTable("ID", "CATEGORY", "NAME", "DURATION", "PRICE", "BANDWIDTH", "DEVICES")
			for _, p := range catalog.All() {
				t.AddRow(
					p.ID,
					p.Category,
					truncate(p.Name, 30),
					p.Duration,
					p.Currency+" "+p.Price.StringFixed(2),
					p.BandwidthLimit,
					strconv.Itoa(p.Devices),
				)
			}
			t.Render()
			return nil
		},
	}
}
