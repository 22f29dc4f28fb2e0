package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/wiman/pkg/client"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operator commands (admin token required)",
	}

	subs := &cobra.Command{
		Use:     "subscriptions",
		Aliases: []string{"sub"},
		Short:   "Manage all subscriptions",
	}
	subs.AddCommand(newAdminSubscriptionListCmd())
	subs.AddCommand(newAdminExpireCmd())
	subs.AddCommand(newAdminRenewCmd())
	subs.AddCommand(newAdminCancelCmd())

	recon := &cobra.Command{
		Use:     "reconciliations",
		Aliases: []string{"recon"},
		Short:   "Work the payment reconciliation queue",
	}
	recon.AddCommand(newAdminReconListCmd())
	recon.AddCommand(newAdminReconRetryCmd())

	cmd.AddCommand(subs, recon)
	return cmd
}

func newAdminSubscriptionListCmd() *cobra.Command {
	var opts client.SubscriptionListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := apiClient.Admin().ListSubscriptions(context.Background(), &opts)
			if err != nil {
				return fmt.Errorf("failed to list subscriptions: %w", err)
			}
			if getOutputFormat() != "table" {
				return printOutput(page)
			}

			t := NewTable("ID", "USER", "PLAN", "STATUS", "EXPIRES", "ENTITLED")
			for _, s := range page.Data {
				t.AddRow(
					s.ID,
					strconv.FormatInt(s.UserID, 10),
					s.PlanID,
					formatStatus(s.Status),
					formatTime(s.ExpiresAt),
					strconv.FormatBool(s.Entitled),
				)
			}
			t.Render()
			fmt.Printf("\nPage %d of %d (%d total)\n", page.Page, page.TotalPages, page.TotalItems)
			return nil
		},
	}

	cmd.Flags().Int64Var(&opts.UserID, "user-id", 0, "filter by user")
	cmd.Flags().StringVar(&opts.PlanID, "plan", "", "filter by plan")
	cmd.Flags().StringVar(&opts.Status, "status", "", "filter by status")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 20, "page size")

	return cmd
}

func newAdminExpireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Run the expiry sweep now",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := apiClient.Admin().Expire(context.Background())
			if err != nil {
				return fmt.Errorf("failed to run expiry sweep: %w", err)
			}
			if getOutputFormat() != "table" {
				return printOutput(map[string]int64{"expired": n})
			}
			fmt.Printf("Expired %d subscription(s)\n", n)
			return nil
		},
	}
}

func newAdminRenewCmd() *cobra.Command {
	var req client.RenewRequest

	cmd := &cobra.Command{
		Use:   "renew <subscription-id>",
		Short: "Extend a subscription by days and/or hours",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Days <= 0 && req.Hours <= 0 {
				return fmt.Errorf("pass --days or --hours")
			}
			sub, err := apiClient.Admin().Renew(context.Background(), args[0], req)
			if err != nil {
				return fmt.Errorf("failed to renew subscription: %w", err)
			}
			if getOutputFormat() != "table" {
				return printOutput(sub)
			}
			printSubscription(sub)
			return nil
		},
	}

	cmd.Flags().IntVar(&req.Days, "days", 0, "days to add")
	cmd.Flags().IntVar(&req.Hours, "hours", 0, "hours to add")

	return cmd
}

func newAdminCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <subscription-id>",
		Short: "Cancel a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := apiClient.Admin().Cancel(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to cancel subscription: %w", err)
			}
			if getOutputFormat() != "table" {
				return printOutput(sub)
			}
			fmt.Printf("Subscription %s is %s\n", sub.ID, sub.Status)
			return nil
		},
	}
}

func newAdminReconListCmd() *cobra.Command {
	var status string
	var opts client.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reconciliation entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := apiClient.Admin().ListReconciliations(context.Background(), status, opts)
			if err != nil {
				return fmt.Errorf("failed to list reconciliation entries: %w", err)
			}
			if getOutputFormat() != "table" {
				return printOutput(page)
			}

			t := NewTable("ID", "REASON", "STATUS", "SUBSCRIPTION", "RECEIPT", "ATTEMPTS", "DETAIL")
			for _, e := range page.Data {
				t.AddRow(
					e.ID,
					e.Reason,
					formatStatus(e.Status),
					orDash(e.SubscriptionID),
					orDash(e.ProviderTxID),
					strconv.Itoa(e.Attempts),
					truncate(e.Detail, 40),
				)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "open (default), resolved, abandoned or all")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 20, "page size")

	return cmd
}

func newAdminReconRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Retry failed activations now",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := apiClient.Admin().RetryReconciliations(context.Background())
			if err != nil {
				return fmt.Errorf("failed to retry reconciliations: %w", err)
			}
			if getOutputFormat() != "table" {
				return printOutput(report)
			}
			fmt.Printf("Processed %d: %d resolved, %d rescheduled, %d abandoned\n",
				report.Processed, report.Resolved, report.Rescheduled, report.Abandoned)
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
