package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/wiman/pkg/client"
)

func newSubscriptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscriptions",
		Aliases: []string{"sub"},
		Short:   "Manage your own subscription",
	}

	cmd.AddCommand(newSubscriptionCurrentCmd())
	cmd.AddCommand(newSubscriptionCreateCmd())
	cmd.AddCommand(newSubscriptionPayCmd())

	return cmd
}

func newSubscriptionCurrentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show your latest subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := apiClient.Subscriptions().Current(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get subscription: %w", err)
			}
			if getOutputFormat() != "table" {
				return printOutput(sub)
			}
			printSubscription(sub)
			return nil
		},
	}
}

func newSubscriptionCreateCmd() *cobra.Command {
	var payLater bool

	cmd := &cobra.Command{
		Use:   "create <plan-id>",
		Short: "Start a subscription on a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := apiClient.Subscriptions().Create(context.Background(), client.CreateSubscriptionRequest{
				PlanID:   args[0],
				PayLater: payLater,
			})
			if err != nil {
				return fmt.Errorf("failed to create subscription: %w", err)
			}
			if getOutputFormat() != "table" {
				return printOutput(sub)
			}
			printSubscription(sub)
			if sub.Status == "pending" {
				fmt.Printf("\nPay with: wiman subscriptions pay %s <phone>\n", sub.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&payLater, "pay-later", false, "activate now and settle later (server must allow it)")

	return cmd
}

func newSubscriptionPayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pay <subscription-id> <phone>",
		Short: "Send the M-Pesa payment prompt to a phone",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, msg, err := apiClient.Payments().Initiate(context.Background(), client.InitiatePaymentRequest{
				SubscriptionID: args[0],
				PhoneNumber:    args[1],
			})
			if err != nil {
				return fmt.Errorf("failed to initiate payment: %w", err)
			}
			if getOutputFormat() != "table" {
				return printOutput(p)
			}
			fmt.Printf("Payment %s for KES %s sent to %s\n", p.ID, p.Amount.StringFixed(2), p.PhoneNumber)
			if msg != "" {
				fmt.Println(msg)
			}
			return nil
		},
	}
}

func printSubscription(sub *client.Subscription) {
	fmt.Printf("ID:         %s\n", sub.ID)
	fmt.Printf("User:       %s\n", strconv.FormatInt(sub.UserID, 10))
	fmt.Printf("Plan:       %s\n", sub.PlanID)
	fmt.Printf("Status:     %s\n", formatStatus(sub.Status))
	fmt.Printf("Starts:     %s\n", formatTime(sub.StartAt))
	fmt.Printf("Expires:    %s\n", formatTime(sub.ExpiresAt))
	fmt.Printf("Entitled:   %t\n", sub.Entitled)
	fmt.Printf("Remaining:  %s\n", formatRemaining(sub.RemainingSeconds))
}
