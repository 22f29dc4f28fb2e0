package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the server and, when logged in, your subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			token := tokenFlag
			if token == "" {
				token = viper.GetString("auth.token")
			}
			apiClient.SetToken(token)

			health, healthErr := apiClient.Health(ctx)

			if getOutputFormat() != "table" {
				summary := map[string]interface{}{"ready": healthErr == nil}
				if health != nil {
					summary["database"] = health.Database
				}
				if token != "" {
					if sub, err := apiClient.Subscriptions().Current(ctx); err == nil {
						summary["subscription"] = sub
					}
				}
				return printOutput(summary)
			}

			fmt.Println("WIMAN Status")
			fmt.Println(strings.Repeat("=", 40))

			if healthErr != nil {
				fmt.Printf("  Server:        (error: %v)\n", healthErr)
			} else {
				fmt.Printf("  Server:        %s (database %s)\n", formatStatus(health.Status), health.Database)
			}

			if token == "" {
				fmt.Println("  Subscription:  (no token stored)")
				return nil
			}
			sub, err := apiClient.Subscriptions().Current(ctx)
			if err != nil {
				fmt.Printf("  Subscription:  (error: %v)\n", err)
				return nil
			}
			access := "no access"
			if sub.Entitled {
				access = formatRemaining(sub.RemainingSeconds) + " left"
			}
			fmt.Printf("  Subscription:  %s on %s, %s\n", formatStatus(sub.Status), sub.PlanID, access)
			return nil
		},
	}
}
