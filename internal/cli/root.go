package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pratik-mahalle/wiman/pkg/client"
)

var (
	cfgFile      string
	outputFormat string
	serverURL    string
	tokenFlag    string
	apiClient    *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "wiman",
	Short: "WIMAN CLI - Wi-Fi subscription administration",
	Long: `WIMAN CLI gives operators and developers command-line access to the
WIMAN subscription backend: browse plans, buy and inspect subscriptions,
run the expiry sweep, and work the payment reconciliation queue.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isLocalCommand(cmd) {
			return nil
		}
		if cmd.Name() == "status" || (cmd.Parent() != nil && cmd.Parent().Name() == "plans") {
			return initClient()
		}
		return initAuthenticatedClient()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.wiman/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "bearer token (overrides config)")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("server_url", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newPlansCmd())
	rootCmd.AddCommand(newSubscriptionsCmd())
	rootCmd.AddCommand(newAdminCmd())
}

// isLocalCommand reports whether cmd works without talking to the server
func isLocalCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" || c.Name() == "token" {
			return true
		}
	}
	return false
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".wiman"), nil
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		_ = os.MkdirAll(dir, 0700)
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("WIMAN")
	viper.AutomaticEnv()

	viper.SetDefault("server_url", "http://localhost:8080")
	viper.SetDefault("output", "table")

	_ = viper.ReadInConfig()
}

func initClient() error {
	url := viper.GetString("server_url")
	if serverURL != "" {
		url = serverURL
	}

	apiClient = client.NewClient(client.Config{
		BaseURL: url,
	})
	return nil
}

func initAuthenticatedClient() error {
	if err := initClient(); err != nil {
		return err
	}

	token := tokenFlag
	if token == "" {
		token = viper.GetString("auth.token")
	}
	if token == "" {
		return fmt.Errorf("not authenticated. Run 'wiman token set <token>' first")
	}

	apiClient.SetToken(token)
	return nil
}

func getOutputFormat() string {
	if outputFormat != "" && outputFormat != "table" {
		return outputFormat
	}
	return viper.GetString("output")
}
