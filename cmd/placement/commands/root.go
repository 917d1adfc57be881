package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goplacement/internal/cli"
	"github.com/TimurManjosov/goplacement/internal/client"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	env     string
	format  string
	quiet   bool
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "placement",
	Short: "CLI tool for conditional script placement",
	Long: `Placement inspects and configures a placement server, and plans redirect chains locally.

Examples:
  placement resolve --host shop.example.com
  placement render --host shop.example.com
  placement rules show --format json
  placement rules validate rules.json
  placement options set head_domains "a.com, b.com"
  placement chain plan --config chain.yaml --profile shuffled --current a.com
  placement chain simulate --config chain.yaml --profile sequential`,
	SilenceUsage: true,
}

// Execute runs the root command. Interrupts cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the placement API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key (needed for options)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Named environment from ~/.placement/config.yaml")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")
}

func newClient() (*client.Client, error) {
	envCfg, err := cli.GetEnvConfig(env, baseURL, apiKey)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return client.NewClient(envCfg.BaseURL, envCfg.APIKey), nil
}

func printer(cmd *cobra.Command) cli.Printer {
	return cli.Printer{W: cmd.OutOrStdout(), Format: cli.OutputFormat(format)}
}
