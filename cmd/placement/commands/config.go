package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goplacement/internal/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the placement CLI configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long: `Create a default configuration file at ~/.placement/config.yaml
(or $PLACEMENT_CONFIG).

Example:
  placement config init`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.InitConfig(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		configPath, _ := cli.GetConfigPath()
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created at: %s\n", configPath)
		fmt.Fprintln(cmd.OutOrStdout(), "\nPlease edit the file to set your base URLs and admin keys.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration",
	Long: `Display the current configuration.

Example:
  placement config list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Default Environment: %s\n\n", cfg.DefaultEnv)
		fmt.Fprintln(out, "Environments:")
		for _, name := range cfg.Names() {
			envCfg := cfg.Environments[name]
			fmt.Fprintf(out, "  %s:\n", name)
			fmt.Fprintf(out, "    base_url: %s\n", envCfg.BaseURL)
			fmt.Fprintf(out, "    api_key: %s\n", maskKey(envCfg.APIKey))
		}
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use <env>",
	Short: "Set the default environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.UseEnv(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Default environment is now '%s'\n", args[0])
		return nil
	},
}

// maskKey hides all but the first characters of a secret.
func maskKey(key string) string {
	switch {
	case key == "":
		return "(none)"
	case len(key) > 4:
		return key[:4] + "***"
	default:
		return "***"
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configUseCmd)
}
