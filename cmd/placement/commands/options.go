package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goplacement/internal/options"
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Read and change server options (admin)",
	Long: `Read and change the options behind the local rules and the remote
rules URL. Valid keys: ` + strings.Join(options.Keys, ", "),
}

var optionsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show all options, or one value",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		values, err := c.GetOptions(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get options: %w", err)
		}
		if len(args) == 1 {
			v, ok := values[args[0]]
			if !ok {
				return fmt.Errorf("unknown option '%s'", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		}
		if quiet {
			return nil
		}
		return printer(cmd).Options(values)
	},
}

var optionsSetCmd = &cobra.Command{
	Use:   "set <key> <value> [<key> <value>...]",
	Short: "Change options",
	Long: `Change one or more options. Keys not named are left alone; an empty
value clears a key.

Examples:
  placement options set head_domains "a.com, b.com"
  placement options set github_config_url "" body_domains shop.example.com`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 || len(args)%2 != 0 {
			return fmt.Errorf("expected key/value pairs, got %d argument(s)", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		values := make(map[string]string, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			values[args[i]] = args[i+1]
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		after, err := c.SetOptions(cmd.Context(), values)
		if err != nil {
			return fmt.Errorf("failed to set options: %w", err)
		}
		if quiet {
			return nil
		}
		if verbose {
			return printer(cmd).Options(after)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully updated %d option(s)\n", len(values))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(optionsCmd)
	optionsCmd.AddCommand(optionsGetCmd)
	optionsCmd.AddCommand(optionsSetCmd)
}
