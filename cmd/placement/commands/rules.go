package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goplacement/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect placement rules",
}

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the server's effective rule set",
	Long: `Show the rules the server currently applies and where they came from
(remote document or local options).

Example:
  placement rules show --format yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		set, err := c.Rules(cmd.Context(), "")
		if err != nil {
			return fmt.Errorf("failed to get rules: %w", err)
		}
		if quiet {
			return nil
		}
		if verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "source=%s etag=%s\n", set.Source, set.ETag)
		}
		return printer(cmd).Rules(set.RuleSet)
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a remote rules document",
	Long: `Parse a rules document the way the server does and report entries it
would skip. The command fails when the document as a whole is unusable.

Example:
  placement rules validate rules.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		parsed, skipped, err := rules.ParseDocument(data)
		if err != nil {
			return fmt.Errorf("invalid document: %w", err)
		}
		for _, s := range skipped {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped %v\n", s)
		}
		if quiet {
			return nil
		}
		if err := printer(cmd).Rules(rules.RuleSet{Source: rules.SourceRemote, Rules: parsed}); err != nil {
			return err
		}
		if len(skipped) > 0 {
			return fmt.Errorf("%d of %d rule(s) would be skipped", len(skipped), len(parsed)+len(skipped))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
}
