package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var host string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show which scripts apply to a host",
	Long: `Ask the server which scripts it would emit on a page served for --host.

Examples:
  placement resolve --host shop.example.com
  placement resolve --host shop.example.com --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.Resolve(cmd.Context(), host)
		if err != nil {
			return fmt.Errorf("failed to resolve: %w", err)
		}
		if quiet {
			return nil
		}
		if verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "host=%s source=%s decisions=%d\n", res.Host, res.Source, len(res.Decisions))
		}
		return printer(cmd).Resolution(res)
	},
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the head and footer markup for a host",
	Long: `Print exactly what the server writes into the head and the footer of a
page served for --host.

Example:
  placement render --host shop.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		out, err := c.Render(cmd.Context(), host)
		if err != nil {
			return fmt.Errorf("failed to render: %w", err)
		}
		if quiet {
			return nil
		}
		return printer(cmd).Rendering(out)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{resolveCmd, renderCmd} {
		cmd.Flags().StringVar(&host, "host", "", "Hostname of the page")
		_ = cmd.MarkFlagRequired("host")
		rootCmd.AddCommand(cmd)
	}
}
