package predictcli

import (
	"github.com/spf13/cobra"
)

func (c *cli) newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := c.jsonOutput()
			if err != nil {
				return err
			}
			client, err := c.client()
			if err != nil {
				return err
			}
			var health Health
			if err := client.GetJSON(cmd.Context(), "/health", &health); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), health)
			}
			return printKV(cmd.OutOrStdout(), [][2]string{
				{"Status", health.Status},
				{"Service", health.Service},
				{"Version", health.Version},
				{"Timestamp", formatTime(health.Timestamp)},
			})
		},
	}
}
