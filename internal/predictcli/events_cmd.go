package predictcli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) newEventsCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow prediction events",
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
			out := cmd.OutOrStdout()
			seen := 0
			var writeErr error
			err = client.StreamEvents(cmd.Context(), func(evt EventEnvelope) bool {
				if asJSON {
					writeErr = json.NewEncoder(out).Encode(evt)
				} else {
					_, writeErr = fmt.Fprintf(out, "%s\t%s\t%s\n", formatTime(evt.Timestamp), evt.Type, evt.ID)
				}
				seen++
				return writeErr == nil && (count <= 0 || seen < count)
			})
			if err != nil {
				return err
			}
			return writeErr
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many events (0 follows forever)")
	return cmd
}
