package predictcli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func (c *cli) newPredictionsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "predictions",
		Short: "List recent audited predictions",
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
			path := "/predictions"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}
			var resp struct {
				Predictions []PredictionRecord `json:"predictions"`
			}
			if err := client.GetJSON(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), resp.Predictions)
			}
			if len(resp.Predictions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No predictions recorded.")
				return nil
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tSTATUS\tMODEL\tPREDICTION\tCONFIDENCE\tCREATED\tERROR")
			for _, p := range resp.Predictions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					p.ID, p.Status, p.ModelVersion,
					formatFloat(p.Prediction), formatFloat(p.Confidence),
					formatTime(p.CreatedAt), orDash(p.Error))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of records (server default when 0)")
	return cmd
}
