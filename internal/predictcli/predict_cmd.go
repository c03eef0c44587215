package predictcli

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func (c *cli) newPredictCmd() *cobra.Command {
	var featureList string
	cmd := &cobra.Command{
		Use:   "predict [feature...]",
		Short: "Score a feature vector",
		Example: `  predictctl predict 1 2 3 4 5 6 7 8 9 10
  predictctl predict --features 1,2,3,4,5,6,7,8,9,10 -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := args
			if len(raw) == 0 && featureList != "" {
				raw = strings.Split(featureList, ",")
			}
			if len(raw) == 0 {
				return fmt.Errorf("features are required (positional or --features)")
			}
			features, err := parseFeatures(raw)
			if err != nil {
				return err
			}

			asJSON, err := c.jsonOutput()
			if err != nil {
				return err
			}
			client, err := c.client()
			if err != nil {
				return err
			}

			var result PredictionResult
			body := map[string][]float64{"features": features}
			if err := client.PostJSON(cmd.Context(), "/predict", body, &result); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}
			return printKV(cmd.OutOrStdout(), [][2]string{
				{"Prediction", formatFloat(result.Prediction)},
				{"Confidence", formatFloat(result.Confidence)},
				{"Model", result.ModelVersion},
			})
		},
	}
	cmd.Flags().StringVar(&featureList, "features", "", "Comma-separated feature values")
	return cmd
}

func parseFeatures(raw []string) ([]float64, error) {
	features := make([]float64, 0, len(raw))
	for i, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %q is not a number", i, s)
		}
		// JSON cannot carry NaN or infinities.
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("feature %d: %q is not finite", i, s)
		}
		features = append(features, v)
	}
	return features, nil
}
