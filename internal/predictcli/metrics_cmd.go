package predictcli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
	"github.com/spf13/cobra"
)

// MetricSummary describes one metric family in the exposition.
type MetricSummary struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Series int    `json:"series"`
	Help   string `json:"help,omitempty"`
}

func (c *cli) newMetricsCmd() *cobra.Command {
	var (
		prefix  string
		summary bool
	)
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print the Prometheus exposition from /metrics",
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
			text, err := client.GetText(cmd.Context(), "/metrics")
			if err != nil {
				return err
			}
			families, err := parseFamilies(text, prefix)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !summary {
				for _, mf := range families {
					if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
						return err
					}
				}
				return nil
			}

			rows := summarize(families)
			if asJSON {
				return printJSON(out, rows)
			}
			return printSummary(out, rows)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only show metric families whose name starts with this prefix")
	cmd.Flags().BoolVar(&summary, "summary", false, "List families with their type and series count instead of samples")
	return cmd
}

// parseFamilies parses exposition text and returns the families whose name
// starts with prefix, sorted by name.
func parseFamilies(text, prefix string) ([]*dto.MetricFamily, error) {
	parser := expfmt.NewTextParser(model.UTF8Validation)
	parsed, err := parser.TextToMetricFamilies(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parse metrics: %w", err)
	}
	families := make([]*dto.MetricFamily, 0, len(parsed))
	for name, mf := range parsed {
		if strings.HasPrefix(name, prefix) {
			families = append(families, mf)
		}
	}
	sort.Slice(families, func(i, j int) bool {
		return families[i].GetName() < families[j].GetName()
	})
	return families, nil
}

func summarize(families []*dto.MetricFamily) []MetricSummary {
	rows := make([]MetricSummary, 0, len(families))
	for _, mf := range families {
		rows = append(rows, MetricSummary{
			Name:   mf.GetName(),
			Type:   strings.ToLower(mf.GetType().String()),
			Series: len(mf.GetMetric()),
			Help:   mf.GetHelp(),
		})
	}
	return rows
}

func printSummary(w io.Writer, rows []MetricSummary) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No matching metrics.")
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tTYPE\tSERIES\tHELP")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Name, r.Type, r.Series, orDash(r.Help))
	}
	return tw.Flush()
}
