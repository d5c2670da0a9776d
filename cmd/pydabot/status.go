package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

const metricPrefix = "pydabot_"

var (
	statusURL     string
	statusTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show counters of a running pydabot",
	Long:  "Scrape the metrics endpoint of a running pydabot (metrics.listen) and print its counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
		defer cancel()

		samples, err := scrapeStatus(ctx, statusURL)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pydabot status (%s):\n", statusURL)
		if len(samples) == 0 {
			fmt.Fprintln(out, "  no activity recorded yet")
			return nil
		}
		for _, s := range samples {
			fmt.Fprintf(out, "  %s %g\n", s.Name, s.Value)
		}
		return nil
	},
}

// statusSample is one counter series, e.g. pydabot_commands_dispatched_total{command="hello"}
type statusSample struct {
	Name  string
	Value float64
}

// scrapeStatus fetches url and returns the bot's counter series sorted by name
func scrapeStatus(ctx context.Context, url string) ([]statusSample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach metrics endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metrics endpoint returned %s", resp.Status)
	}
	return parseStatus(resp.Body)
}

func parseStatus(r io.Reader) ([]statusSample, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metrics: %w", err)
	}

	var samples []statusSample
	for name, family := range families {
		if !strings.HasPrefix(name, metricPrefix) || family.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range family.GetMetric() {
			samples = append(samples, statusSample{
				Name:  name + formatLabels(m.GetLabel()),
				Value: m.GetCounter().GetValue(),
			})
		}
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].Name < samples[j].Name })
	return samples, nil
}

func formatLabels(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "http://127.0.0.1:9090/metrics", "Metrics endpoint of the running bot")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 5*time.Second, "Request timeout")
}
