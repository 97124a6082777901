// cmd/collect/collect.go

package collect

import (
	"os"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/config"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_cli"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_io"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/metrics"
	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CollectCmd runs one collection pass and prints the result.
var CollectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run borgmatic once and print the metrics",
	Long: `Run one collection pass and write the borg gauges in the Prometheus text
format, to stdout or to a node_exporter textfile collector file.

Repositories whose borgmatic output is unusable are left out; the metrics of
the others are still written and the command exits non-zero.

Examples:
  borgmatic-exporter collect -c /etc/borgmatic/config.yaml
  borgmatic-exporter collect --textfile /var/lib/node_exporter/borg.prom`,
	Args: cobra.NoArgs,
	RunE: exporter_cli.Wrap(runCollect),
}

func init() {
	cli.AddStringFlag(CollectCmd.Flags(), "textfile", "", "", "Write to this file atomically instead of stdout", false)
}

func runCollect(rc *exporter_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	cfg, err := exporter_cli.ConfigFrom(rc.Ctx)
	if err != nil {
		return err
	}

	client, err := exporter_cli.NewClient(cfg)
	if err != nil {
		return err
	}

	configs, err := config.ResolveConfigs(rc.Ctx, cfg.BorgmaticConfig)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	res, collectErr := metrics.Collect(rc.Ctx, reg, client, configs)
	var problems *multierror.Error
	if collectErr != nil && !cerr.As(collectErr, &problems) {
		return collectErr
	}
	rc.Log.Info("Collected", zap.Int("repositories", res.Repositories), zap.String("trace_id", res.TraceID))

	if err := write(reg, cli.GetStringOrEmpty(cmd, "textfile")); err != nil {
		return err
	}
	return collectErr
}

func write(reg *prometheus.Registry, textfile string) error {
	if textfile != "" {
		if err := prometheus.WriteToTextfile(textfile, reg); err != nil {
			return cerr.Wrapf(err, "write %s", textfile)
		}
		return nil
	}

	families, err := reg.Gather()
	if err != nil {
		return cerr.Wrap(err, "gather metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
			return cerr.Wrap(err, "write metrics")
		}
	}
	return nil
}
