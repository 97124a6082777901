// cmd/serve/serve.go

package serve

import (
	"time"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/borgmatic"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/config"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_cli"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_err"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_io"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/metrics"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ServeCmd runs the HTTP scrape endpoint.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve borg metrics over HTTP",
	Long: `Serve borg repository metrics for Prometheus. Each scrape runs borgmatic
for every configured config, unless --min-scrape-interval has not elapsed since
the last pass or borgmatic has failed repeatedly, in which case the previous
values are served.

Examples:
  borgmatic-exporter serve -c /etc/borgmatic.d/*.yaml
  borgmatic-exporter serve --listen-address 127.0.0.1:9996 --min-scrape-interval 5m`,
	Args: cobra.NoArgs,
	RunE: exporter_cli.Wrap(runServe),
}

func init() {
	f := ServeCmd.Flags()
	cli.AddStringFlag(f, "listen-address", "", ":9996", "Address to listen on", false)
	cli.AddStringFlag(f, "metrics-path", "", "/metrics", "Path the metrics are served on", false)
	cli.AddDurationFlag(f, "min-scrape-interval", 0, "Minimum time between two borgmatic runs (0 runs on every scrape)")
	cli.AddBoolFlag(f, "watch-configs", "", false, "Pick up added or removed borgmatic config files without a restart")
	cli.AddUint32Flag(f, "breaker-failures", 5, "Consecutive failed passes before borgmatic calls are paused")
	cli.AddDurationFlag(f, "breaker-cooldown", time.Minute, "How long borgmatic calls stay paused")
}

func runServe(rc *exporter_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	cfg, err := exporter_cli.ConfigFrom(rc.Ctx)
	if err != nil {
		return err
	}

	client, err := exporter_cli.NewClient(cfg)
	if err != nil {
		return err
	}

	v, err := client.Version(rc.Ctx)
	if err != nil {
		return exporter_err.NewDependencyError("borgmatic", "collecting metrics", err,
			"install borgmatic or point --borgmatic-binary at it")
	}
	if err := borgmatic.CheckVersion(v); err != nil {
		return exporter_err.NewDependencyError("borgmatic "+borgmatic.MinimumVersion+" or later", "JSON output", err)
	}
	rc.Log.Info("Found borgmatic", zap.String("version", v.String()))

	configs, err := config.NewConfigSet(rc.Ctx, cfg.BorgmaticConfig)
	if err != nil {
		return err
	}
	if cfg.WatchConfigs {
		if err := configs.Watch(rc.Ctx); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.CreateMetrics(reg)
	if err != nil {
		return exporter_err.NewInternalError("registering metrics", err)
	}

	srv := server.New(metrics.NewCollector(client, m), reg, configs.Paths, server.Options{
		ListenAddress:   cfg.ListenAddress,
		MetricsPath:     cfg.MetricsPath,
		MinInterval:     cfg.MinScrapeInterval,
		BreakerFailures: cfg.Breaker.Failures,
		BreakerCooldown: cfg.Breaker.Cooldown,
	})

	// warm up so the first scrape is not the first borgmatic run
	if err := srv.Refresh(rc.Ctx); err != nil {
		rc.Log.Warn("Initial collection failed", zap.Error(err))
	}

	return srv.ListenAndServe(rc.Ctx)
}
