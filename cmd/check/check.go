// cmd/check/check.go

package check

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/borgmatic"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/config"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_cli"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_err"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_io"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CheckCmd validates the setup without collecting anything.
var CheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration, borgmatic version and configured repositories",
	Long: `Validate the exporter configuration, verify that borgmatic is installed and
recent enough for JSON output, and list the repositories each borgmatic config
declares. No borg command is run against the repositories.`,
	Args: cobra.NoArgs,
	RunE: exporter_cli.Wrap(runCheck),
}

func runCheck(rc *exporter_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

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
	fmt.Fprintf(out, "borgmatic %s (%s)\n", v, cfg.BorgmaticBinary)

	configs, err := config.ResolveConfigs(rc.Ctx, cfg.BorgmaticConfig)
	if err != nil {
		return err
	}

	for _, path := range configs {
		repos, err := borgmatic.ReadRepositories(path)
		if err != nil {
			rc.Log.Warn("Cannot inspect borgmatic config", zap.String("config", path), zap.Error(err))
			fmt.Fprintf(out, "%s: unreadable: %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "%s: %d repositories\n", path, len(repos))
		for _, r := range repos {
			if r.Label != "" {
				fmt.Fprintf(out, "  %s (%s)\n", r.Path, r.Label)
				continue
			}
			fmt.Fprintf(out, "  %s\n", r.Path)
		}
	}
	return nil
}
