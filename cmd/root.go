/* cmd/root.go */

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/cmd/check"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/cmd/collect"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/cmd/serve"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/config"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_cli"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_err"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_io"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var shutdownTelemetry func(context.Context) error

// RootCmd is the base command for borgmatic-exporter.
var RootCmd = &cobra.Command{
	Use:   "borgmatic-exporter",
	Short: "Prometheus exporter for borgmatic repositories",
	Long: `borgmatic-exporter runs "borgmatic info" and "borgmatic list" for each
configured borgmatic config and publishes repository and last-backup
statistics as Prometheus gauges.`,
	Version:       exporter_io.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		shutdown, err := exporter_cli.Setup(cmd)
		if err != nil {
			return err
		}
		shutdownTelemetry = shutdown
		return nil
	},
	RunE: exporter_cli.Wrap(func(rc *exporter_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		fmt.Fprintln(os.Stderr, "No subcommand provided. Try `borgmatic-exporter help`.")
		return cli.ShowHelp(cmd)
	}),
}

func init() {
	pf := RootCmd.PersistentFlags()
	cli.AddStringFlag(pf, "config-file", "", "", "Exporter config file (YAML)", false)
	cli.AddStringFlag(pf, "log-level", "", "info", "Log level: debug, info, warn, error", false)
	cli.AddStringSliceFlag(pf, "borgmatic-config", "c", config.DefaultBorgmaticConfigs, "borgmatic config files or glob patterns")
	cli.AddStringFlag(pf, "borgmatic-binary", "", "borgmatic", `borgmatic executable, optionally with a wrapper ("sudo -n borgmatic")`, false)
	cli.AddDurationFlag(pf, "command-timeout", 0, "Timeout for each borgmatic command (0 disables)")
	cli.AddStringFlag(pf, "env-file", "", "", "File with KEY=VALUE pairs for the borgmatic environment (BORG_PASSPHRASE, ...)", false)
	cli.AddBoolFlag(pf, "telemetry-enabled", "", false, "Write trace spans to a JSONL file")
	cli.AddStringFlag(pf, "telemetry-path", "", "", "Trace span file (default: under the temp directory)", false)
}

// RegisterCommands adds all subcommands to the root command.
func RegisterCommands() {
	if RootCmd.HasSubCommands() {
		return
	}
	for _, subCmd := range []*cobra.Command{
		serve.ServeCmd,
		collect.CollectCmd,
		check.CheckCmd,
	} {
		RootCmd.AddCommand(subCmd)
	}
}

// Execute runs the root command and exits with the error's exit code.
func Execute() {
	RegisterCommands()

	err := RootCmd.Execute()

	if shutdownTelemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if serr := shutdownTelemetry(ctx); serr != nil {
			logger.L().Warn("Failed to flush traces", zap.Error(serr))
		}
		cancel()
	}
	if serr := logger.Sync(); serr != nil {
		fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", serr)
	}

	if err != nil {
		if exporter_err.IsExpectedUserError(err) {
			logger.L().Warn("Command completed with user error", zap.Error(err))
		} else {
			logger.L().Error("Command failed", zap.Error(err))
		}
		os.Exit(exporter_err.GetExitCode(err))
	}
}
