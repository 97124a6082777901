// pkg/exporter_cli/setup.go

package exporter_cli

import (
	"context"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/borgmatic"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/config"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

type configKey struct{}

// Setup loads the configuration for cmd, reconfigures logging and tracing
// from it and stores it in the command context. The returned function
// flushes traces.
func Setup(cmd *cobra.Command) (func(context.Context) error, error) {
	v := config.New()
	if err := cli.BindFlagsToViper(cmd, v); err != nil {
		return nil, cerr.Wrap(err, "bind flags")
	}

	cfg, err := config.Load(v, cli.GetStringOrEmpty(cmd, "config-file"))
	if err != nil {
		return nil, err
	}

	logger.InitializeWithFallback(cfg.LogLevel)

	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	cmd.SetContext(WithConfig(parent, cfg))
	return shutdown, nil
}

// WithConfig returns a context carrying cfg.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFrom returns the configuration stored by Setup.
func ConfigFrom(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*config.Config)
	if !ok || cfg == nil {
		return nil, cerr.AssertionFailedf("configuration was not loaded for this command")
	}
	return cfg, nil
}

// NewClient builds the borgmatic client for cfg, with the env file applied
// to the subprocess environment.
func NewClient(cfg *config.Config) (*borgmatic.Client, error) {
	env, err := config.LoadEnvFile(cfg.EnvFile)
	if err != nil {
		return nil, err
	}
	runner := borgmatic.NewExecRunner(cfg.CommandTimeout, env...)
	return borgmatic.NewClient(runner, cfg.CommandSet()), nil
}
