// pkg/exporter_cli/wrap.go

package exporter_cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_err"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RunFunc is the signature of every exporter command body.
type RunFunc func(rc *exporter_io.RuntimeContext, cmd *cobra.Command, args []string) error

// Wrap ensures panic recovery, telemetry, logging and cancellation on
// SIGINT/SIGTERM for a cobra RunE.
func Wrap(fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		sigCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
		defer stop()

		rc := exporter_io.NewContext(sigCtx, cmd.Name())
		defer rc.End(&err)
		defer rc.HandlePanic(&err)

		rc.Log.Debug("Command started",
			zap.String("command", cmd.CommandPath()),
			zap.Strings("args", args))

		err = fn(rc, cmd, args)
		if err != nil && !exporter_err.IsExpectedUserError(err) {
			err = cerr.WithStack(err)
		}
		return err
	}
}
