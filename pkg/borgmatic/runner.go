// pkg/borgmatic/runner.go

package borgmatic

import (
	"context"
	"encoding/json"
	"time"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/jsonstream"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Runner executes a command and returns the JSON documents on its stdout.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]json.RawMessage, error)
}

// ExecRunner runs commands as subprocesses.
type ExecRunner struct {
	// Timeout bounds each command. Zero means a hung command blocks until
	// the context is cancelled.
	Timeout time.Duration
	// Env is added to the inherited environment.
	Env []string
}

// NewExecRunner returns a Runner backed by real subprocesses.
func NewExecRunner(timeout time.Duration, env ...string) *ExecRunner {
	return &ExecRunner{Timeout: timeout, Env: env}
}

// Run executes cmd and decodes its stdout as a stream of JSON documents.
// Malformed trailing output is dropped; an empty result is not an error.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) ([]json.RawMessage, error) {
	res, err := execute.Run(ctx, execute.Options{
		Command: cmd.Name,
		Args:    cmd.Args,
		Env:     r.Env,
		Timeout: r.Timeout,
	})
	if err != nil {
		return nil, err
	}

	docs := jsonstream.Decode(res.Stdout)
	otelzap.Ctx(ctx).Debug("Decoded command output",
		zap.String("command", cmd.String()),
		zap.Int("documents", len(docs)),
		zap.Int("output_bytes", len(res.Stdout)))
	return docs, nil
}

// RunCommandLine runs a command given as one string. The line is split on
// whitespace with quotes kept verbatim and executed directly, not by a shell.
func RunCommandLine(ctx context.Context, runner Runner, line string) ([]json.RawMessage, error) {
	argv, err := execute.SplitFields(line)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx, Command{Name: argv[0], Args: argv[1:]})
}

// TextRunner is implemented by runners that can return raw stdout, for
// commands that do not print JSON.
type TextRunner interface {
	Output(ctx context.Context, cmd Command) ([]byte, error)
}

// Output executes cmd and returns its stdout unparsed.
func (r *ExecRunner) Output(ctx context.Context, cmd Command) ([]byte, error) {
	res, err := execute.Run(ctx, execute.Options{
		Command: cmd.Name,
		Args:    cmd.Args,
		Env:     r.Env,
		Timeout: r.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return res.Stdout, nil
}
