// pkg/execute/execute.go

// Package execute runs external programs for the exporter. Commands are
// always executed from an argv, never through /bin/sh; stdout is captured
// for parsing and stderr is kept for error summaries.
package execute

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_err"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Options describes one command execution.
type Options struct {
	Command string
	Args    []string
	Dir     string
	// Env is appended to the current process environment.
	Env []string
	// Timeout bounds the execution. Zero means no timeout.
	Timeout time.Duration
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Run executes a command and returns its captured output. A non-zero exit
// status, a missing binary or an expired timeout is returned as an error; the
// Result is still populated with whatever was captured.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := otelzap.Ctx(ctx)
	cmdStr := buildCommandString(opts.Command, opts.Args...)

	if opts.Command == "" {
		return &Result{}, cerr.New("no command given")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ctx, span := telemetry.Start(ctx, "execute.Run",
		attribute.String("command", opts.Command),
		attribute.String("args", strings.Join(opts.Args, " ")),
	)
	defer span.End()

	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Starting execution", zap.String("command", cmdStr))

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		summary := exporter_err.ExtractSummary(stderr.String(), 2)
		logger.Error("Execution failed",
			zap.String("command", cmdStr),
			zap.String("summary", summary),
			zap.Duration("duration", res.Duration),
			zap.Error(err))
		return res, wrapExecError(ctx, err, opts.Command, cmdStr, summary)
	}

	span.SetAttributes(attribute.Int("stdout_bytes", len(res.Stdout)))
	logger.Debug("Execution succeeded",
		zap.String("command", cmdStr),
		zap.Duration("duration", res.Duration),
		zap.Int("output_bytes", len(res.Stdout)))

	return res, nil
}

func wrapExecError(ctx context.Context, err error, command, cmdStr, summary string) error {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return exporter_err.NewDependencyError(command, "metric collection", err,
			"Install "+command+" or point borgmatic_binary at it")
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return cerr.WithHint(cerr.Wrapf(err, "%s timed out", cmdStr), "raise command_timeout or investigate the hung repository")
	default:
		return cerr.Wrapf(err, "%s: %s", cmdStr, summary)
	}
}
