// pkg/exporter_io/context.go

package exporter_io

import (
	"context"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_err"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// RuntimeContext carries everything a command needs: a cancellable context
// with the command span, a named logger and the start time.
type RuntimeContext struct {
	Ctx        context.Context
	Log        *zap.Logger
	Timestamp  time.Time
	Span       trace.Span
	Command    string
	Component  string
	Attributes map[string]string
}

// NewContext sets up tracing and logging for one command invocation.
func NewContext(parent context.Context, cmdName string) *RuntimeContext {
	ctx, span := telemetry.Start(parent, cmdName)
	traceID := span.SpanContext().TraceID().String()

	comp := resolveComponent(2)
	log := logger.GetLogger().With(
		zap.String("component", comp),
		zap.String("action", cmdName),
		zap.String("trace_id", traceID),
	).Named(comp)

	// package code logs through otelzap.Ctx(ctx)
	otelzap.ReplaceGlobals(otelzap.New(log))

	return &RuntimeContext{
		Ctx:        ctx,
		Span:       span,
		Log:        log,
		Timestamp:  time.Now(),
		Component:  comp,
		Command:    cmdName,
		Attributes: make(map[string]string),
	}
}

// HandlePanic recovers panics, logs them, and converts to an error.
func (rc *RuntimeContext) HandlePanic(errPtr *error) {
	if r := recover(); r != nil {
		*errPtr = cerr.AssertionFailedf("panic: %v", r)
		rc.Log.Error("panic recovered", zap.Any("panic", r))
	}
}

// End logs the outcome, records it on the command span and ends the span.
func (rc *RuntimeContext) End(errPtr *error) {
	defer rc.Span.End()

	duration := time.Since(rc.Timestamp)
	var err error
	if errPtr != nil {
		err = *errPtr
	}

	if err == nil {
		rc.Log.Info("Command completed", zap.Duration("duration", duration))
	} else if exporter_err.IsExpectedUserError(err) {
		rc.Log.Warn("Command stopped", zap.Duration("duration", duration), zap.Error(err))
	} else {
		rc.Log.Error("Command failed", zap.Duration("duration", duration), zap.Error(err))
		rc.Span.RecordError(err)
		rc.Span.SetStatus(codes.Error, err.Error())
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("success", err == nil),
		attribute.Int64("duration_ms", duration.Milliseconds()),
		attribute.String("os", runtime.GOOS),
		attribute.String("args", truncateArgs(os.Args[1:])),
		attribute.String("version", Version),
		attribute.String("error_type", classifyError(err)),
	}
	for k, v := range rc.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	rc.Span.SetAttributes(attrs...)
}

// ––––––––––––––––––––––––––––––––––––––––––––––––––––––––––––––––––––––––
// Helper functions
// ––––––––––––––––––––––––––––––––––––––––––––––––––––––––––––––––––––––––

func resolveComponent(skip int) string {
	_, file, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	parts := strings.Split(file, "/")
	if len(parts) < 2 {
		return "unknown"
	}
	return parts[len(parts)-2]
}

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if exporter_err.IsExpectedUserError(err) {
		return "user"
	}
	return "system"
}

func truncateArgs(args []string) string {
	full := strings.Join(args, " ")
	if len(full) > 256 {
		return full[:256] + "..."
	}
	return full
}
