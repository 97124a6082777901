// pkg/metrics/collect.go

package metrics

import (
	"context"
	"time"

	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/borgmatic"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/exporter_err"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/borgmatic-exporter/pkg/telemetry"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Source produces the per-repository reports for one borgmatic config.
type Source interface {
	Collect(ctx context.Context, config string) (*borgmatic.Collection, error)
}

// Result summarises one collection pass.
type Result struct {
	TraceID      string
	Configs      int
	Repositories int
	Duration     time.Duration
}

// Collector runs collection passes into a fixed set of gauges.
type Collector struct {
	source  Source
	metrics *Metrics
}

// NewCollector returns a collector writing into m.
func NewCollector(source Source, m *Metrics) *Collector {
	return &Collector{source: source, metrics: m}
}

// Collect queries every config in order and updates the gauges.
//
// A borgmatic command failure stops the pass at that config; gauges of
// configs already processed keep their new values. Output problems only skip
// the affected repository and are returned together once the pass finishes.
func (c *Collector) Collect(ctx context.Context, configs []string) (*Result, error) {
	start := time.Now()
	res := &Result{TraceID: logger.GenerateTraceID()}

	ctx, span := telemetry.Start(ctx, "metrics.Collect",
		attribute.String("trace_id", res.TraceID),
		attribute.Int("configs", len(configs)))
	defer span.End()

	log := otelzap.Ctx(ctx)
	log.Debug("Starting collection pass",
		zap.String("trace_id", res.TraceID),
		zap.Strings("configs", configs))

	var problems *multierror.Error
	for _, config := range configs {
		col, err := c.source.Collect(ctx, config)
		if err != nil {
			res.Duration = time.Since(start)
			span.RecordError(err)
			span.SetStatus(codes.Error, "borgmatic command failed")
			log.Error("Collection pass aborted",
				zap.String("trace_id", res.TraceID),
				zap.String("config", config),
				zap.Error(err))
			return res, exporter_err.NewCollectionError("collection pass aborted at "+config, err)
		}

		res.Configs++
		for _, report := range col.Reports {
			c.metrics.Apply(report)
			res.Repositories++
		}
		for _, p := range col.Problems {
			log.Warn("Skipping repository with unusable borgmatic output",
				zap.String("trace_id", res.TraceID),
				zap.String("config", config),
				zap.Error(p))
			problems = multierror.Append(problems, p)
		}
	}

	res.Duration = time.Since(start)
	span.SetAttributes(attribute.Int("repositories", res.Repositories))

	if err := problems.ErrorOrNil(); err != nil {
		span.SetStatus(codes.Error, "repositories skipped")
		return res, err
	}

	log.Info("Collection pass completed",
		zap.String("trace_id", res.TraceID),
		zap.Int("configs", res.Configs),
		zap.Int("repositories", res.Repositories),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// Collect registers the gauges with reg if needed and runs one pass.
func Collect(ctx context.Context, reg prometheus.Registerer, source Source, configs []string) (*Result, error) {
	m, err := CreateMetrics(reg)
	if err != nil {
		return nil, err
	}
	return NewCollector(source, m).Collect(ctx, configs)
}
