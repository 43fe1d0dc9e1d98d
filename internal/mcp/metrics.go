package mcp

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptpack/internal/exchange"
	"github.com/fyrsmithlabs/promptpack/internal/logging"
	"github.com/fyrsmithlabs/promptpack/internal/project"
	"github.com/fyrsmithlabs/promptpack/internal/tree"
)

const instrumentationName = "github.com/fyrsmithlabs/promptpack/internal/mcp"

// Metrics holds the tool invocation instruments.
type Metrics struct {
	meter          metric.Meter
	logger         *logging.Logger
	invocations    metric.Int64Counter
	duration       metric.Float64Histogram
	errors         metric.Int64Counter
	activeRequests metric.Int64UpDownCounter
}

// NewMetrics creates instruments on the global meter provider.
func NewMetrics(logger *logging.Logger) *Metrics {
	return newMetrics(otel.Meter(instrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *logging.Logger) *Metrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Metrics{meter: meter, logger: logger}
	m.init()
	return m
}

func (m *Metrics) init() {
	ctx := context.Background()
	var err error

	m.invocations, err = m.meter.Int64Counter(
		"promptpack.mcp.tool.invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create invocations counter", zap.Error(err))
	}

	m.duration, err = m.meter.Float64Histogram(
		"promptpack.mcp.tool.duration_seconds",
		metric.WithDescription("Duration of MCP tool invocations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create duration histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"promptpack.mcp.tool.errors_total",
		metric.WithDescription("Total number of MCP tool errors by reason"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create errors counter", zap.Error(err))
	}

	m.activeRequests, err = m.meter.Int64UpDownCounter(
		"promptpack.mcp.tool.active_requests",
		metric.WithDescription("Number of currently active MCP tool requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create active requests gauge", zap.Error(err))
	}
}

// track marks a tool call active and returns a func that records its
// outcome. Typical use: defer track(ctx, name)(&err).
func (m *Metrics) track(ctx context.Context, tool string) func(*error) {
	start := time.Now()
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	if m.activeRequests != nil {
		m.activeRequests.Add(ctx, 1, attrs)
	}
	return func(errp *error) {
		if m.activeRequests != nil {
			m.activeRequests.Add(ctx, -1, attrs)
		}
		var err error
		if errp != nil {
			err = *errp
		}
		m.RecordInvocation(ctx, tool, time.Since(start), err)
	}
}

// RecordInvocation records a tool invocation metric.
func (m *Metrics) RecordInvocation(ctx context.Context, tool string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{attribute.String("tool", tool)}

	if m.invocations != nil {
		m.invocations.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if err != nil && m.errors != nil {
		errorAttrs := append(attrs, attribute.String("reason", categorizeError(err)))
		m.errors.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
	}
}

// categorizeError maps registry errors onto a small label set.
func categorizeError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, exchange.ErrInvalidDocument):
		return "invalid_document"
	case errors.Is(err, project.ErrProjectNotFound),
		errors.Is(err, project.ErrNoActiveProject),
		errors.Is(err, tree.ErrNodeNotFound),
		errors.Is(err, tree.ErrNotAFile):
		return "not_found"
	case errors.Is(err, tree.ErrDuplicateName),
		errors.Is(err, project.ErrLastProject):
		return "conflict"
	case errors.Is(err, tree.ErrEmptyName),
		errors.Is(err, tree.ErrInvalidName),
		errors.Is(err, tree.ErrCycle),
		errors.Is(err, tree.ErrParentNotFound),
		errors.Is(err, tree.ErrParentNotFolder),
		errors.Is(err, tree.ErrInvalidOrder),
		errors.Is(err, tree.ErrInvalidNodeType),
		errors.Is(err, project.ErrEmptyProjectName),
		errors.Is(err, errInvalidArgument):
		return "validation_error"
	default:
		return "internal_error"
	}
}
