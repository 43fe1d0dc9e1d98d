package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/promptpack/internal/exchange"
	"github.com/fyrsmithlabs/promptpack/internal/project"
	"github.com/fyrsmithlabs/promptpack/internal/tree"
)

func TestMetrics_RecordInvocation(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newMetrics(mp.Meter(instrumentationName), nil)

	ctx := context.Background()
	m.RecordInvocation(ctx, "node_add", 10*time.Millisecond, nil)
	m.RecordInvocation(ctx, "node_add", 5*time.Millisecond, tree.ErrDuplicateName)

	done := m.track(ctx, "tree_show")
	var err error
	done(&err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if sum, ok := metric.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[metric.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(3), totals["promptpack.mcp.tool.invocations_total"])
	assert.Equal(t, int64(1), totals["promptpack.mcp.tool.errors_total"])
	assert.Equal(t, int64(0), totals["promptpack.mcp.tool.active_requests"])
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("x: %w", project.ErrProjectNotFound), "not_found"},
		{tree.ErrNotAFile, "not_found"},
		{tree.ErrDuplicateName, "conflict"},
		{project.ErrLastProject, "conflict"},
		{tree.ErrCycle, "validation_error"},
		{errInvalidArgument, "validation_error"},
		{fmt.Errorf("%w: %w", exchange.ErrInvalidDocument, tree.ErrDuplicateName), "invalid_document"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorizeError(tt.err), "%v", tt.err)
	}
}
