package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNew_Singleton(t *testing.T) {
	assert.Same(t, New(), New())
}

func TestRecordOperation(t *testing.T) {
	m := New()
	ok := m.RegistryOperations.WithLabelValues("rename", ResultOK)
	failed := m.RegistryOperations.WithLabelValues("rename", ResultError)
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	m.RecordOperation("rename", nil)
	m.RecordOperation("rename", errors.New("boom"))
	m.RecordOperation("rename", nil)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

func TestRecordStorageWriteFailure(t *testing.T) {
	m := New()
	before := testutil.ToFloat64(m.StorageWriteFailures)
	m.RecordStorageWriteFailure()
	assert.Equal(t, before+1, testutil.ToFloat64(m.StorageWriteFailures))
}

func TestRecordPrompt(t *testing.T) {
	m := New()
	m.RecordPrompt(1024)
	assert.Equal(t, 1, testutil.CollectAndCount(m.PromptBytes))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOperation("create", nil)
		m.RecordStorageWriteFailure()
		m.RecordPrompt(10)
	})
}
