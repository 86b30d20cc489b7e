package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordOutcome("ok")
	m.RecordOutcome("ok")
	m.RecordOutcome("error")
	m.PrimariesCreated.Inc()
	m.ClusterMerges.Inc()
	m.IdentifyDuration.Observe(0.01)

	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.IdentifyRequests.WithLabelValues("ok")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.IdentifyRequests.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PrimariesCreated))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewIsolatedRegistries(t *testing.T) {
	// Two instances on separate registries must not collide.
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())

	a.TxRetries.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(a.TxRetries))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.TxRetries))
}
