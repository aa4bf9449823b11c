package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveHostSetsExactlyOneRoleGauge(t *testing.T) {
	c := NewCollector()
	c.ObserveHost(0, "r1", "sync_slave", 1234)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.role.WithLabelValues("0", "r1", "sync_slave")))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.role.WithLabelValues("0", "r1", "master")))
	assert.Equal(t, float64(1234), testutil.ToFloat64(c.rtt.WithLabelValues("0", "r1")))
}

func TestObserveHostNoneDeletesRtt(t *testing.T) {
	c := NewCollector()
	c.ObserveHost(1, "r2", "slave", 500)
	c.ObserveHost(1, "r2", "none", 0)

	assert.Equal(t, float64(0), testutil.ToFloat64(c.role.WithLabelValues("1", "r2", "slave")))
	assert.Equal(t, 0, testutil.CollectAndCount(c.rtt))
}

func TestIncProbeFailure(t *testing.T) {
	c := NewCollector()
	c.IncProbeFailure(3)
	c.IncProbeFailure(3)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.probeFailures.WithLabelValues("3")))
}
