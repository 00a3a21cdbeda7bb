package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.GameScored("ranked")
	c.GameScored("ranked")
	c.GameScored("casual")
	c.GameVoided()
	c.Rejected("void")
	c.PlayerFailure("score")
	c.PlatformError("permission")
	c.ObserveReconcile(20 * time.Millisecond)
	c.Teardown("done")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.gamesScored.WithLabelValues("ranked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.gamesVoided))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.platformErrors.WithLabelValues("permission")))

	n, err := testutil.GatherAndCount(reg, "rankedbedwars_reconcile_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCollectors_NilIsNoop(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.GameScored("ranked")
		c.GameVoided()
		c.Rejected("score")
		c.PlayerFailure("void")
		c.PlatformError("timeout")
		c.ObserveReconcile(time.Second)
		c.Teardown("failed")
	})
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	NewFromRegistry(reg)
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
