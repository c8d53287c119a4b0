package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersAndCounts(t *testing.T) {
	m := NewMetrics()

	m.CyclesTotal.WithLabelValues("ok").Inc()
	m.TradesTotal.WithLabelValues("BUY").Add(2)
	m.PortfolioValue.Set(10500)
	m.DrawdownPct.Set(-3.2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TradesTotal.WithLabelValues("BUY")))
	assert.Equal(t, 10500.0, testutil.ToFloat64(m.PortfolioValue))
	assert.Equal(t, -3.2, testutil.ToFloat64(m.DrawdownPct))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := NewMetrics()
	b := NewMetrics()
	a.CyclesTotal.WithLabelValues("ok").Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CyclesTotal.WithLabelValues("ok")))
}
