package metrics_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/metrics"
)

func TestNewNilRegistry(t *testing.T) {
	assert.Nil(t, metrics.New(nil))
}

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	require.NotNil(t, m)

	m.ObserveOpen("DAC", nil)
	m.ObserveOpen("DAC", nil)
	m.ObserveOpen("I2STX", errors.New("busy"))
	m.SetOpenSessions("DAC", 2)
	m.ObserveDMAEvent("DAC", "HF")
	m.ObservePhaseError("DAC")
	m.SetSharedClaims(aout.ResourceDACFifo, 1)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	series := make(map[string]int)
	for _, f := range families {
		names[f.GetName()] = true
		series[f.GetName()] = len(f.GetMetric())
	}

	for _, name := range []string{
		"aout_session_open_total",
		"aout_sessions_open",
		"aout_dma_events_total",
		"aout_reload_phase_errors_total",
		"aout_shared_claims",
	} {
		assert.True(t, names[name], name)
	}

	// DAC/ok and I2STX/error.
	assert.Equal(t, 2, series["aout_session_open_total"])
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)

	assert.Panics(t, func() { metrics.New(reg) })
}
