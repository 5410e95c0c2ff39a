// Package metrics implements aout.Metrics on top of Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gen2brain/aout"
)

const namespace = "aout"

// sessionMetrics is the Prometheus implementation of aout.Metrics.
type sessionMetrics struct {
	opens        *prometheus.CounterVec
	closes       *prometheus.CounterVec
	openSessions *prometheus.GaugeVec
	dmaEvents    *prometheus.CounterVec
	phaseErrors  *prometheus.CounterVec
	sharedClaims *prometheus.GaugeVec
}

var _ aout.Metrics = (*sessionMetrics)(nil)

// New registers the session manager collectors on reg and returns them as aout.Metrics.
//
// Returns nil when reg is nil, which disables collection in the manager.
func New(reg prometheus.Registerer) aout.Metrics {
	if reg == nil {
		return nil
	}

	return &sessionMetrics{
		opens: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_open_total",
				Help:      "Session open requests by channel type and result",
			},
			[]string{"channel", "result"},
		),
		closes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_close_total",
				Help:      "Session close requests by channel type and result",
			},
			[]string{"channel", "result"},
		),
		openSessions: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_open",
				Help:      "Currently open sessions by primary channel type",
			},
			[]string{"channel"},
		),
		dmaEvents: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dma_events_total",
				Help:      "DMA events forwarded to session callbacks",
			},
			[]string{"channel", "reason"}, // "HF", "TC"
		),
		phaseErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reload_phase_errors_total",
				Help:      "Reload events received out of the HF, TC order",
			},
			[]string{"channel"},
		),
		sharedClaims: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "shared_claims",
				Help:      "Holders of shared physical resources",
			},
			[]string{"resource"}, // "dac_fifo", "dac_128fs"
		),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}

func (m *sessionMetrics) ObserveOpen(channel string, err error) {
	m.opens.WithLabelValues(channel, result(err)).Inc()
}

func (m *sessionMetrics) ObserveClose(channel string, err error) {
	m.closes.WithLabelValues(channel, result(err)).Inc()
}

func (m *sessionMetrics) SetOpenSessions(channel string, n int) {
	m.openSessions.WithLabelValues(channel).Set(float64(n))
}

func (m *sessionMetrics) ObserveDMAEvent(channel string, reason string) {
	m.dmaEvents.WithLabelValues(channel, reason).Inc()
}

func (m *sessionMetrics) ObservePhaseError(channel string) {
	m.phaseErrors.WithLabelValues(channel).Inc()
}

func (m *sessionMetrics) SetSharedClaims(resource string, n int) {
	m.sharedClaims.WithLabelValues(resource).Set(float64(n))
}
