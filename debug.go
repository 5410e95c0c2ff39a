package aout

import (
	"encoding/hex"
	"time"

	"github.com/gen2brain/aout/internal/logger"
)

// debugPerf updates the performance statistics and the buffer dump of a session.
// It must be called with mu held.
func (m *Manager) debugPerf(s *session, buf []byte) {
	d := &s.debug

	if d.performance {
		now := time.Now()
		if d.timestamp.IsZero() {
			d.timestamp = now
		}

		d.perSecondSize += len(buf)
		if elapsed := now.Sub(d.timestamp); elapsed >= time.Second {
			logger.Info("session throughput", append(s.logArgs(),
				"bytes_per_sec", int(float64(d.perSecondSize)/elapsed.Seconds()))...)
			d.perSecondSize = 0
			d.timestamp = now
		}
	}

	if d.dumpLen > 0 && len(buf) > 0 {
		n := min(d.dumpLen, len(buf))
		logger.Debug("session buffer", append(s.logArgs(), "len", n, "dump", hex.Dump(buf[:n]))...)
	}
}

// setDebugPerformance must be called with mu held.
func setDebugPerformance(s *session, enable bool) {
	s.debug = debugState{performance: enable}
}

// debugAll applies fn to every open session.
func (m *Manager) debugAll(fn func(s *session)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reg.each(fn)
}
