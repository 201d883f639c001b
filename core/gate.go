package core

import (
	"golang.org/x/time/rate"
)

// FlushGate caps how often accumulated answer text is forwarded to the
// consumer. Streaming backends can emit hundreds of deltas per second;
// flushing each one floods the rendering side, so deltas are coalesced and
// released through a token bucket. A cap of 0 or below disables the gate.
type FlushGate struct {
	lim *rate.Limiter
}

// DefaultFlushesPerSecond is the default forwarding cap for answer updates.
const DefaultFlushesPerSecond = 12

// NewFlushGate creates a gate allowing at most perSecond flushes per second
// with a burst of one. perSecond <= 0 allows every flush.
func NewFlushGate(perSecond float64) *FlushGate {
	if perSecond <= 0 {
		return &FlushGate{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &FlushGate{lim: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Allow reports whether a flush may happen now. Callers hold back the
// accumulated buffer on false and try again on the next delta; the final
// flush of a run must bypass the gate so the completed answer is never
// withheld.
func (g *FlushGate) Allow() bool {
	return g.lim.Allow()
}
