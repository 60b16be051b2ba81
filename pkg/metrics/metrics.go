// Package metrics captures per-chain timing for the proxy handlers.
package metrics

import "time"

// Chain captures the durations of one browser request's full path:
// browser <-> client <-> server <-> origin.
type Chain struct {
	Dial    time.Duration `json:"dial"`
	Embed   time.Duration `json:"embed"`
	Extract time.Duration `json:"extract"`
	Total   time.Duration `json:"total"`
}

// Timer accumulates a Chain's measurements as a request moves through a
// handler.
type Timer struct {
	start      time.Time
	dialStart  time.Time
	embedStart time.Time
	extrStart  time.Time
	chain      Chain
}

// NewTimer starts a new per-chain timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) StartDial()  { t.dialStart = time.Now() }
func (t *Timer) EndDial()    { t.chain.Dial = time.Since(t.dialStart) }
func (t *Timer) StartEmbed() { t.embedStart = time.Now() }
func (t *Timer) EndEmbed()   { t.chain.Embed += time.Since(t.embedStart) }
func (t *Timer) StartExtract() {
	t.extrStart = time.Now()
}
func (t *Timer) EndExtract() { t.chain.Extract += time.Since(t.extrStart) }

// Finish stops the timer and returns the completed Chain.
func (t *Timer) Finish() Chain {
	t.chain.Total = time.Since(t.start)
	return t.chain
}
