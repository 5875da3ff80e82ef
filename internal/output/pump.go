package output

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/zjrosen/omniedit/internal/log"
)

// DefaultInterval is how often a Pump drains its channel.
const DefaultInterval = 300 * time.Millisecond

// Sink receives drained text. A Pump calls it only from the goroutine
// running Pump.Run, and never with an empty string.
type Sink func(text string)

// PumpOption configures a Pump.
type PumpOption func(*Pump)

// WithInterval sets the drain interval. Non-positive values keep the default.
func WithInterval(d time.Duration) PumpOption {
	return func(p *Pump) {
		if d > 0 {
			p.interval = d
		}
	}
}

// PumpStats counts what a Pump has delivered.
type PumpStats struct {
	Deliveries int64
	Bytes      int64
}

// Pump periodically moves text from a Channel to a Sink.
type Pump struct {
	ch       *Channel
	sink     Sink
	interval time.Duration

	deliveries atomic.Int64
	bytes      atomic.Int64
}

// NewPump creates a pump for ch. A nil sink discards output.
func NewPump(ch *Channel, sink Sink, opts ...PumpOption) *Pump {
	if sink == nil {
		sink = func(string) {}
	}
	p := &Pump{ch: ch, sink: sink, interval: DefaultInterval}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the drain interval.
func (p *Pump) Interval() time.Duration {
	return p.interval
}

// Run drains the channel every interval until ctx is done, then drains one
// last time so nothing appended before cancellation is lost.
func (p *Pump) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.flush()
			log.Debug(log.CatPump, "pump stopped",
				"deliveries", p.deliveries.Load(),
				"bytes", p.bytes.Load())
			return
		case <-ticker.C:
			p.flush()
		}
	}
}

// Stats returns delivery counters. Safe to call concurrently with Run.
func (p *Pump) Stats() PumpStats {
	return PumpStats{
		Deliveries: p.deliveries.Load(),
		Bytes:      p.bytes.Load(),
	}
}

func (p *Pump) flush() {
	text := p.ch.DrainAndClear()
	if text == "" {
		return
	}
	p.sink(text)
	p.deliveries.Add(1)
	p.bytes.Add(int64(len(text)))
}
