// Package progress cycles decorative phase labels while a conversion is in
// flight. The labels are time driven; the backend reports no real progress.
package progress

import (
	"sync"
	"time"
)

// Interval is how long each phase label is shown.
const Interval = 4 * time.Second

// Phase labels in display order.
var Labels = []string{
	"Uploading PDF...",
	"AI is analyzing the content (about 30 seconds)...",
	"Generating PPTX slides...",
}

// Ticker is the subset of *time.Ticker the presenter needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// Option configures a Presenter.
type Option func(*Presenter)

// WithTicker replaces the real ticker, for tests.
func WithTicker(f TickerFactory) Option {
	return func(p *Presenter) { p.newTicker = f }
}

// WithInterval changes the phase duration.
func WithInterval(d time.Duration) Option {
	return func(p *Presenter) { p.interval = d }
}

// Presenter advances through Labels while active and wraps around after the
// last one. Deactivating stops the timer and resets to the first phase.
type Presenter struct {
	onLabel   func(string)
	newTicker TickerFactory
	interval  time.Duration

	mu     sync.Mutex
	active bool
	closed bool
	phase  int
	gen    int
	stop   chan struct{}
	done   chan struct{}
}

// New creates an inactive Presenter. onLabel is called with the current
// label on activation and on every advance; it may be nil.
func New(onLabel func(string), opts ...Option) *Presenter {
	p := &Presenter{
		onLabel:   onLabel,
		newTicker: newTimeTicker,
		interval:  Interval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Label returns the label of the current phase.
func (p *Presenter) Label() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Labels[p.phase]
}

// Phase returns the index of the current phase.
func (p *Presenter) Phase() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Active reports whether the timer is running.
func (p *Presenter) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// SetActive starts or stops the cycle. Repeating the current value is a
// no-op. When SetActive(false) returns, no further labels are emitted.
func (p *Presenter) SetActive(active bool) {
	if active {
		p.start()
	} else {
		p.halt()
	}
}

// Close stops the timer for good. Later SetActive calls do nothing.
func (p *Presenter) Close() {
	p.halt()
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *Presenter) start() {
	p.mu.Lock()
	if p.active || p.closed {
		p.mu.Unlock()
		return
	}
	p.active = true
	p.phase = 0
	p.gen++
	gen := p.gen
	stop, done := make(chan struct{}), make(chan struct{})
	p.stop, p.done = stop, done
	ticker := p.newTicker(p.interval)
	p.mu.Unlock()

	p.emit(Labels[0])
	go p.run(gen, ticker, stop, done)
}

func (p *Presenter) halt() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.active = false
	p.phase = 0
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	close(stop)
	<-done
}

func (p *Presenter) run(gen int, ticker Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			p.mu.Lock()
			if !p.active || p.gen != gen {
				p.mu.Unlock()
				return
			}
			p.phase = (p.phase + 1) % len(Labels)
			label := Labels[p.phase]
			p.mu.Unlock()
			p.emit(label)
		}
	}
}

func (p *Presenter) emit(label string) {
	if p.onLabel != nil {
		p.onLabel(label)
	}
}
