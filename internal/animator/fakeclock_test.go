package animator

import (
	"sync"
	"time"
)

// fakeClock delivers ticks at exact multiples of the ticker period as fast
// as the frame loop consumes them. In manual mode no ticks are sent.
type fakeClock struct {
	start  time.Time
	after  chan time.Time
	manual bool

	mu      sync.Mutex
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.start }

func (c *fakeClock) After(time.Duration) <-chan time.Time {
	if c.after != nil {
		return c.after
	}
	return make(chan time.Time)
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	t := &fakeTicker{c: make(chan time.Time), done: make(chan struct{})}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	if !c.manual {
		go t.run(c.start, d)
	}
	return t
}

type fakeTicker struct {
	c    chan time.Time
	done chan struct{}
	once sync.Once
}

func (t *fakeTicker) run(start time.Time, d time.Duration) {
	for i := 1; ; i++ {
		select {
		case t.c <- start.Add(time.Duration(i) * d):
		case <-t.done:
			return
		}
	}
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()               { t.once.Do(func() { close(t.done) }) }
