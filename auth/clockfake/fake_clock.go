package clockfake

import (
	"sort"
	"sync"
	"time"

	"github.com/gigan-store/session-client/auth"
)

var _ auth.Clock = (*FakeClock)(nil)

// FakeClock only moves when told to. Timers fire synchronously from Advance,
// in deadline order, on the calling goroutine.
type FakeClock struct {
	lock   sync.Mutex
	now    time.Time
	timers []*fakeTimer
	fired  int
}

type fakeTimer struct {
	clock *FakeClock
	at    time.Time
	f     func()
}

func New(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) auth.Timer {
	c.lock.Lock()
	defer c.lock.Unlock()

	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	sort.SliceStable(c.timers, func(i, j int) bool { return c.timers[i].at.Before(c.timers[j].at) })
	return t
}

// Advance moves the clock forward by d, firing every timer that falls due.
func (c *FakeClock) Advance(d time.Duration) {
	c.lock.Lock()
	target := c.now.Add(d)
	for len(c.timers) > 0 && !c.timers[0].at.After(target) {
		t := c.timers[0]
		c.timers = c.timers[1:]
		if t.at.After(c.now) {
			c.now = t.at
		}
		c.fired++
		c.lock.Unlock()
		t.f()
		c.lock.Lock()
	}
	c.now = target
	c.lock.Unlock()
}

// Jump moves the clock forward by d without firing timers, the way a
// suspended or throttled process sees time pass.
func (c *FakeClock) Jump(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *FakeClock) Pending() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.timers)
}

// Fired returns the number of timer callbacks run so far.
func (c *FakeClock) Fired() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.fired
}

func (t *fakeTimer) Stop() bool {
	c := t.clock
	c.lock.Lock()
	defer c.lock.Unlock()
	for i, x := range c.timers {
		if x == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}
