package repofake

import (
	"context"
	"sync"

	"github.com/gigan-store/session-client/internal/errors"
	"github.com/gigan-store/session-client/sessions"
	"github.com/gigan-store/session-client/storage"
	"github.com/google/uuid"
)

const Key = "auth-session"

// Hub is an in-memory durable medium shared by several tabs. Like browser
// storage, a write from one tab is announced to every other tab but not to
// the writer.
type Hub struct {
	lock   sync.Mutex
	value  []byte
	tabs   map[string]*FakeSessionRepo
	writes map[string]int
}

func NewHub() *Hub {
	return &Hub{
		tabs:   make(map[string]*FakeSessionRepo),
		writes: make(map[string]int),
	}
}

// Tab opens a new handle on the hub with its own origin.
func (h *Hub) Tab() *FakeSessionRepo {
	h.lock.Lock()
	defer h.lock.Unlock()

	r := &FakeSessionRepo{hub: h, origin: uuid.New().String()}
	h.tabs[r.origin] = r
	return r
}

// Writes returns how many times the tab with origin has written.
func (h *Hub) Writes(origin string) int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.writes[origin]
}

// Value returns the raw stored value.
func (h *Hub) Value() []byte {
	h.lock.Lock()
	defer h.lock.Unlock()
	return append([]byte(nil), h.value...)
}

// Seed stores raw without announcing it, like a value left by a previous run.
func (h *Hub) Seed(raw []byte) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.value = append([]byte(nil), raw...)
}

func (h *Hub) write(origin string, raw []byte) (old []byte, targets []*watcher) {
	h.lock.Lock()
	defer h.lock.Unlock()

	old = h.value
	h.value = raw
	h.writes[origin]++

	for o, tab := range h.tabs {
		if o == origin {
			continue
		}
		targets = append(targets, tab.snapshotWatchers()...)
	}
	return old, targets
}

var _ storage.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	hub      *Hub
	origin   string
	lock     sync.Mutex
	watchers []*watcher
	closed   bool
}

type watcher struct {
	ch     chan storage.Event
	done   <-chan struct{}
	quit   chan struct{}
	once   sync.Once
	lock   sync.Mutex
	closed bool
}

func (r *FakeSessionRepo) Origin() string {
	return r.origin
}

func (r *FakeSessionRepo) Load(ctx context.Context) (sessions.Message, error) {
	if r.isClosed() {
		return sessions.Message{}, errors.ErrStorageClosed
	}
	m, _, err := sessions.DecodeMessage(r.hub.Value())
	return m, err
}

func (r *FakeSessionRepo) Save(ctx context.Context, m sessions.Message) error {
	if r.isClosed() {
		return errors.ErrStorageClosed
	}
	m.Origin = r.origin
	raw, err := sessions.EncodeMessage(m)
	if err != nil {
		return err
	}

	old, targets := r.hub.write(r.origin, raw)
	for _, w := range targets {
		w.send(storage.Event{Key: Key, Old: old, New: raw, Message: m})
	}
	return nil
}

func (r *FakeSessionRepo) Watch(ctx context.Context) (<-chan storage.Event, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return nil, errors.ErrStorageClosed
	}

	w := &watcher{ch: make(chan storage.Event, 64), done: ctx.Done(), quit: make(chan struct{})}
	r.watchers = append(r.watchers, w)

	go func() {
		<-ctx.Done()
		r.removeWatcher(w)
	}()
	return w.ch, nil
}

func (r *FakeSessionRepo) Close() error {
	r.lock.Lock()
	r.closed = true
	watchers := r.watchers
	r.watchers = nil
	r.lock.Unlock()

	for _, w := range watchers {
		w.close()
	}

	r.hub.lock.Lock()
	delete(r.hub.tabs, r.origin)
	r.hub.lock.Unlock()
	return nil
}

func (r *FakeSessionRepo) isClosed() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.closed
}

func (r *FakeSessionRepo) snapshotWatchers() []*watcher {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]*watcher(nil), r.watchers...)
}

func (r *FakeSessionRepo) removeWatcher(w *watcher) {
	r.lock.Lock()
	for i, x := range r.watchers {
		if x == w {
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
	r.lock.Unlock()
	w.close()
}

func (w *watcher) send(ev storage.Event) {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.closed {
		return
	}
	select {
	case w.ch <- ev:
	case <-w.done:
	case <-w.quit:
	}
}

func (w *watcher) close() {
	w.once.Do(func() {
		close(w.quit)
		w.lock.Lock()
		defer w.lock.Unlock()
		w.closed = true
		close(w.ch)
	})
}
