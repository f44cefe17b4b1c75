package room

import (
	"sync"
	"time"

	"github.com/wfunc/picword/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeScheduler records timers and fires them on demand. Callbacks are kept
// after removal so tests can simulate a timer that raced its cancellation.
type fakeScheduler struct {
	mu       sync.Mutex
	next     int64
	armed    map[int64]func()
	seen     map[int64]func()
	delays   map[int64]time.Duration
	removals int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		armed:  make(map[int64]func()),
		seen:   make(map[int64]func()),
		delays: make(map[int64]time.Duration),
	}
}

func (s *fakeScheduler) AddTimer(delay, interval time.Duration, cb func()) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.armed[s.next] = cb
	s.seen[s.next] = cb
	s.delays[s.next] = delay
	return s.next
}

func (s *fakeScheduler) RemoveTimer(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.armed[id]; ok {
		s.removals++
	}
	delete(s.armed, id)
}

func (s *fakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.armed)
}

func (s *fakeScheduler) LastID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Fire runs timer id, whether or not it was removed.
func (s *fakeScheduler) Fire(id int64) {
	s.mu.Lock()
	cb := s.seen[id]
	delete(s.armed, id)
	s.mu.Unlock()
	if cb != nil {
		cb()
	}
}

type recordingLedger struct {
	mu      sync.Mutex
	entries []models.ScoreEntry
}

func (l *recordingLedger) Append(e models.ScoreEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

func (l *recordingLedger) Entries() []models.ScoreEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.ScoreEntry(nil), l.entries...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) Count(typ string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Type == typ {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) Last(typ string) (Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events) - 1; i >= 0; i-- {
		if n.events[i].Type == typ {
			return n.events[i], true
		}
	}
	return Event{}, false
}

type harness struct {
	clock     *fakeClock
	scheduler *fakeScheduler
	ledger    *recordingLedger
	notifier  *recordingNotifier
}

func newHarness() *harness {
	return &harness{
		clock:     newFakeClock(),
		scheduler: newFakeScheduler(),
		ledger:    &recordingLedger{},
		notifier:  &recordingNotifier{},
	}
}

func (h *harness) options(extra ...Option) []Option {
	return append([]Option{
		WithClock(h.clock.Now),
		WithScheduler(h.scheduler),
		WithLedger(h.ledger),
		WithNotifier(h.notifier),
	}, extra...)
}

func (h *harness) room(capacity int, extra ...Option) *Room {
	return NewRoom("ROOM_TEST", capacity, h.options(extra...)...)
}

func testRounds() []models.Round {
	return []models.Round{
		{Word: "sol", Images: []string{"sun1.png", "sun2.png", "sun3.png", "sun4.png"}, TimeLimit: 30},
		{Word: "luna", Images: []string{"moon1.png", "moon2.png", "moon3.png", "moon4.png"}, TimeLimit: 20},
	}
}
