package wsevents

import (
	"testing"
	"time"
)

func newRegistryClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(Options{URL: "ws://unused.invalid", Token: "t", Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestListenerRegistration(t *testing.T) {
	t.Parallel()

	c := newRegistryClient(t)
	id1 := c.On("posted", func(Event) {})
	id2 := c.On("posted", func(Event) {})
	c.On("typing", func(Event) {})

	if got := c.ListenerCount("posted"); got != 2 {
		t.Fatalf("posted count mismatch: got %d want 2", got)
	}
	if got := c.EventNames(); len(got) != 2 || got[0] != "posted" || got[1] != "typing" {
		t.Fatalf("event names mismatch: got %v", got)
	}

	c.Off("posted", id1)
	if got := c.ListenerCount("posted"); got != 1 {
		t.Fatalf("posted count after Off mismatch: got %d want 1", got)
	}
	c.Off("posted", id2)
	if got := c.EventNames(); len(got) != 1 || got[0] != "typing" {
		t.Fatalf("event names after removal mismatch: got %v", got)
	}

	c.RemoveListeners("typing")
	if got := len(c.EventNames()); got != 0 {
		t.Fatalf("event names after RemoveListeners mismatch: got %d want 0", got)
	}

	c.On("a", func(Event) {})
	c.On("b", func(Event) {})
	c.RemoveAllListeners()
	if got := len(c.EventNames()); got != 0 {
		t.Fatalf("event names after RemoveAllListeners mismatch: got %d want 0", got)
	}
}

func TestOnceRunsExactlyOnce(t *testing.T) {
	t.Parallel()

	c := newRegistryClient(t)
	calls := 0
	c.Once("posted", func(Event) { calls++ })

	c.dispatch(Event{Name: "posted", ReceivedAt: time.Now()})
	c.dispatch(Event{Name: "posted", ReceivedAt: time.Now()})

	if calls != 1 {
		t.Fatalf("calls mismatch: got %d want 1", calls)
	}
	if got := c.ListenerCount("posted"); got != 0 {
		t.Fatalf("listener count mismatch: got %d want 0", got)
	}
}

func TestDispatchIsolatesPanickingListener(t *testing.T) {
	t.Parallel()

	c := newRegistryClient(t)
	var order []string
	c.On("posted", func(Event) { order = append(order, "first") })
	c.On("posted", func(Event) { panic("listener exploded") })
	c.On("posted", func(Event) { order = append(order, "third") })
	c.On(Wildcard, func(Event) { order = append(order, "wildcard") })

	c.dispatch(Event{Name: "posted"})

	want := []string{"first", "third", "wildcard"}
	if len(order) != len(want) {
		t.Fatalf("invocation count mismatch: got %v want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("invocation order mismatch: got %v want %v", order, want)
		}
	}
}

func TestDispatchIteratesSnapshot(t *testing.T) {
	t.Parallel()

	c := newRegistryClient(t)
	lateCalls := 0
	c.On("posted", func(Event) {
		// Registered mid-dispatch: must not run for this event.
		c.On("posted", func(Event) { lateCalls++ })
	})
	c.dispatch(Event{Name: "posted"})
	if lateCalls != 0 {
		t.Fatalf("late listener ran during its own registration dispatch: calls = %d", lateCalls)
	}

	c.dispatch(Event{Name: "posted"})
	if lateCalls != 1 {
		t.Fatalf("late listener calls mismatch: got %d want 1", lateCalls)
	}
}

func TestListenerUnregisteringItselfDuringDispatch(t *testing.T) {
	t.Parallel()

	c := newRegistryClient(t)
	var id uint64
	calls := 0
	id = c.On("posted", func(Event) {
		calls++
		c.Off("posted", id)
	})
	c.dispatch(Event{Name: "posted"})
	c.dispatch(Event{Name: "posted"})
	if calls != 1 {
		t.Fatalf("calls mismatch: got %d want 1", calls)
	}
}
