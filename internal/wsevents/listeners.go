package wsevents

import "sort"

type listener struct {
	id   uint64
	fn   Handler
	once bool
}

// On registers h for the named event (or Wildcard) and returns a handle for
// Off. Registration order is preserved per event.
func (c *Client) On(event string, h Handler) uint64 {
	if h == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextListenerID++
	id := c.nextListenerID
	c.listeners[event] = append(c.listeners[event], &listener{id: id, fn: h})
	return id
}

// Once registers h to run at most once; it is unregistered before invocation.
func (c *Client) Once(event string, h Handler) uint64 {
	if h == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextListenerID++
	id := c.nextListenerID
	c.listeners[event] = append(c.listeners[event], &listener{id: id, fn: h, once: true})
	return id
}

// Off unregisters one listener by handle.
func (c *Client) Off(event string, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(event, id)
}

func (c *Client) removeLocked(event string, id uint64) {
	current := c.listeners[event]
	for i, l := range current {
		if l.id == id {
			c.listeners[event] = append(current[:i:i], current[i+1:]...)
			break
		}
	}
	if len(c.listeners[event]) == 0 {
		delete(c.listeners, event)
	}
}

// RemoveListeners drops every listener for one event.
func (c *Client) RemoveListeners(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listeners, event)
}

// RemoveAllListeners drops every listener for every event.
func (c *Client) RemoveAllListeners() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = make(map[string][]*listener)
}

// ListenerCount reports how many listeners are registered for event.
func (c *Client) ListenerCount(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners[event])
}

// EventNames lists events with at least one listener, sorted.
func (c *Client) EventNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.listeners))
	for name := range c.listeners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// snapshotFor returns the listeners to invoke for one dispatch: exact-name
// listeners then wildcard listeners, copied so handlers may register or
// unregister listeners mid-dispatch. Once-listeners are unregistered here,
// before invocation, so a duplicate event cannot fire them twice.
func (c *Client) snapshotFor(event string) []*listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	exact := c.listeners[event]
	wild := c.listeners[Wildcard]
	snapshot := make([]*listener, 0, len(exact)+len(wild))
	snapshot = append(snapshot, exact...)
	if event != Wildcard {
		snapshot = append(snapshot, wild...)
	}
	for _, l := range snapshot {
		if l.once {
			if c.containsLocked(event, l.id) {
				c.removeLocked(event, l.id)
			} else {
				c.removeLocked(Wildcard, l.id)
			}
		}
	}
	return snapshot
}

func (c *Client) containsLocked(event string, id uint64) bool {
	for _, l := range c.listeners[event] {
		if l.id == id {
			return true
		}
	}
	return false
}
