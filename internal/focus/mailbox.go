package focus

import "sync"

// Point is a requested focus position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Mailbox holds at most one pending focus request. A new request replaces
// the pending one.
type Mailbox struct {
	mu      sync.Mutex
	pending *Point
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Set stores p as the pending request.
func (m *Mailbox) Set(p Point) {
	m.mu.Lock()
	m.pending = &p
	m.mu.Unlock()
}

// Take returns the pending request and clears the slot.
func (m *Mailbox) Take() (Point, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return Point{}, false
	}
	p := *m.pending
	m.pending = nil
	return p, true
}

// Pending reports whether a request is waiting.
func (m *Mailbox) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}
