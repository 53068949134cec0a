package monitor

import (
	"sync"
	"time"
)

type debounceKey struct {
	sessionID string
	kind      Kind
}

// Debounce suppresses duplicate violation logging within a per-kind
// cooldown window. Allow is an atomic check-and-set per (session, kind)
// so near-simultaneous observations cannot both pass.
type Debounce struct {
	mu   sync.Mutex
	last map[debounceKey]time.Time
}

// NewDebounce creates an empty debounce tracker.
func NewDebounce() *Debounce {
	return &Debounce{last: make(map[debounceKey]time.Time)}
}

// Allow reports whether a violation of the given kind may be recorded
// now. On true it records now as the new last occurrence; on false the
// entry is left unchanged.
func (d *Debounce) Allow(sessionID string, kind Kind, now time.Time, cooldown time.Duration) bool {
	key := debounceKey{sessionID: sessionID, kind: kind}

	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.last[key]; ok && now.Sub(prev) <= cooldown {
		return false
	}
	d.last[key] = now
	return true
}

// Forget drops all entries for a session. Called after the session is
// closed and scored; the violation log remains the audit record.
func (d *Debounce) Forget(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key := range d.last {
		if key.sessionID == sessionID {
			delete(d.last, key)
		}
	}
}
