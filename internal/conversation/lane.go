package conversation

import "sync"

// LaneLock serializes work per conversation: turns for the same ID run one
// at a time, turns for different IDs run in parallel. The outer mutex only
// guards the lane map; callers block on the per-ID mutex outside it.
type LaneLock struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

// lane is reference-counted so the map does not grow with every ID ever seen.
type lane struct {
	mu   sync.Mutex
	refs int
}

// NewLaneLock creates a ready-to-use LaneLock.
func NewLaneLock() *LaneLock {
	return &LaneLock{lanes: make(map[string]*lane)}
}

// Acquire locks the lane for id. Every Acquire must be paired with Release.
func (l *LaneLock) Acquire(id string) {
	l.mu.Lock()
	ln, ok := l.lanes[id]
	if !ok {
		ln = &lane{}
		l.lanes[id] = ln
	}
	ln.refs++
	l.mu.Unlock()

	ln.mu.Lock()
}

// Release unlocks the lane for id and drops it once nobody holds or waits on it.
func (l *LaneLock) Release(id string) {
	l.mu.Lock()
	ln, ok := l.lanes[id]
	if !ok {
		l.mu.Unlock()
		return
	}
	ln.refs--
	if ln.refs == 0 {
		delete(l.lanes, id)
	}
	l.mu.Unlock()

	ln.mu.Unlock()
}

// Size returns the number of lanes currently tracked.
func (l *LaneLock) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}
