package visual

import (
	"sync"
	"time"
)

// ErrorLogSize is how many render faults are retained.
const ErrorLogSize = 32

// ErrorEntry is one recorded render fault.
type ErrorEntry struct {
	Time    time.Time `json:"time"`
	Pattern string    `json:"pattern"`
	Message string    `json:"message"`
}

// ErrorLog is a fixed-size ring of the most recent render faults.
type ErrorLog struct {
	mu      sync.Mutex
	entries [ErrorLogSize]ErrorEntry
	next    int
	n       int
	total   int
}

func (l *ErrorLog) Add(e ErrorEntry) {
	l.mu.Lock()
	l.entries[l.next] = e
	l.next = (l.next + 1) % ErrorLogSize
	l.n = min(l.n+1, ErrorLogSize)
	l.total++
	l.mu.Unlock()
}

// Entries returns the retained faults, oldest first.
func (l *ErrorLog) Entries() []ErrorEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ErrorEntry, 0, l.n)
	start := (l.next - l.n + ErrorLogSize) % ErrorLogSize
	for i := 0; i < l.n; i++ {
		out = append(out, l.entries[(start+i)%ErrorLogSize])
	}
	return out
}

// Total counts every fault ever added, including evicted ones.
func (l *ErrorLog) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
