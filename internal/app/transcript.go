package app

import (
	"sync"

	"github.com/factime/factime-go/internal/domain"
)

const subscriberBuffer = 64

// TranscriptLog is an append-only, insertion-ordered record of conversation
// turns. It is the only session resource safe to read from multiple
// goroutines; appends fan out to subscribers without ever blocking the
// session event flow.
type TranscriptLog struct {
	mu      sync.RWMutex
	entries []domain.TranscriptEntry
	subs    map[int]chan domain.TranscriptEntry
	nextSub int
}

func NewTranscriptLog() *TranscriptLog {
	return &TranscriptLog{subs: make(map[int]chan domain.TranscriptEntry)}
}

// Append adds an entry at the tail. Prior entries are never mutated or
// reordered. Subscribers that cannot keep up miss the entry.
func (l *TranscriptLog) Append(e domain.TranscriptEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Entries returns a copy of the log in insertion order.
func (l *TranscriptLog) Entries() []domain.TranscriptEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.TranscriptEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *TranscriptLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Reset drops all entries. Subscriptions survive a reset.
func (l *TranscriptLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Subscribe returns a channel of future entries and a cancel func that
// releases the subscription.
func (l *TranscriptLog) Subscribe() (<-chan domain.TranscriptEntry, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	ch := make(chan domain.TranscriptEntry, subscriberBuffer)
	l.subs[id] = ch
	cancel := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if sub, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
