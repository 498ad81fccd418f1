package node

import "time"

// StaleTimeout is how long an outbound reply-requiring message may go
// unanswered before CheckReplies declares it stale.
const StaleTimeout = 10 * time.Second

// pendingEntry records who a reply-requiring message was sent to and when.
type pendingEntry struct {
	dst    Address
	sentAt time.Time
}

// pendingReplies is the mapping from outbound message id to the
// destination and dispatch time, used to detect unanswered requests.
type pendingReplies struct {
	entries map[uint32]pendingEntry
}

func newPendingReplies() *pendingReplies {
	return &pendingReplies{entries: make(map[uint32]pendingEntry)}
}

func (p *pendingReplies) add(id uint32, dst Address, sentAt time.Time) {
	p.entries[id] = pendingEntry{dst: dst, sentAt: sentAt}
}

// take removes and returns the entry for id, if present.
func (p *pendingReplies) take(id uint32) (pendingEntry, bool) {
	e, ok := p.entries[id]
	if ok {
		delete(p.entries, id)
	}
	return e, ok
}

// staleIDs returns the ids whose dispatch time is older than StaleTimeout
// as of now. It does not mutate the table.
func (p *pendingReplies) staleIDs(now time.Time) []uint32 {
	var stale []uint32
	for id, e := range p.entries {
		if now.Sub(e.sentAt) > StaleTimeout {
			stale = append(stale, id)
		}
	}
	return stale
}

func (p *pendingReplies) len() int {
	return len(p.entries)
}
