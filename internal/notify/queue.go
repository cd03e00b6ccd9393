// Package notify holds short-lived messages for whatever is drawing the run.
// Messages are advisory; nothing in the simulation reads them back.
package notify

import "time"

// Message is one transient notification.
type Message struct {
	Text        string    `json:"text"`
	Color       string    `json:"color"`
	Timestamp   time.Time `json:"timestamp"`
	MoralChange int       `json:"moral_change,omitempty"`
}

// Queue keeps at most Max messages, each living for TTL.
type Queue struct {
	Max      int
	TTL      time.Duration
	messages []Message
}

// NewQueue creates an empty queue.
func NewQueue(max int, ttl time.Duration) *Queue {
	if max < 1 {
		max = 1
	}
	return &Queue{Max: max, TTL: ttl}
}

// Push appends a message, dropping the oldest ones beyond Max.
func (q *Queue) Push(m Message) {
	q.messages = append(q.messages, m)
	if over := len(q.messages) - q.Max; over > 0 {
		q.messages = append([]Message(nil), q.messages[over:]...)
	}
}

// Expire removes messages older than TTL at now. Returns how many were removed.
func (q *Queue) Expire(now time.Time) int {
	kept := q.messages[:0]
	for _, m := range q.messages {
		if now.Sub(m.Timestamp) < q.TTL {
			kept = append(kept, m)
		}
	}
	removed := len(q.messages) - len(kept)
	q.messages = kept
	return removed
}

// Messages returns a copy of the live messages, oldest first.
func (q *Queue) Messages() []Message {
	out := make([]Message, len(q.messages))
	copy(out, q.messages)
	return out
}

// Len returns the number of live messages.
func (q *Queue) Len() int { return len(q.messages) }

// Restore replaces the queue contents, keeping only the newest Max.
func (q *Queue) Restore(msgs []Message) {
	q.messages = nil
	for _, m := range msgs {
		q.Push(m)
	}
}
