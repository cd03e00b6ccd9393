package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushKeepsNewestMax(t *testing.T) {
	q := NewQueue(3, 3*time.Second)
	base := time.Unix(1000, 0)
	for i, text := range []string{"a", "b", "c", "d"} {
		q.Push(Message{Text: text, Timestamp: base.Add(time.Duration(i) * time.Millisecond)})
	}

	msgs := q.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "b", msgs[0].Text)
	assert.Equal(t, "d", msgs[2].Text)
}

func TestExpireUsesTTL(t *testing.T) {
	q := NewQueue(3, 3*time.Second)
	base := time.Unix(1000, 0)
	q.Push(Message{Text: "old", Timestamp: base})
	q.Push(Message{Text: "new", Timestamp: base.Add(2 * time.Second)})

	assert.Equal(t, 0, q.Expire(base.Add(2999*time.Millisecond)))
	assert.Equal(t, 1, q.Expire(base.Add(3*time.Second)))
	require.Equal(t, 1, q.Len())
	assert.Equal(t, "new", q.Messages()[0].Text)

	assert.Equal(t, 1, q.Expire(base.Add(10*time.Second)))
	assert.Equal(t, 0, q.Len())
}

func TestRestoreTrims(t *testing.T) {
	q := NewQueue(2, time.Second)
	q.Restore([]Message{{Text: "1"}, {Text: "2"}, {Text: "3"}})
	msgs := q.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "2", msgs[0].Text)
}
