package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(4)
	first := b.Subscribe()
	second := b.Subscribe()
	require.Equal(t, 2, b.Subscribers())

	msg := Message{Time: time.Now(), Instrument: "BTC_USDT", Level: LevelInfo, Text: "started"}
	b.Publish(msg)

	assert.Equal(t, msg, <-first)
	assert.Equal(t, msg, <-second)
}

func TestBroadcaster_PreservesOrder(t *testing.T) {
	b := NewBroadcaster(8)
	ch := b.Subscribe()

	for _, text := range []string{"a", "b", "c"} {
		b.Publish(Message{Instrument: "BTC_USDT", Text: text})
	}

	assert.Equal(t, "a", (<-ch).Text)
	assert.Equal(t, "b", (<-ch).Text)
	assert.Equal(t, "c", (<-ch).Text)
}

func TestBroadcaster_DropsForSlowSubscriber(t *testing.T) {
	b := NewBroadcaster(1)
	ch := b.Subscribe()

	b.Publish(Message{Text: "kept"})
	b.Publish(Message{Text: "dropped"})

	assert.Equal(t, "kept", (<-ch).Text)
	select {
	case m := <-ch:
		t.Fatalf("unexpected message %q", m.Text)
	default:
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster(1)
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, b.Subscribers())

	// publishing with no subscribers is a no-op
	b.Publish(Message{Text: "nobody"})
}
