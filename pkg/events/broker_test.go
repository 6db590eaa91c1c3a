package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch1, cancel1 := b.Subscribe("conv-1")
	defer cancel1()
	ch2, cancel2 := b.Subscribe("conv-1")
	defer cancel2()
	other, cancelOther := b.Subscribe("conv-2")
	defer cancelOther()

	env := Envelope{Type: "quote_start", ConversationID: "conv-1"}
	require.NoError(t, b.Append(context.Background(), env))

	for _, ch := range []<-chan Envelope{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, "quote_start", got.Type)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}

	select {
	case <-other:
		t.Fatal("event leaked across conversations")
	default:
	}
}

func TestBrokerCancelClosesChannel(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch, cancel := b.Subscribe("conv-1")
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Appending after cancel must not block or panic.
	require.NoError(t, b.Append(context.Background(), Envelope{ConversationID: "conv-1"}))
}

func TestBrokerSlowSubscriberDropsEvents(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	_, cancel := b.Subscribe("conv-1")
	defer cancel()

	// Overfill the subscriber buffer; Append must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			_ = b.Append(context.Background(), Envelope{ConversationID: "conv-1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Append blocked on a slow subscriber")
	}
}

func TestBrokerCloseThenCancelIsSafe(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("conv-1")

	b.Close()
	cancel() // must not double-close

	_, open := <-ch
	assert.False(t, open)
}

func TestMultiSinkAttemptsAllSinks(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch, cancel := b.Subscribe("conv-1")
	defer cancel()

	multi := MultiSink{NewNoOpEventSink(), b}
	require.NoError(t, multi.Append(context.Background(), Envelope{ConversationID: "conv-1", Type: "settle_complete"}))

	select {
	case got := <-ch:
		assert.Equal(t, "settle_complete", got.Type)
	case <-time.After(time.Second):
		t.Fatal("broker sink never received the event")
	}
}
