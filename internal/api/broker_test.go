package api

import (
    "testing"
    "time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
    b := NewBroker()
    topic := topicFor("t1", "dealers")
    ch := b.Subscribe(topic)
    other := b.Subscribe(topicFor("t2", "dealers"))

    evt := SSEEvent{Type: "import.created", Data: map[string]any{"rows": 1}}
    b.Publish(topic, evt)

    select {
    case got := <-ch:
        if got.Type != evt.Type { t.Fatalf("got type %s, want %s", got.Type, evt.Type) }
        if got.Data["rows"].(int) != 1 { t.Fatalf("bad payload: %+v", got.Data) }
    case <-time.After(200 * time.Millisecond):
        t.Fatal("timeout waiting for event")
    }
    select {
    case got := <-other:
        t.Fatalf("event leaked to another tenant: %+v", got)
    default:
    }

    b.Unsubscribe(topic, ch)
    if _, ok := <-ch; ok { t.Fatal("channel should be closed after unsubscribe") }
    // second unsubscribe is a no-op
    b.Unsubscribe(topic, ch)
}

func TestBrokerDropsForSlowSubscriber(t *testing.T) {
    b := NewBroker()
    ch := b.Subscribe("t1/dealers")
    defer b.Unsubscribe("t1/dealers", ch)
    done := make(chan struct{})
    go func() {
        for i := 0; i < 100; i++ { b.Publish("t1/dealers", SSEEvent{Type: "config.updated"}) }
        close(done)
    }()
    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatal("publish blocked on a full subscriber")
    }
    if len(ch) != cap(ch) { t.Fatalf("buffer = %d, want full %d", len(ch), cap(ch)) }
}
