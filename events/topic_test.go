package events

import "testing"

func TestTopicDeliversToAllSubscribers(t *testing.T) {
	topic := NewTopic[int]()

	var a, b []int
	topic.Subscribe(func(v int) { a = append(a, v) })
	topic.Subscribe(func(v int) { b = append(b, v) })

	topic.Publish(1)
	topic.Publish(2)

	if len(a) != 2 || a[0] != 1 || a[1] != 2 {
		t.Errorf("first subscriber got %v, want [1 2]", a)
	}
	if len(b) != 2 {
		t.Errorf("second subscriber got %v, want [1 2]", b)
	}
}

func TestTopicCancelStopsDelivery(t *testing.T) {
	topic := NewTopic[string]()

	var got []string
	cancel := topic.Subscribe(func(v string) { got = append(got, v) })

	topic.Publish("before")
	cancel()
	cancel() // second cancel is a no-op
	topic.Publish("after")

	if len(got) != 1 || got[0] != "before" {
		t.Errorf("got %v, want [before]", got)
	}
}

func TestTopicCloseDropsSubscribers(t *testing.T) {
	topic := NewTopic[int]()

	calls := 0
	topic.Subscribe(func(int) { calls++ })

	topic.Close()
	topic.Publish(7)

	if calls != 0 {
		t.Errorf("subscriber called %d times after Close, want 0", calls)
	}
}
