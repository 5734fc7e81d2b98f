package bus

import "testing"

func TestSubscribeBroadcast(t *testing.T) {
	b := New()

	var got []Event
	b.Subscribe("one", func(ev Event) { got = append(got, ev) })

	b.Broadcast(Event{Name: EventAgentUpdated, Payload: "p"})
	if len(got) != 1 || got[0].Name != EventAgentUpdated || got[0].Payload != "p" {
		t.Errorf("got %+v", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()

	calls := 0
	b.Subscribe("one", func(Event) { calls++ })
	b.Unsubscribe("one")
	b.Broadcast(Event{Name: EventShutdown})

	if calls != 0 {
		t.Errorf("handler called %d times after unsubscribe", calls)
	}
}

func TestSubscribeSameIDReplaces(t *testing.T) {
	b := New()

	first, second := 0, 0
	b.Subscribe("one", func(Event) { first++ })
	b.Subscribe("one", func(Event) { second++ })
	b.Broadcast(Event{Name: EventShutdown})

	if first != 0 || second != 1 {
		t.Errorf("first = %d, second = %d; re-subscribe must replace", first, second)
	}
}

func TestBroadcastSurvivesPanickingHandler(t *testing.T) {
	b := New()

	reached := 0
	b.Subscribe("bad", func(Event) { panic("boom") })
	b.Subscribe("good", func(Event) { reached++ })

	b.Broadcast(Event{Name: EventShutdown}) // must not panic
	if reached != 1 {
		t.Errorf("good handler reached %d times, want 1", reached)
	}
}
