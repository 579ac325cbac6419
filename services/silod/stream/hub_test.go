package stream

import (
	"encoding/json"
	"testing"

	"hooliganhorde/integrations/webhooks"
)

func TestHubDeliversToSubscribers(t *testing.T) {
	hub := NewHub(4, 4)
	events, backlog, cancel := hub.Subscribe()
	defer cancel()
	if len(backlog) != 0 {
		t.Fatalf("expected empty backlog, got %d", len(backlog))
	}
	if err := hub.Sunrise(webhooks.SunrisePayload{Type: webhooks.EventSunrise, Gameday: 7}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	event := <-events
	if event.Type != string(webhooks.EventSunrise) {
		t.Fatalf("unexpected event type %q", event.Type)
	}
	var payload webhooks.SunrisePayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Gameday != 7 {
		t.Fatalf("unexpected gameday %d", payload.Gameday)
	}
}

func TestHubBacklogIsBounded(t *testing.T) {
	hub := NewHub(1, 2)
	for i := uint64(1); i <= 3; i++ {
		if err := hub.Sunrise(webhooks.SunrisePayload{Type: webhooks.EventSunrise, Gameday: i}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	_, backlog, cancel := hub.Subscribe()
	defer cancel()
	if len(backlog) != 2 {
		t.Fatalf("expected backlog of 2, got %d", len(backlog))
	}
	var last webhooks.SunrisePayload
	if err := json.Unmarshal(backlog[1].Data, &last); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if last.Gameday != 3 {
		t.Fatalf("backlog should end with the newest event, got %d", last.Gameday)
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(1, 1)
	events, _, cancel := hub.Subscribe()
	for i := 0; i < 2; i++ {
		if err := hub.PlanApplied(webhooks.PlanAppliedPayload{Type: webhooks.EventPlanApplied}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if hub.Subscribers() != 0 {
		t.Fatalf("slow subscriber should be dropped")
	}
	<-events
	if _, ok := <-events; ok {
		t.Fatalf("dropped subscriber channel should be closed")
	}
	cancel()
}
