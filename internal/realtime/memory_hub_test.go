package realtime

import (
	"context"
	"testing"
	"time"
)

type row struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
}

func mustChange(t *testing.T, kind Kind, r row) Change {
	t.Helper()
	change, err := NewChange(kind, "messages", r, map[string]string{"project_id": r.ProjectID})
	if err != nil {
		t.Fatalf("NewChange: %v", err)
	}
	return change
}

func receive(t *testing.T, sub Subscription) Change {
	t.Helper()
	select {
	case change, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return change
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
	}
	return Change{}
}

func TestMemoryHubFiltersByKey(t *testing.T) {
	ctx := context.Background()
	hub := NewMemoryHub(8)

	subP, err := hub.Subscribe(ctx, "messages", Eq("project_id", "P"))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer subP.Close()
	subAll, _ := hub.Subscribe(ctx, "messages", Filter{})
	defer subAll.Close()

	if err := hub.Publish(ctx, mustChange(t, KindInsert, row{ID: "1", ProjectID: "Q"})); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := hub.Publish(ctx, mustChange(t, KindUpdate, row{ID: "2", ProjectID: "P"})); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got := receive(t, subP)
	var r row
	if err := got.Decode(&r); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Kind != KindUpdate || r.ID != "2" {
		t.Fatalf("project subscriber got %s %+v", got.Kind, r)
	}
	select {
	case extra := <-subP.Events():
		t.Fatalf("project subscriber received unrelated change %+v", extra)
	default:
	}

	if first := receive(t, subAll); first.Kind != KindInsert {
		t.Fatalf("table subscriber first change kind = %s", first.Kind)
	}
	if second := receive(t, subAll); second.Kind != KindUpdate {
		t.Fatalf("table subscriber second change kind = %s", second.Kind)
	}
}

func TestMemoryHubCloseUnregisters(t *testing.T) {
	ctx := context.Background()
	hub := NewMemoryHub(1)
	sub, _ := hub.Subscribe(ctx, "messages", Eq("project_id", "P"))

	if n := hub.Subscribers("messages", Eq("project_id", "P")); n != 1 {
		t.Fatalf("subscribers = %d, want 1", n)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if hub.Active() != 0 {
		t.Fatalf("active = %d after close", hub.Active())
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatal("events channel should be closed")
	}
	// Publishing after close must not panic.
	if err := hub.Publish(ctx, mustChange(t, KindInsert, row{ID: "1", ProjectID: "P"})); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestMemoryHubDropsWhenFull(t *testing.T) {
	ctx := context.Background()
	hub := NewMemoryHub(1)
	sub, _ := hub.Subscribe(ctx, "messages", Filter{})
	defer sub.Close()

	for i := 0; i < 3; i++ {
		if err := hub.Publish(ctx, mustChange(t, KindInsert, row{ID: "x", ProjectID: "P"})); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	receive(t, sub)
	select {
	case <-sub.Events():
		t.Fatal("expected overflow changes to be dropped")
	default:
	}
}

func TestTopicsForIncludesEveryKey(t *testing.T) {
	change := Change{Table: "messages", Keys: map[string]string{"sender_id": "u1", "project_id": "P"}}
	got := topicsFor(change)
	want := []string{"realtime:messages", "realtime:messages:project_id=P", "realtime:messages:sender_id=u1"}
	if len(got) != len(want) {
		t.Fatalf("topics = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("topics[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
