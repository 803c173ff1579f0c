package feed

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/cosmiccode/portal/internal/domain"
	"github.com/cosmiccode/portal/internal/realtime"
)

type fakeStore struct {
	mu         sync.Mutex
	records    map[string]domain.Message
	inserts    int
	lists      int
	markCalls  [][]string
	insertErr  error
	insertGate chan struct{}
	waiting    int
	seq        int
}

func newFakeStore(initial ...domain.Message) *fakeStore {
	s := &fakeStore{records: make(map[string]domain.Message)}
	for _, m := range initial {
		s.records[m.ID] = m
	}
	return s
}

func (s *fakeStore) ListByProject(_ context.Context, projectID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	var out []domain.Message
	for _, m := range s.records {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) Insert(ctx context.Context, m *domain.Message) error {
	if s.insertGate != nil {
		s.mu.Lock()
		s.waiting++
		s.mu.Unlock()
		select {
		case <-s.insertGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.insertErr != nil {
		return s.insertErr
	}
	s.seq++
	m.ID = fmt.Sprintf("new-%d", s.seq)
	m.CreatedAt = t0.Add(time.Hour + time.Duration(s.seq)*time.Second)
	m.UpdatedAt = m.CreatedAt
	s.records[m.ID] = *m
	return nil
}

func (s *fakeStore) MarkRead(_ context.Context, projectID, viewerID string, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls = append(s.markCalls, append([]string(nil), ids...))
	var n int64
	for _, id := range ids {
		m, ok := s.records[id]
		if !ok || m.ProjectID != projectID || m.SenderID == viewerID || m.Read {
			continue
		}
		m.Read = true
		s.records[id] = m
		n++
	}
	return n, nil
}

func (s *fakeStore) snapshot() (inserts int, lists int, marks [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts, s.lists, append([][]string(nil), s.markCalls...)
}

// gatedSubscriber holds Subscribe calls for a project until released.
type gatedSubscriber struct {
	hub *realtime.MemoryHub

	mu        sync.Mutex
	gates     map[string]chan struct{}
	completed int
	last      realtime.Subscription
}

func newGatedSubscriber(hub *realtime.MemoryHub) *gatedSubscriber {
	return &gatedSubscriber{hub: hub, gates: make(map[string]chan struct{})}
}

func (g *gatedSubscriber) hold(projectID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gates[projectID] = make(chan struct{})
}

func (g *gatedSubscriber) release(projectID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	close(g.gates[projectID])
}

func (g *gatedSubscriber) Subscribe(ctx context.Context, table string, filter realtime.Filter) (realtime.Subscription, error) {
	g.mu.Lock()
	gate := g.gates[filter.Value]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	sub, err := g.hub.Subscribe(context.Background(), table, filter)
	g.mu.Lock()
	g.completed++
	g.last = sub
	g.mu.Unlock()
	return sub, err
}

func (g *gatedSubscriber) done() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.completed
}

func (g *gatedSubscriber) latest() realtime.Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type harness struct {
	feed  *Feed
	store *fakeStore
	hub   *realtime.MemoryHub
	subs  *gatedSubscriber
}

func startFeed(t *testing.T, viewer string, store *fakeStore, initial []domain.Message, prepare func(*gatedSubscriber)) *harness {
	t.Helper()
	hub := realtime.NewMemoryHub(16)
	subs := newGatedSubscriber(hub)
	if prepare != nil {
		prepare(subs)
	}
	f := New(viewer, store, subs, initial, nil, Options{CallTimeout: time.Second, SubscribeDelay: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = f.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return &harness{feed: f, store: store, hub: hub, subs: subs}
}

func (h *harness) subscribedTo(projectID string) bool {
	return h.hub.Active() == 1 && h.hub.Subscribers(MessagesTable, realtime.Eq("project_id", projectID)) == 1
}

func ids(msgs []domain.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestMarkVisibleReadIssuesOneRequest(t *testing.T) {
	ctx := context.Background()
	m1 := msg("1", "P", "A", 0, false)
	h := startFeed(t, "B", newFakeStore(m1), []domain.Message{m1}, nil)

	if err := h.feed.Select(ctx, "P"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	waitFor(t, "subscription to P", func() bool { return h.subscribedTo("P") })
	waitFor(t, "refetch", func() bool { _, lists, _ := h.store.snapshot(); return lists == 1 })

	// Unrelated traffic must not trigger a second request for id 1.
	change, _ := realtime.NewChange(realtime.KindInsert, MessagesTable, msg("2", "P", "B", time.Second, false), map[string]string{"project_id": "P"})
	if err := h.hub.Publish(ctx, change); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	waitFor(t, "message 2 in view", func() bool {
		v, _ := h.feed.Snapshot(ctx)
		return len(v.Messages) == 2
	})

	_, _, marks := h.store.snapshot()
	if !reflect.DeepEqual(marks, [][]string{{"1"}}) {
		t.Fatalf("mark read calls = %v, want exactly [[1]]", marks)
	}
	waitFor(t, "local read flag", func() bool {
		v, _ := h.feed.Snapshot(ctx)
		return v.Messages[0].Read && v.Counts["P"].Unread == 0
	})
}

func TestMarkVisibleReadSkipsOwnMessages(t *testing.T) {
	ctx := context.Background()
	initial := []domain.Message{
		msg("own-1", "P", "B", 0, false),
		msg("theirs-1", "P", "A", time.Second, false),
		msg("own-2", "P", "B", 2*time.Second, false),
		msg("theirs-2", "Q", "A", 0, false),
	}
	h := startFeed(t, "B", newFakeStore(initial...), initial, nil)

	for _, p := range []string{"P", "Q", "P"} {
		if err := h.feed.Select(ctx, p); err != nil {
			t.Fatalf("Select(%s): %v", p, err)
		}
	}
	waitFor(t, "mark requests", func() bool { _, _, marks := h.store.snapshot(); return len(marks) == 2 })

	_, _, marks := h.store.snapshot()
	for _, call := range marks {
		for _, id := range call {
			if id == "own-1" || id == "own-2" {
				t.Fatalf("requested read for viewer's own message %s", id)
			}
		}
	}
}

func TestSendRejectsBlankBodyWithoutStoreCall(t *testing.T) {
	ctx := context.Background()
	h := startFeed(t, "B", newFakeStore(), nil, nil)
	if err := h.feed.Select(ctx, "P"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	for _, body := range []string{"", "   ", "\n\t"} {
		if _, err := h.feed.Send(ctx, "P", body); !errors.Is(err, ErrEmptyBody) {
			t.Fatalf("Send(%q) err = %v, want ErrEmptyBody", body, err)
		}
	}
	if _, err := h.feed.Send(ctx, "Q", "hello"); !errors.Is(err, ErrProjectNotSelected) {
		t.Fatalf("Send to unselected project err = %v", err)
	}
	if inserts, _, _ := h.store.snapshot(); inserts != 0 {
		t.Fatalf("store inserts = %d, want 0", inserts)
	}
}

func TestSendAppliesCanonicalRecordOnce(t *testing.T) {
	ctx := context.Background()
	h := startFeed(t, "B", newFakeStore(), nil, nil)
	if err := h.feed.Select(ctx, "P"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	waitFor(t, "subscription to P", func() bool { return h.subscribedTo("P") })

	sent, err := h.feed.Send(ctx, "P", "  hello  ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sent.ID == "" || sent.Body != "hello" || sent.Read || sent.SenderID != "B" {
		t.Fatalf("unexpected record %+v", sent)
	}

	// The realtime echo of the same row must not duplicate it.
	echo, _ := realtime.NewChange(realtime.KindInsert, MessagesTable, sent, map[string]string{"project_id": "P"})
	if err := h.hub.Publish(ctx, echo); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	v, err := h.feed.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got := ids(v.Messages); !reflect.DeepEqual(got, []string{sent.ID}) {
		t.Fatalf("view = %v", got)
	}
}

func TestSendFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.insertErr = errors.New("connection reset")
	h := startFeed(t, "B", store, nil, nil)
	_ = h.feed.Select(ctx, "P")

	if _, err := h.feed.Send(ctx, "P", "hello"); err == nil {
		t.Fatal("expected send error")
	}
	v, _ := h.feed.Snapshot(ctx)
	if len(v.Messages) != 0 {
		t.Fatalf("failed send left %d messages in view", len(v.Messages))
	}
	if inserts, _, _ := store.snapshot(); inserts != 1 {
		t.Fatalf("inserts = %d, want exactly one attempt", inserts)
	}
}

func TestInFlightSendAcceptedAfterSwitch(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.insertGate = make(chan struct{})
	h := startFeed(t, "B", store, nil, nil)
	_ = h.feed.Select(ctx, "P")

	type result struct {
		msg *domain.Message
		err error
	}
	res := make(chan result, 1)
	go func() {
		m, err := h.feed.Send(ctx, "P", "late")
		res <- result{m, err}
	}()

	waitFor(t, "send to reach the store", func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.waiting == 1
	})
	if err := h.feed.Select(ctx, "Q"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	close(store.insertGate)

	r := <-res
	if r.err != nil {
		t.Fatalf("Send: %v", r.err)
	}
	v, _ := h.feed.Snapshot(ctx)
	if v.ProjectID != "Q" || len(v.Messages) != 0 {
		t.Fatalf("view = %+v", v)
	}
	if v.Counts["P"].Total != 1 {
		t.Fatalf("P total = %d, want 1", v.Counts["P"].Total)
	}
}

func TestReselectReproducesView(t *testing.T) {
	ctx := context.Background()
	initial := []domain.Message{
		msg("a2", "A", "X", time.Second, true),
		msg("a1", "A", "Y", 0, true),
		msg("a3", "A", "X", time.Second, true),
		msg("b1", "B", "X", 0, true),
	}
	h := startFeed(t, "X", newFakeStore(initial...), initial, nil)

	_ = h.feed.Select(ctx, "A")
	first, _ := h.feed.Snapshot(ctx)
	_ = h.feed.Select(ctx, "B")
	mid, _ := h.feed.Snapshot(ctx)
	_ = h.feed.Select(ctx, "A")
	again, _ := h.feed.Snapshot(ctx)

	if got := ids(mid.Messages); !reflect.DeepEqual(got, []string{"b1"}) {
		t.Fatalf("B view = %v", got)
	}
	if want := []string{"a1", "a2", "a3"}; !reflect.DeepEqual(ids(first.Messages), want) {
		t.Fatalf("first A view = %v", ids(first.Messages))
	}
	if !reflect.DeepEqual(first.Messages, again.Messages) {
		t.Fatalf("reselect changed the view:\n%v\n%v", first.Messages, again.Messages)
	}
}

func TestUpdateForUnknownMessageGrowsHeldSet(t *testing.T) {
	ctx := context.Background()
	initial := []domain.Message{msg("1", "P", "A", 0, true)}
	h := startFeed(t, "B", newFakeStore(initial...), initial, nil)
	_ = h.feed.Select(ctx, "P")
	waitFor(t, "subscription to P", func() bool { return h.subscribedTo("P") })

	change, _ := realtime.NewChange(realtime.KindUpdate, MessagesTable, msg("7", "P", "A", time.Minute, true), map[string]string{"project_id": "P"})
	if err := h.hub.Publish(ctx, change); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	waitFor(t, "message 7", func() bool {
		v, _ := h.feed.Snapshot(ctx)
		return v.Counts["P"].Total == 2
	})
	v, _ := h.feed.Snapshot(ctx)
	if got := ids(v.Messages); !reflect.DeepEqual(got, []string{"1", "7"}) {
		t.Fatalf("view = %v", got)
	}
}

func TestSwitchBeforeSetupLeavesOneSubscription(t *testing.T) {
	ctx := context.Background()
	h := startFeed(t, "B", newFakeStore(), nil, func(g *gatedSubscriber) {
		g.hold("P")
		g.hold("Q")
	})

	if err := h.feed.Select(ctx, "P"); err != nil {
		t.Fatalf("Select(P): %v", err)
	}
	if err := h.feed.Select(ctx, "Q"); err != nil {
		t.Fatalf("Select(Q): %v", err)
	}
	h.subs.release("Q")
	h.subs.release("P")

	waitFor(t, "both setups to finish and P to be discarded", func() bool {
		return h.subs.done() == 2 && h.subscribedTo("Q")
	})
	time.Sleep(20 * time.Millisecond)
	if !h.subscribedTo("Q") {
		t.Fatalf("active subscriptions = %d, want only Q", h.hub.Active())
	}
}

func TestResubscribesAndRefetchesAfterLoss(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(msg("1", "P", "A", 0, true))
	h := startFeed(t, "B", store, nil, nil)
	_ = h.feed.Select(ctx, "P")
	waitFor(t, "first subscription", func() bool { return h.subscribedTo("P") && h.subs.done() == 1 })
	waitFor(t, "first refetch", func() bool { _, lists, _ := store.snapshot(); return lists == 1 })

	// A message written while the transport is down only arrives via refetch.
	store.mu.Lock()
	store.records["2"] = msg("2", "P", "A", time.Second, true)
	store.mu.Unlock()
	_ = h.subs.latest().Close()

	waitFor(t, "resubscribe", func() bool { return h.subs.done() == 2 && h.subscribedTo("P") })
	waitFor(t, "refetched message", func() bool {
		v, _ := h.feed.Snapshot(ctx)
		return reflect.DeepEqual(ids(v.Messages), []string{"1", "2"})
	})
}

func TestViewsStreamLatest(t *testing.T) {
	ctx := context.Background()
	initial := []domain.Message{msg("1", "P", "A", 0, true)}
	h := startFeed(t, "B", newFakeStore(initial...), initial, nil)
	_ = h.feed.Select(ctx, "P")

	waitFor(t, "view for P", func() bool {
		select {
		case v := <-h.feed.Views():
			return v.ProjectID == "P" && len(v.Messages) == 1
		default:
			return false
		}
	})
}

func TestOperationsAfterStopReturnClosed(t *testing.T) {
	f := New("B", newFakeStore(), realtime.NewMemoryHub(1), nil, nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = f.Run(ctx)
	}()
	cancel()
	<-stopped

	if err := f.Select(context.Background(), "P"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Select err = %v, want ErrClosed", err)
	}
	if _, err := f.Snapshot(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Snapshot err = %v, want ErrClosed", err)
	}
}

// flakySubscriber fails the first failures Subscribe calls, then delegates to hub.
type flakySubscriber struct {
	hub      *realtime.MemoryHub
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakySubscriber) Subscribe(ctx context.Context, table string, filter realtime.Filter) (realtime.Subscription, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	return s.hub.Subscribe(ctx, table, filter)
}

func (s *flakySubscriber) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func runFeed(t *testing.T, f *Feed) <-chan error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- f.Run(ctx) }()
	t.Cleanup(cancel)
	return result
}

func TestSubscribeRetriesAfterFailedSetup(t *testing.T) {
	ctx := context.Background()
	hub := realtime.NewMemoryHub(16)
	subs := &flakySubscriber{hub: hub, failures: 1}
	f := New("B", newFakeStore(), subs, nil, nil, Options{CallTimeout: time.Second, SubscribeDelay: time.Millisecond})
	runFeed(t, f)

	_ = f.Select(ctx, "P")
	waitFor(t, "live subscription after retry", func() bool {
		return subs.callCount() == 2 && hub.Subscribers(MessagesTable, realtime.Eq("project_id", "P")) == 1
	})

	change, err := realtime.NewChange(realtime.KindInsert, MessagesTable, msg("1", "P", "A", 0, true), map[string]string{"project_id": "P"})
	if err != nil {
		t.Fatalf("NewChange: %v", err)
	}
	if err := hub.Publish(ctx, change); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	waitFor(t, "published message", func() bool {
		v, _ := f.Snapshot(ctx)
		return reflect.DeepEqual(ids(v.Messages), []string{"1"})
	})
}

func TestRunStopsWhenSubscribeKeepsFailing(t *testing.T) {
	subs := &flakySubscriber{hub: realtime.NewMemoryHub(1), failures: 100}
	f := New("B", newFakeStore(), subs, nil, nil, Options{
		CallTimeout:       time.Second,
		SubscribeAttempts: 3,
		SubscribeDelay:    time.Millisecond,
	})
	result := runFeed(t, f)

	_ = f.Select(context.Background(), "P")
	select {
	case err := <-result:
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("Run err = %v, want ErrUnavailable", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run should stop once every attempt failed")
	}
	if got := subs.callCount(); got != 3 {
		t.Fatalf("subscribe calls = %d, want 3", got)
	}
}

func TestReselectCancelsPendingRetries(t *testing.T) {
	ctx := context.Background()
	hub := realtime.NewMemoryHub(16)
	subs := &flakySubscriber{hub: hub, failures: 1}
	f := New("B", newFakeStore(), subs, nil, nil, Options{
		CallTimeout:       time.Second,
		SubscribeAttempts: 2,
		SubscribeDelay:    time.Hour,
	})
	result := runFeed(t, f)

	_ = f.Select(ctx, "P")
	waitFor(t, "first failed attempt", func() bool { return subs.callCount() == 1 })
	_ = f.Select(ctx, "Q")
	waitFor(t, "subscription to Q", func() bool {
		return hub.Active() == 1 && hub.Subscribers(MessagesTable, realtime.Eq("project_id", "Q")) == 1
	})

	select {
	case err := <-result:
		t.Fatalf("Run stopped with %v; the abandoned retry for P must not fail the feed", err)
	default:
	}
}

// scriptedSubscription is a stream the test closes to simulate the transport
// re-establishing behind the feed's back.
type scriptedSubscription struct {
	ch   chan realtime.Change
	once sync.Once
}

func (s *scriptedSubscription) Events() <-chan realtime.Change { return s.ch }

func (s *scriptedSubscription) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

type scriptedSubscriber struct {
	mu   sync.Mutex
	subs []*scriptedSubscription
}

func (s *scriptedSubscriber) Subscribe(context.Context, string, realtime.Filter) (realtime.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := &scriptedSubscription{ch: make(chan realtime.Change, 4)}
	s.subs = append(s.subs, sub)
	return sub, nil
}

func (s *scriptedSubscriber) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *scriptedSubscriber) at(i int) *scriptedSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[i]
}

func TestReconnectedStreamTriggersRefetch(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(msg("1", "P", "A", 0, true))
	subs := &scriptedSubscriber{}
	f := New("B", store, subs, nil, nil, Options{CallTimeout: time.Second, SubscribeDelay: time.Millisecond})
	runFeed(t, f)

	_ = f.Select(ctx, "P")
	waitFor(t, "first subscription and refetch", func() bool {
		_, lists, _ := store.snapshot()
		return subs.count() == 1 && lists == 1
	})

	// Written while the stream was reconnecting; no event is delivered for it.
	store.mu.Lock()
	store.records["2"] = msg("2", "P", "A", time.Second, true)
	store.mu.Unlock()
	_ = subs.at(0).Close()

	waitFor(t, "resubscribe and refetch", func() bool {
		_, lists, _ := store.snapshot()
		return subs.count() == 2 && lists == 2
	})
	waitFor(t, "missed message", func() bool {
		v, _ := f.Snapshot(ctx)
		return reflect.DeepEqual(ids(v.Messages), []string{"1", "2"})
	})
}
