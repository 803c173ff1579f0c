// Package feed keeps one viewer's live, per-project view of the messages
// table. A Feed is an actor: Run owns all state and every store call or
// subscription setup reports back to it through its inbox.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/cosmiccode/portal/internal/domain"
	"github.com/cosmiccode/portal/internal/realtime"
)

// MessagesTable is the realtime table carrying message changes.
const MessagesTable = "messages"

const (
	defaultCallTimeout       = 10 * time.Second
	defaultSubscribeAttempts = 5
	defaultSubscribeDelay    = 500 * time.Millisecond
	maxSubscribeDelay        = 10 * time.Second
)

var (
	ErrEmptyBody          = errors.New("message body is empty")
	ErrProjectNotSelected = errors.New("project is not the selected project")
	ErrClosed             = errors.New("feed is closed")
	// ErrUnavailable ends Run when the live subscription cannot be set up.
	ErrUnavailable = errors.New("live message updates unavailable")
)

// Store is the data-store collaborator used by a feed.
type Store interface {
	ListByProject(ctx context.Context, projectID string) ([]domain.Message, error)
	// Insert persists msg and fills in its id and timestamps.
	Insert(ctx context.Context, msg *domain.Message) error
	// MarkRead sets is_read on the listed messages of projectID that were not
	// sent by viewerID and returns how many rows changed.
	MarkRead(ctx context.Context, projectID, viewerID string, ids []string) (int64, error)
}

// Subscriber opens realtime subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, table string, filter realtime.Filter) (realtime.Subscription, error)
}

// View is the derived state handed to the presentation layer.
type View struct {
	ProjectID string                   `json:"project_id"`
	Messages  []domain.Message         `json:"messages"`
	Counts    map[string]ProjectCounts `json:"counts"`
}

// Options tunes a Feed.
type Options struct {
	// CallTimeout bounds each store call and subscription setup.
	CallTimeout time.Duration
	// SubscribeAttempts and SubscribeDelay bound the backoff used when a
	// subscription cannot be set up.
	SubscribeAttempts uint
	SubscribeDelay    time.Duration
}

// Feed is the message feed of one viewer.
type Feed struct {
	viewerID    string
	store       Store
	subscriber  Subscriber
	logger      *zap.Logger
	callTimeout time.Duration
	attempts    uint
	retryDelay  time.Duration

	inbox chan any
	views chan View
	done  chan struct{}

	// Owned by Run.
	held      *HeldSet
	selected  string
	gen       uint64
	sub       realtime.Subscription
	subCancel context.CancelFunc
	requested map[string]struct{}
	failed    error
}

// New builds a feed seeded with initial. Call Run to start it.
func New(viewerID string, store Store, subscriber Subscriber, initial []domain.Message, logger *zap.Logger, opts Options) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.SubscribeAttempts == 0 {
		opts.SubscribeAttempts = defaultSubscribeAttempts
	}
	if opts.SubscribeDelay <= 0 {
		opts.SubscribeDelay = defaultSubscribeDelay
	}
	return &Feed{
		viewerID:    viewerID,
		store:       store,
		subscriber:  subscriber,
		logger:      logger.With(zap.String("viewer_id", viewerID)),
		callTimeout: opts.CallTimeout,
		attempts:    opts.SubscribeAttempts,
		retryDelay:  opts.SubscribeDelay,
		inbox:       make(chan any, 64),
		views:       make(chan View, 1),
		done:        make(chan struct{}),
		held:        NewHeldSet(initial),
		requested:   make(map[string]struct{}),
	}
}

type selectCmd struct {
	projectID string
	done      chan struct{}
}

type sendCmd struct {
	projectID string
	body      string
	reply     chan sendReply
}

type sendReply struct {
	msg *domain.Message
	err error
}

type snapshotCmd struct {
	reply chan View
}

type sendDone struct {
	msg   *domain.Message
	err   error
	reply chan sendReply
}

type subscribed struct {
	gen       uint64
	projectID string
	sub       realtime.Subscription
	err       error
}

type changeEvent struct {
	gen    uint64
	change realtime.Change
}

type subscriptionLost struct {
	gen uint64
}

type refetched struct {
	gen       uint64
	projectID string
	msgs      []domain.Message
	err       error
}

type markReadDone struct {
	projectID string
	ids       []string
	err       error
}

// Run processes commands and events until ctx is cancelled. It closes the
// live subscription on return. Run returns ErrUnavailable once every attempt
// to subscribe to the selected project has failed.
func (f *Feed) Run(ctx context.Context) error {
	defer close(f.done)
	defer f.closeSubscription()

	f.emit()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-f.inbox:
			f.handle(ctx, ev)
			if f.failed != nil {
				return f.failed
			}
		}
	}
}

// Views streams the latest view. Intermediate views may be skipped when the
// reader is slower than the feed.
func (f *Feed) Views() <-chan View {
	return f.views
}

// Select switches the feed to projectID. It returns once the switch is
// applied; the new subscription is set up in the background.
func (f *Feed) Select(ctx context.Context, projectID string) error {
	cmd := selectCmd{projectID: projectID, done: make(chan struct{})}
	if err := f.submit(ctx, cmd); err != nil {
		return err
	}
	select {
	case <-cmd.done:
		return nil
	case <-f.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send posts body to projectID as the viewer. The body is rejected without
// touching the store when it is blank or projectID is not selected.
func (f *Feed) Send(ctx context.Context, projectID, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}
	cmd := sendCmd{projectID: projectID, body: body, reply: make(chan sendReply, 1)}
	if err := f.submit(ctx, cmd); err != nil {
		return nil, err
	}
	select {
	case r := <-cmd.reply:
		return r.msg, r.err
	case <-f.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Snapshot returns the current view.
func (f *Feed) Snapshot(ctx context.Context) (View, error) {
	cmd := snapshotCmd{reply: make(chan View, 1)}
	if err := f.submit(ctx, cmd); err != nil {
		return View{}, err
	}
	select {
	case v := <-cmd.reply:
		return v, nil
	case <-f.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (f *Feed) submit(ctx context.Context, cmd any) error {
	select {
	case f.inbox <- cmd:
		return nil
	case <-f.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post delivers a background result to the loop. It reports false when the
// feed has stopped.
func (f *Feed) post(ctx context.Context, ev any) bool {
	select {
	case f.inbox <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (f *Feed) handle(ctx context.Context, ev any) {
	switch ev := ev.(type) {
	case selectCmd:
		f.selectProject(ctx, ev.projectID)
		close(ev.done)
	case sendCmd:
		f.send(ctx, ev)
	case snapshotCmd:
		ev.reply <- f.view()
	case sendDone:
		// The store returned the canonical row; applying it here keeps the
		// sender's view correct when the realtime echo is late or dropped.
		if ev.err == nil {
			f.apply(ctx, realtime.KindInsert, *ev.msg)
		}
		ev.reply <- sendReply{msg: ev.msg, err: ev.err}
	case subscribed:
		f.subscribed(ctx, ev)
	case changeEvent:
		var msg domain.Message
		if err := ev.change.Decode(&msg); err != nil {
			f.logger.Warn("ignoring undecodable message change", zap.Error(err))
			return
		}
		f.apply(ctx, ev.change.Kind, msg)
	case subscriptionLost:
		if ev.gen != f.gen || f.sub == nil {
			return
		}
		f.logger.Info("message subscription lost; resubscribing", zap.String("project_id", f.selected))
		f.sub = nil
		f.gen++
		f.subscribe(ctx, f.gen, f.selected)
	case refetched:
		if ev.err != nil {
			f.logger.Warn("refetch after subscribe failed", zap.String("project_id", ev.projectID), zap.Error(ev.err))
			return
		}
		for _, msg := range ev.msgs {
			if cur, ok := f.held.Get(msg.ID); ok && stale(cur, msg) {
				continue
			}
			f.held.Apply(realtime.KindUpdate, msg)
		}
		f.changed(ctx, ev.projectID)
	case markReadDone:
		if ev.err != nil {
			f.logger.Debug("mark read failed", zap.String("project_id", ev.projectID), zap.Error(ev.err))
			return
		}
		for projectID := range f.held.MarkRead(ev.ids) {
			f.changed(ctx, projectID)
		}
	}
}

func (f *Feed) selectProject(ctx context.Context, projectID string) {
	f.closeSubscription()
	f.gen++
	f.selected = projectID
	if projectID != "" {
		f.subscribe(ctx, f.gen, projectID)
	}
	f.emit()
	f.markVisibleRead(ctx)
}

// subscribe sets up the subscription for gen in the background, retrying
// with backoff. A later select or close cancels pending attempts.
func (f *Feed) subscribe(ctx context.Context, gen uint64, projectID string) {
	if f.subCancel != nil {
		f.subCancel()
	}
	subCtx, cancel := context.WithCancel(ctx)
	f.subCancel = cancel

	go func() {
		var sub realtime.Subscription
		err := retry.Do(
			func() error {
				callCtx, cancelCall := context.WithTimeout(subCtx, f.callTimeout)
				defer cancelCall()
				s, err := f.subscriber.Subscribe(callCtx, MessagesTable, realtime.Eq("project_id", projectID))
				if err != nil {
					return err
				}
				sub = s
				return nil
			},
			retry.Context(subCtx),
			retry.Attempts(f.attempts),
			retry.Delay(f.retryDelay),
			retry.MaxDelay(maxSubscribeDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				f.logger.Debug("retrying message subscription",
					zap.String("project_id", projectID),
					zap.Uint("attempt", n+1),
					zap.Error(err),
				)
			}),
		)
		if !f.post(ctx, subscribed{gen: gen, projectID: projectID, sub: sub, err: err}) && sub != nil {
			_ = sub.Close()
		}
	}()
}

func (f *Feed) subscribed(ctx context.Context, ev subscribed) {
	if ev.gen != f.gen {
		if ev.sub != nil {
			_ = ev.sub.Close()
		}
		return
	}
	if ev.err != nil {
		f.logger.Error("message subscription failed", zap.String("project_id", ev.projectID), zap.Error(ev.err))
		f.failed = fmt.Errorf("%w: %v", ErrUnavailable, ev.err)
		return
	}
	f.sub = ev.sub
	go f.pump(ctx, ev.gen, ev.sub)

	go func() {
		callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
		defer cancel()
		msgs, err := f.store.ListByProject(callCtx, ev.projectID)
		f.post(ctx, refetched{gen: ev.gen, projectID: ev.projectID, msgs: msgs, err: err})
	}()
}

func (f *Feed) pump(ctx context.Context, gen uint64, sub realtime.Subscription) {
	for change := range sub.Events() {
		if !f.post(ctx, changeEvent{gen: gen, change: change}) {
			return
		}
	}
	f.post(ctx, subscriptionLost{gen: gen})
}

func (f *Feed) closeSubscription() {
	if f.subCancel != nil {
		f.subCancel()
		f.subCancel = nil
	}
	if f.sub == nil {
		return
	}
	if err := f.sub.Close(); err != nil {
		f.logger.Debug("close message subscription", zap.Error(err))
	}
	f.sub = nil
}

func (f *Feed) send(ctx context.Context, cmd sendCmd) {
	if cmd.projectID == "" || cmd.projectID != f.selected {
		cmd.reply <- sendReply{err: ErrProjectNotSelected}
		return
	}
	msg := &domain.Message{
		ProjectID:   cmd.projectID,
		SenderID:    f.viewerID,
		Body:        cmd.body,
		Attachments: []domain.Attachment{},
		Read:        false,
	}
	go func() {
		callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
		defer cancel()
		err := f.store.Insert(callCtx, msg)
		if err != nil {
			err = fmt.Errorf("send message: %w", err)
		}
		if !f.post(ctx, sendDone{msg: msg, err: err, reply: cmd.reply}) {
			cmd.reply <- sendReply{msg: msg, err: err}
		}
	}()
}

func (f *Feed) apply(ctx context.Context, kind realtime.Kind, msg domain.Message) {
	if f.held.Apply(kind, msg) {
		f.changed(ctx, msg.ProjectID)
	}
}

// changed refreshes the view after projectID's messages changed. Changes to
// other projects still move the counts.
func (f *Feed) changed(ctx context.Context, projectID string) {
	f.emit()
	if projectID == f.selected {
		f.markVisibleRead(ctx)
	}
}

func (f *Feed) markVisibleRead(ctx context.Context) {
	if f.selected == "" {
		return
	}
	var ids []string
	for _, id := range f.held.UnreadFrom(f.selected, f.viewerID) {
		if _, ok := f.requested[id]; ok {
			continue
		}
		f.requested[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return
	}
	projectID := f.selected
	go func() {
		callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
		defer cancel()
		_, err := f.store.MarkRead(callCtx, projectID, f.viewerID, ids)
		f.post(ctx, markReadDone{projectID: projectID, ids: ids, err: err})
	}()
}

// stale reports whether a refetched row is older than the held copy. A
// refetch that raced a mark-read must not flip is_read back.
func stale(cur, next domain.Message) bool {
	return next.UpdatedAt.Before(cur.UpdatedAt) || (cur.Read && !next.Read)
}

func (f *Feed) view() View {
	return View{
		ProjectID: f.selected,
		Messages:  f.held.Visible(f.selected),
		Counts:    f.held.Counts(f.viewerID),
	}
}

// emit replaces any unread view with the current one.
func (f *Feed) emit() {
	v := f.view()
	select {
	case <-f.views:
	default:
	}
	f.views <- v
}
