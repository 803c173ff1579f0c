package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/cosmiccode/portal/internal/api/dto"
	"github.com/cosmiccode/portal/internal/auth"
	"github.com/cosmiccode/portal/internal/domain"
	"github.com/cosmiccode/portal/internal/feed"
	"github.com/cosmiccode/portal/internal/observability"
)

const (
	writeWait       = 10 * time.Second
	feedUnavailable = "live updates unavailable, reconnect"
)

// FeedOpener seeds live feeds and checks project visibility.
type FeedOpener interface {
	OpenFeed(ctx context.Context, user *domain.User) (*feed.Feed, []domain.Project, error)
	CanView(ctx context.Context, user *domain.User, projectID string) error
}

// FeedSocketHandler runs one live message feed per websocket connection.
type FeedSocketHandler struct {
	feeds        FeedOpener
	pingInterval time.Duration
	logger       *zap.Logger
	metrics      *observability.Metrics
}

// NewFeedSocketHandler returns a new handler instance.
func NewFeedSocketHandler(feeds FeedOpener, pingInterval time.Duration, logger *zap.Logger, metrics *observability.Metrics) *FeedSocketHandler {
	return &FeedSocketHandler{feeds: feeds, pingInterval: pingInterval, logger: logger, metrics: metrics}
}

// Upgrade lets only websocket handshakes through.
func (h *FeedSocketHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// Handler returns the fiber handler performing the upgrade.
func (h *FeedSocketHandler) Handler() fiber.Handler {
	return websocket.New(h.Serve)
}

// Serve owns one connection. Closing the socket cancels the feed, which
// tears down its subscription.
func (h *FeedSocketHandler) Serve(conn *websocket.Conn) {
	principal, ok := conn.Locals(auth.PrincipalLocalsKey).(*auth.Principal)
	if !ok || principal.User == nil {
		_ = conn.Close()
		return
	}
	user := principal.User
	logger := h.logger.With(zap.String("user_id", user.ID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, projects, err := h.feeds.OpenFeed(ctx, user)
	if err != nil {
		logger.Error("open feed", zap.Error(err))
		_ = conn.WriteJSON(dto.NewErrorFrame("failed to load messages"))
		_ = conn.Close()
		return
	}
	h.metrics.FeedOpened()
	defer h.metrics.FeedClosed()

	done := make(chan struct{})
	failed := make(chan error, 1)
	go func() {
		defer close(done)
		if err := f.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("feed stopped", zap.Error(err))
			failed <- err
		}
	}()

	session := &feedSession{ctx: ctx, feed: f, feeds: h.feeds, user: user, out: make(chan any, 16), logger: logger}
	if len(projects) > 0 {
		if err := f.Select(ctx, projects[0].ID); err != nil {
			logger.Debug("initial select", zap.Error(err))
		}
	}

	go func() {
		defer cancel()
		if h.writeLoop(ctx, conn, f, session.out, failed) {
			// Unblocks the reader so the client sees the close and reconnects.
			_ = conn.Close()
		}
	}()

	readWait := 2 * h.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
	for {
		var frame dto.ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("feed socket read", zap.Error(err))
			}
			break
		}
		session.handle(frame)
	}

	cancel()
	<-done
	_ = conn.Close()
}

// writeLoop is the only writer on conn. It reports true when it stopped
// because the feed failed.
func (h *FeedSocketHandler) writeLoop(ctx context.Context, conn *websocket.Conn, f *feed.Feed, out <-chan any, failed <-chan error) bool {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	write := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v) == nil
	}
	for {
		select {
		case <-ctx.Done():
			return false
		case <-failed:
			write(dto.NewErrorFrame(feedUnavailable))
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, feedUnavailable),
				time.Now().Add(writeWait))
			return true
		case v := <-f.Views():
			if !write(dto.NewViewFrame(v)) {
				return false
			}
		case frame := <-out:
			if !write(frame) {
				return false
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return false
			}
		}
	}
}

type feedSession struct {
	ctx    context.Context
	feed   *feed.Feed
	feeds  FeedOpener
	user   *domain.User
	out    chan any
	logger *zap.Logger
}

func (s *feedSession) reply(frame any) {
	select {
	case s.out <- frame:
	case <-s.ctx.Done():
	}
}

func (s *feedSession) handle(frame dto.ClientFrame) {
	switch frame.Type {
	case dto.FrameSelect:
		if err := s.feeds.CanView(s.ctx, s.user, frame.ProjectID); err != nil {
			s.reply(dto.NewErrorFrame("project not found"))
			return
		}
		if err := s.feed.Select(s.ctx, frame.ProjectID); err != nil {
			s.reply(dto.NewErrorFrame(err.Error()))
		}
	case dto.FrameSend:
		// Sends run concurrently so a slow insert does not stall selects.
		go s.send(frame.ProjectID, frame.Body)
	default:
		s.reply(dto.NewErrorFrame("unknown frame type"))
	}
}

func (s *feedSession) send(projectID, body string) {
	msg, err := s.feed.Send(s.ctx, projectID, body)
	if err == nil {
		s.reply(dto.SendResultFrame{Type: dto.FrameSendResult, OK: true, Message: msg})
		return
	}
	result := dto.SendResultFrame{Type: dto.FrameSendResult, Body: body}
	switch {
	case errors.Is(err, feed.ErrEmptyBody), errors.Is(err, feed.ErrProjectNotSelected):
		result.Error = err.Error()
	default:
		s.logger.Warn("send message", zap.String("project_id", projectID), zap.Error(err))
		result.Error = "failed to send message"
	}
	s.reply(result)
}
