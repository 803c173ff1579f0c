package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/cosmiccode/portal/internal/domain"
	"github.com/cosmiccode/portal/internal/feed"
	"github.com/cosmiccode/portal/internal/realtime"
	"github.com/cosmiccode/portal/internal/repository"
	apperrors "github.com/cosmiccode/portal/pkg/util/errorutil"
)

// MessageService writes project messages and announces every change on the
// realtime hub. It is the store behind each live feed.
type MessageService struct {
	messages repository.MessageRepository
	projects repository.ProjectRepository
	hub      realtime.Hub
	logger   *zap.Logger
	feedOpts feed.Options
}

// MessageDependencies bundles collaborators for the message service.
type MessageDependencies struct {
	MessageRepo repository.MessageRepository
	ProjectRepo repository.ProjectRepository
	Hub         realtime.Hub
	Logger      *zap.Logger
	FeedOptions feed.Options
}

// NewMessageService builds the service.
func NewMessageService(deps MessageDependencies) *MessageService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{
		messages: deps.MessageRepo,
		projects: deps.ProjectRepo,
		hub:      deps.Hub,
		logger:   logger,
		feedOpts: deps.FeedOptions,
	}
}

var _ feed.Store = (*MessageService)(nil)

// ListByProject returns a project's messages oldest first.
func (s *MessageService) ListByProject(ctx context.Context, projectID string) ([]domain.Message, error) {
	return s.messages.ListByProject(ctx, projectID)
}

// Insert stores msg and publishes the insert.
func (s *MessageService) Insert(ctx context.Context, msg *domain.Message) error {
	if err := s.messages.Create(ctx, msg); err != nil {
		return err
	}
	s.publish(ctx, realtime.KindInsert, *msg)
	return nil
}

// MarkRead flags the listed unread messages of a project as read, never
// touching those sent by viewerID, and publishes one update per changed row.
func (s *MessageService) MarkRead(ctx context.Context, projectID, viewerID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	updated, err := s.messages.MarkRead(ctx, projectID, viewerID, ids)
	if err != nil {
		return 0, err
	}
	for _, msg := range updated {
		s.publish(ctx, realtime.KindUpdate, msg)
	}
	return int64(len(updated)), nil
}

func (s *MessageService) publish(ctx context.Context, kind realtime.Kind, msg domain.Message) {
	if s.hub == nil {
		return
	}
	change, err := realtime.NewChange(kind, feed.MessagesTable, msg, map[string]string{"project_id": msg.ProjectID})
	if err == nil {
		err = s.hub.Publish(ctx, change)
	}
	if err != nil {
		s.logger.Warn("publish message change failed",
			zap.String("kind", string(kind)),
			zap.String("message_id", msg.ID),
			zap.Error(err))
	}
}

// Send posts a message outside a live feed. The body is validated before
// any store call.
func (s *MessageService) Send(ctx context.Context, user *domain.User, projectID, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("message body is required", map[string]any{"message": "required"})
	}
	if _, err := visibleProject(ctx, s.projects, user, projectID); err != nil {
		return nil, err
	}
	msg := &domain.Message{
		ProjectID:   projectID,
		SenderID:    user.ID,
		Body:        body,
		Attachments: []domain.Attachment{},
	}
	if err := s.Insert(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// CanView reports an error unless user may open projectID's feed.
func (s *MessageService) CanView(ctx context.Context, user *domain.User, projectID string) error {
	_, err := visibleProject(ctx, s.projects, user, projectID)
	return err
}

// OpenFeed seeds a live feed with every message the user can see. The
// returned projects are newest first.
func (s *MessageService) OpenFeed(ctx context.Context, user *domain.User) (*feed.Feed, []domain.Project, error) {
	scope := repository.ScopeFor(user)
	projects, err := s.projects.List(ctx, scope)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.messages.List(ctx, scope)
	if err != nil {
		return nil, nil, err
	}
	f := feed.New(user.ID, s, s.hub, msgs, s.logger, s.feedOpts)
	return f, projects, nil
}
