package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cosmiccode/portal/internal/domain"
	"github.com/cosmiccode/portal/internal/repository"
	"github.com/cosmiccode/portal/internal/storage"
	apperrors "github.com/cosmiccode/portal/pkg/util/errorutil"
)

// UploadInput describes one uploaded file.
type UploadInput struct {
	ProjectID   string
	Description string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// DocumentService stores project files and their metadata.
type DocumentService struct {
	documents repository.DocumentRepository
	projects  repository.ProjectRepository
	store     storage.Store
	logger    *zap.Logger
	now       func() time.Time
}

// DocumentDependencies bundles collaborators for the document service.
type DocumentDependencies struct {
	DocumentRepo repository.DocumentRepository
	ProjectRepo  repository.ProjectRepository
	Store        storage.Store
	Logger       *zap.Logger
}

// NewDocumentService builds the service.
func NewDocumentService(deps DocumentDependencies) *DocumentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		documents: deps.DocumentRepo,
		projects:  deps.ProjectRepo,
		store:     deps.Store,
		logger:    logger,
		now:       time.Now,
	}
}

// Upload writes the file under the uploader's prefix, then records it.
func (s *DocumentService) Upload(ctx context.Context, user *domain.User, input UploadInput) (*domain.Document, error) {
	if input.Body == nil || strings.TrimSpace(input.FileName) == "" {
		return nil, apperrors.NewValidationError("file is required", map[string]any{"file": "required"})
	}
	if strings.TrimSpace(input.ProjectID) == "" {
		return nil, apperrors.NewValidationError("project is required", map[string]any{"project_id": "required"})
	}
	project, err := visibleProject(ctx, s.projects, user, input.ProjectID)
	if err != nil {
		return nil, err
	}

	key := s.objectKey(user.ID, input.FileName)
	url, err := s.store.Upload(ctx, key, input.Body, input.Size, input.ContentType)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, apperrors.NewDomainError("PAYLOAD_TOO_LARGE", "file is too large", http.StatusRequestEntityTooLarge, nil)
		}
		return nil, apperrors.NewUpstreamError("failed to store file", err)
	}

	doc := &domain.Document{
		ProjectID:  project.ID,
		FileName:   filepath.Base(input.FileName),
		FileURL:    url,
		UploadedBy: &user.ID,
	}
	if input.ContentType != "" {
		ct := input.ContentType
		doc.FileType = &ct
	}
	if input.Size >= 0 {
		size := input.Size
		doc.FileSize = &size
	}
	if d := strings.TrimSpace(input.Description); d != "" {
		doc.Description = &d
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("record document: %w", err)
	}
	s.logger.Info("document uploaded", zap.String("document_id", doc.ID), zap.String("key", key))
	return doc, nil
}

// objectKey builds "<userID>/<unix-ms>-<random>.<ext>".
func (s *DocumentService) objectKey(userID, fileName string) string {
	name := fmt.Sprintf("%d-%s", s.now().UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	if ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), ".")); ext != "" && isSafeExt(ext) {
		name += "." + ext
	}
	return userID + "/" + name
}

func isSafeExt(ext string) bool {
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return len(ext) <= 16
}
