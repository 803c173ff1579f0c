package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/cosmiccode/portal/internal/domain"
	"github.com/cosmiccode/portal/internal/repository"
	apperrors "github.com/cosmiccode/portal/pkg/util/errorutil"
)

// visibleProject loads a project the user may see. Projects of other
// clients are reported as missing.
func visibleProject(ctx context.Context, projects repository.ProjectRepository, user *domain.User, projectID string) (*domain.Project, error) {
	notFound := apperrors.NewNotFound("project", map[string]any{"project_id": projectID})
	if projectID == "" {
		return nil, notFound
	}
	project, err := projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		return nil, err
	}
	if !user.IsAdmin() && project.ClientID != user.ID {
		return nil, notFound
	}
	return project, nil
}

// ownerOf returns the client a new record belongs to: the project's client
// when a project is given, otherwise the acting user.
func ownerOf(user *domain.User, project *domain.Project) string {
	if project != nil {
		return project.ClientID
	}
	return user.ID
}
