package notification

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/winestore/internal/application"
	domnotif "github.com/Zhima-Mochi/winestore/internal/domain/notification"
)

type Service struct {
	repo domnotif.Repository
}

func NewService(repo domnotif.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Mine(ctx context.Context, userID string) ([]*domnotif.Notification, error) {
	if userID == "" {
		return nil, application.ErrUnauthorized
	}
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, application.Wrap(application.ErrInternal, err)
	}
	return list, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.repo.MarkRead(ctx, userID, id); err != nil {
		if errors.Is(err, domnotif.ErrNotFound) {
			return application.Wrap(application.ErrNotFound, err)
		}
		return application.Wrap(application.ErrInternal, err)
	}
	return nil
}
