package repository

import (
	"context"

	"Fixer-backend/internal/model"
)

func (s *Store) CreateAttachment(ctx context.Context, a *model.Attachment) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *Store) GetAttachment(ctx context.Context, id uint) (*model.Attachment, error) {
	var a model.Attachment
	if err := s.first(ctx, &a, "attachment", id, "id = ?", id); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAttachments(ctx context.Context, jobID uint) ([]model.Attachment, error) {
	var out []model.Attachment
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("id ASC").Find(&out).Error
	return out, err
}
