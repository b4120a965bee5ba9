package repository

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"Fixer-backend/internal/model"
)

// ClaimWebhookEvent records eventID in the ledger. It returns false when the
// event was claimed before, meaning this delivery is a replay.
func (s *Store) ClaimWebhookEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	ev := model.WebhookEvent{EventID: eventID, Type: eventType, ProcessedAt: time.Now()}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseWebhookEvent drops a claim so a redelivery can be processed again.
func (s *Store) ReleaseWebhookEvent(ctx context.Context, eventID string) error {
	return s.db.WithContext(ctx).Where("event_id = ?", eventID).Delete(&model.WebhookEvent{}).Error
}
