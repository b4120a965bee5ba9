package repository

import (
	"context"
	"time"

	"Fixer-backend/internal/model"
)

// NotificationFilter pages through a user's notifications.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *Store) GetNotification(ctx context.Context, id uint) (*model.Notification, error) {
	var n model.Notification
	if err := s.first(ctx, &n, "notification", id, "id = ?", id); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID uint, f NotificationFilter) ([]model.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if f.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var out []model.Notification
	err := q.Order("created_at DESC").Order("id DESC").Find(&out).Error
	return out, err
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkNotificationRead sets is_read on one notification owned by userID.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID uint, at time.Time) error {
	return s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": at}).Error
}

// MarkAllNotificationsRead marks every unread notification of userID and returns how many changed.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID uint, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteNotification(ctx context.Context, id, userID uint) error {
	return s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Notification{}).Error
}
