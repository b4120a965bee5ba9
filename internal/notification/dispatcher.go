// Package notification persists user notifications and fans them out to
// realtime, e-mail and SMS channels.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/metrics"
	"Fixer-backend/internal/model"
	"Fixer-backend/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
	deliveryTimeout = 10 * time.Second
)

// Input describes one notification to create.
type Input struct {
	UserID     uint
	Type       model.NotificationType
	Title      string
	Message    string
	SourceID   *uint
	SourceType string
	Metadata   map[string]interface{}
}

// Channel delivers a stored notification outside the database.
type Channel interface {
	Name() string
	Accepts(t model.NotificationType) bool
	Deliver(ctx context.Context, recipient *model.User, n *model.Notification) error
}

// Dispatcher is the single entry point for creating and reading notifications.
type Dispatcher struct {
	store    *repository.Store
	channels []Channel
	log      logger.Logger
	wg       sync.WaitGroup
	now      func() time.Time
}

func NewDispatcher(store *repository.Store, log logger.Logger, channels ...Channel) *Dispatcher {
	return &Dispatcher{
		store:    store,
		channels: channels,
		log:      log,
		now:      time.Now,
	}
}

// Notify persists the notification, then hands it to every accepting
// channel in the background. Channel failures never fail the call.
func (d *Dispatcher) Notify(ctx context.Context, in Input) (*model.Notification, error) {
	if in.UserID == 0 || in.Type == "" || in.Title == "" {
		return nil, apperror.Validation("notification requires user, type and title")
	}

	n := &model.Notification{
		UserID:     in.UserID,
		Title:      in.Title,
		Message:    in.Message,
		Type:       in.Type,
		SourceID:   in.SourceID,
		SourceType: in.SourceType,
		CreatedAt:  d.now(),
	}
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode notification metadata: %w", err)
		}
		n.Metadata = datatypes.JSON(raw)
	}

	if err := d.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}

	var targets []Channel
	for _, ch := range d.channels {
		if ch.Accepts(n.Type) {
			targets = append(targets, ch)
		}
	}
	if len(targets) > 0 {
		d.wg.Add(1)
		go d.deliver(*n, targets)
	}
	return n, nil
}

func (d *Dispatcher) deliver(n model.Notification, targets []Channel) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	recipient, err := d.store.GetUser(ctx, n.UserID)
	if err != nil {
		d.log.Warn("notification recipient lookup failed", map[string]interface{}{
			"notification_id": n.ID,
			"error":           err.Error(),
		})
		return
	}

	for _, ch := range targets {
		if err := ch.Deliver(ctx, recipient, &n); err != nil {
			metrics.NotificationsDelivered.WithLabelValues(ch.Name(), "error").Inc()
			d.log.Warn("notification delivery failed", map[string]interface{}{
				"channel":         ch.Name(),
				"notification_id": n.ID,
				"error":           err.Error(),
			})
			continue
		}
		metrics.NotificationsDelivered.WithLabelValues(ch.Name(), "ok").Inc()
	}
}

// Wait blocks until background deliveries started so far have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) List(ctx context.Context, userID uint, f repository.NotificationFilter) ([]model.Notification, error) {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	return d.store.ListNotifications(ctx, userID, f)
}

func (d *Dispatcher) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return d.store.CountUnreadNotifications(ctx, userID)
}

// MarkRead marks one of the caller's notifications as read. Marking an
// already read notification is a no-op.
func (d *Dispatcher) MarkRead(ctx context.Context, userID, id uint) (*model.Notification, error) {
	n, err := d.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}

	at := d.now()
	if err := d.store.MarkNotificationRead(ctx, id, userID, at); err != nil {
		return nil, err
	}
	n.IsRead = true
	n.ReadAt = &at
	return n, nil
}

func (d *Dispatcher) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return d.store.MarkAllNotificationsRead(ctx, userID, d.now())
}

func (d *Dispatcher) Delete(ctx context.Context, userID, id uint) error {
	if _, err := d.owned(ctx, userID, id); err != nil {
		return err
	}
	return d.store.DeleteNotification(ctx, id, userID)
}

func (d *Dispatcher) owned(ctx context.Context, userID, id uint) (*model.Notification, error) {
	n, err := d.store.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, apperror.Authorization("notification %d belongs to another user", id)
	}
	return n, nil
}

// Money formats an amount for notification copy.
func Money(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}
