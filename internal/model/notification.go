package model

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType is the closed set of notification kinds.
type NotificationType string

const (
	NotificationNewApplication           NotificationType = "new_application"
	NotificationApplicationStatusUpdated NotificationType = "application_status_updated"
	NotificationJobStarted               NotificationType = "job_started"
	NotificationJobCompleted             NotificationType = "job_completed"
	NotificationJobCanceled              NotificationType = "job_canceled"
	NotificationPaymentReceived          NotificationType = "payment_received"
	NotificationPaymentSent              NotificationType = "payment_sent"
	NotificationPaymentReleased          NotificationType = "payment_released"
	NotificationPaymentFailed            NotificationType = "payment_failed"
	NotificationPaymentReversed          NotificationType = "payment_reversed"
	NotificationAccountStatusUpdated     NotificationType = "account_status_updated"
)

// Source types referenced by Notification.SourceType
const (
	SourceJob         = "job"
	SourceApplication = "application"
	SourcePayment     = "payment"
	SourceAccount     = "account"
)

// Notification is a persisted message for one user.
type Notification struct {
	ID         uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint             `gorm:"not null;index" json:"user_id"`
	Title      string           `gorm:"type:text;not null" json:"title"`
	Message    string           `gorm:"type:text;not null" json:"message"`
	Type       NotificationType `gorm:"type:text;not null;index" json:"type"`
	SourceID   *uint            `json:"source_id,omitempty"`
	SourceType string           `gorm:"type:text" json:"source_type,omitempty"`
	IsRead     bool             `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt     *time.Time       `json:"read_at,omitempty"`
	Metadata   datatypes.JSON   `json:"metadata,omitempty" swaggertype:"object"`
	CreatedAt  time.Time        `json:"created_at"`
}
