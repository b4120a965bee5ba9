package model

import "time"

// PaymentKind separates charges collected from posters and transfers paid to workers.
type PaymentKind string

const (
	PaymentKindCharge   PaymentKind = "charge"
	PaymentKindTransfer PaymentKind = "transfer"
)

// Payment records one money movement through the payment gateway.
type Payment struct {
	ID              uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind            PaymentKind   `gorm:"type:text;not null;index" json:"kind"`
	JobID           uint          `gorm:"not null;index" json:"job_id"`
	PayerID         uint          `gorm:"not null;index" json:"payer_id"`
	WorkerID        *uint         `gorm:"index" json:"worker_id,omitempty"`
	Amount          float64       `gorm:"not null" json:"amount"`
	ServiceFee      float64       `gorm:"not null;default:0" json:"service_fee"`
	Status          PaymentStatus `gorm:"type:text;not null;default:pending;index" json:"status"`
	TransactionID   *string       `gorm:"type:text;index" json:"transaction_id,omitempty"`
	PaymentIntentID *string       `gorm:"type:text;uniqueIndex" json:"payment_intent_id,omitempty"`
	FailureReason   string        `gorm:"type:text" json:"failure_reason,omitempty"`
	Description     string        `gorm:"type:text" json:"description"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Earning is a worker's entitlement for a completed job.
type Earning struct {
	ID            uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID         uint          `gorm:"not null;uniqueIndex" json:"job_id"`
	WorkerID      uint          `gorm:"not null;index" json:"worker_id"`
	Amount        float64       `gorm:"not null" json:"amount"`
	ServiceFee    float64       `gorm:"not null;default:0" json:"service_fee"`
	NetAmount     float64       `gorm:"not null" json:"net_amount"`
	Status        EarningStatus `gorm:"type:text;not null;default:pending" json:"status"`
	TransactionID *string       `gorm:"type:text" json:"transaction_id,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// WebhookEvent is the ledger of gateway events already applied.
type WebhookEvent struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID     string    `gorm:"type:text;uniqueIndex;not null" json:"event_id"`
	Type        string    `gorm:"type:text;not null" json:"type"`
	ProcessedAt time.Time `json:"processed_at"`
}
