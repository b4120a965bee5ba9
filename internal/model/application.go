package model

import "time"

// Application represents a worker's bid on a job.
type Application struct {
	ID               uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID            uint              `gorm:"not null;index" json:"job_id"`
	WorkerID         uint              `gorm:"not null;index" json:"worker_id"`
	Status           ApplicationStatus `gorm:"type:text;not null;default:pending" json:"status"`
	Message          string            `gorm:"type:text" json:"message"`
	HourlyRate       *float64          `json:"hourly_rate,omitempty"`
	ExpectedDuration string            `gorm:"type:text" json:"expected_duration"`
	DateApplied      time.Time         `json:"date_applied"`
	UpdatedAt        time.Time         `json:"updated_at"`
}
