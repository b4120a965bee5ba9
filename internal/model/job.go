package model

import "time"

// Payment types of a job
const (
	PayFixed  = "fixed"
	PayHourly = "hourly"
)

// Coordinates is a reported or stored WGS84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude float64 `json:"longitude" binding:"min=-180,max=180"`
}

// Job is gorm model for a posted gig. Jobs are never hard-deleted.
type Job struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title             string    `gorm:"type:text;not null" json:"title"`
	Description       string    `gorm:"type:text" json:"description"`
	Category          string    `gorm:"type:text;index" json:"category"`
	PaymentType       string    `gorm:"type:text;not null" json:"payment_type"`
	PaymentAmount     float64   `gorm:"not null" json:"payment_amount"`
	ServiceFee        float64   `gorm:"not null;default:0" json:"service_fee"`
	TotalAmount       float64   `gorm:"not null" json:"total_amount"`
	Address           string    `gorm:"type:text" json:"address"`
	Latitude          float64   `gorm:"index" json:"latitude"`
	Longitude         float64   `gorm:"index" json:"longitude"`
	DateNeeded        time.Time `json:"date_needed"`
	RequiredSkills    []string  `gorm:"type:text;serializer:json" json:"required_skills"`
	EquipmentProvided bool      `json:"equipment_provided"`

	PosterID uint      `gorm:"not null;index" json:"poster_id"`
	WorkerID *uint     `gorm:"index" json:"worker_id"`
	Status   JobStatus `gorm:"type:text;not null;default:open;index" json:"status"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Location returns the job site coordinates.
func (j *Job) Location() Coordinates {
	return Coordinates{Latitude: j.Latitude, Longitude: j.Longitude}
}

// AssignedTo reports whether userID is the assigned worker.
func (j *Job) AssignedTo(userID uint) bool {
	return j.WorkerID != nil && *j.WorkerID == userID
}
