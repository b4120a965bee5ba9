package model

import "time"

// Attachment is a file uploaded for a job, kept in object storage.
type Attachment struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID       uint      `gorm:"not null;index" json:"job_id"`
	UploaderID  uint      `gorm:"not null" json:"uploader_id"`
	ObjectKey   string    `gorm:"type:text;not null" json:"-"`
	FileName    string    `gorm:"type:text" json:"file_name"`
	ContentType string    `gorm:"type:text" json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}
