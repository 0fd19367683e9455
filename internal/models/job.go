package models

import (
	"time"
)

// Job is a durable deferred task. The primary key doubles as the dedupe key.
type Job struct {
	ID              string     `gorm:"primaryKey;type:varchar(191)"`
	Type            string     `gorm:"type:varchar(50);not null;index"`
	Payload         string     `gorm:"type:text"`
	Status          string     `gorm:"type:varchar(20);not null;index:idx_job_due,priority:1"`
	RunAt           time.Time  `gorm:"not null;index:idx_job_due,priority:2"`
	IntervalSeconds int64      `gorm:"default:0"` // > 0 for recurring jobs
	Attempts        int        `gorm:"default:0"`
	LastError       string     `gorm:"type:text"`
	LockedUntil     *time.Time `gorm:"index"`
	FinishedAt      *time.Time `gorm:"index"`
	CreatedAt       time.Time  `gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime"`
}

// Job status constants
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

func (Job) TableName() string {
	return "jobs"
}

func (j *Job) IsRecurring() bool {
	return j.IntervalSeconds > 0
}

func (j *Job) Interval() time.Duration {
	return time.Duration(j.IntervalSeconds) * time.Second
}
