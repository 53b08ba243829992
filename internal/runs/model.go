package runs

import "time"

// JobRun is one execution attempt, append-only. Corrections are new
// rows, never updates.
type JobRun struct {
	ID           string    `gorm:"primaryKey"`
	JobName      string    `gorm:"index;not null"`
	JobKind      string    `gorm:"not null"`
	ObjectName   string    `gorm:"not null;default:''"`
	SourceFile   string    `gorm:"not null;default:''"`
	RefreshSQL   string    `gorm:"type:text;not null;default:''"`
	StartedAt    time.Time `gorm:"index;not null"`
	FinishedAt   time.Time `gorm:"not null"`
	DurationMS   float64   `gorm:"not null"`
	RowsAffected *int64
	Success      bool    `gorm:"not null"`
	Message      *string `gorm:"type:text"`
}

func (JobRun) TableName() string { return "job_runs" }
