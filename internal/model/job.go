package model

type JobStatus string

const (
	StatusQueued  JobStatus = "queued"
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusError   JobStatus = "error"
)

// Terminal reports whether no further transition can happen from s
func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusError
}

type Job struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Owner      string    `gorm:"index;not null" json:"owner"`
	InputID    string    `gorm:"not null" json:"inputId"`
	OutputID   string    `gorm:"not null" json:"outputId"`
	Status     JobStatus `gorm:"not null" json:"status"`
	StartedAt  *int64    `json:"startedAt"`
	FinishedAt *int64    `json:"finishedAt"`
	Error      *string   `json:"error"`
	CreatedAt  int64     `gorm:"autoCreateTime:false" json:"createdAt"` // All timestamps are unix milliseconds
}
