// Package api defines the worker's JSON contract and a client for it.
package api

import "time"

// TaskStatus is the lifecycle of a download task.
type TaskStatus string

const (
	TaskQueued      TaskStatus = "queued"
	TaskDownloading TaskStatus = "downloading"
	TaskCompleted   TaskStatus = "completed"
	TaskFailed      TaskStatus = "failed"
)

// IsFinished reports whether the task reached a terminal status.
func (s TaskStatus) IsFinished() bool {
	return s == TaskCompleted || s == TaskFailed
}

// DefaultFormat asks the worker for its preferred mp4 selection.
const DefaultFormat = "best"

// StatusResponse answers / and /health.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DownloadRequest submits a download.
type DownloadRequest struct {
	URL              string `json:"url"`
	SavePath         string `json:"save_path"`
	FormatPreference string `json:"format_preference,omitempty"`
}

// DownloadResponse is returned by POST /api/download.
type DownloadResponse struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message"`
	TaskID    string   `json:"task_id,omitempty"`
	FilePath  string   `json:"file_path,omitempty"`
	Title     string   `json:"title,omitempty"`
	Duration  *float64 `json:"duration,omitempty"`
	Thumbnail string   `json:"thumbnail,omitempty"`
}

// Progress is the latest progress snapshot of a task.
type Progress struct {
	Status   TaskStatus `json:"status"`
	Percent  float64    `json:"percent"`
	Speed    float64    `json:"speed"` // bytes per second
	ETA      int        `json:"eta"`   // seconds, 0 if unknown
	Filename string     `json:"filename,omitempty"`
}

// Task is returned by GET /api/download/{task_id}.
type Task struct {
	TaskID    string     `json:"task_id"`
	URL       string     `json:"url"`
	Status    TaskStatus `json:"status"`
	Progress  Progress   `json:"progress"`
	Success   bool       `json:"success"`
	Message   string     `json:"message,omitempty"`
	FilePath  string     `json:"file_path,omitempty"`
	Title     string     `json:"title,omitempty"`
	Duration  *float64   `json:"duration,omitempty"`
	Thumbnail string     `json:"thumbnail,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ErrorResponse carries a failure message.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
