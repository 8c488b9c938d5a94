package jobs

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Terminal reports whether the job will not run again
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

const (
	SourceManual = "manual"
	SourceInbox  = "inbox"
	SourceAMQP   = "amqp"
)

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   Payload
}

// Payload is one pipeline request
type Payload struct {
	VideoPath string `json:"video_path"`
	OutputDir string `json:"output_dir,omitempty"`
	Profile   string `json:"profile,omitempty"` // empty or "auto" to detect
	BurnIn    bool   `json:"burn_in"`
	Compress  bool   `json:"compress"`
	Upload    bool   `json:"upload"`
}

// Result lists the artifacts a finished job produced
type Result struct {
	VideoID         string `json:"video_id,omitempty"`
	Profile         string `json:"profile,omitempty"`
	SubtitlePath    string `json:"subtitle_path,omitempty"`
	TranslatedPath  string `json:"translated_path,omitempty"`
	VideoOutputPath string `json:"video_output_path,omitempty"`
	SubtitleURL     string `json:"subtitle_url,omitempty"`
	TranslatedURL   string `json:"translated_url,omitempty"`
	VideoURL        string `json:"video_url,omitempty"`
}

type Job struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	DedupeKey string    `json:"dedupe_key"`
	Payload   Payload   `json:"payload"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
