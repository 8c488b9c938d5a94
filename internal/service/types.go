package service

import (
	"context"
	"time"

	"github.com/MimeLyc/hardsub-translator/internal/langdetect"
	"github.com/MimeLyc/hardsub-translator/internal/ocr"
	"github.com/MimeLyc/hardsub-translator/internal/segment"
)

// TranslateStatus says which branch the subtitle translator took
type TranslateStatus string

const (
	StatusTranslated  TranslateStatus = "translated"
	StatusNoInput     TranslateStatus = "no_input"
	StatusEmptyInput  TranslateStatus = "empty_input"
	StatusError       TranslateStatus = "error"
	StatusWriteFailed TranslateStatus = "write_failed"
)

// TranslateResult is the outcome of translating one subtitle file. Path is
// empty only when Status is StatusWriteFailed.
type TranslateResult struct {
	Path    string
	Status  TranslateStatus
	Err     error
	Lines   int
	Batches int
	Failed  int
}

// ProfileDetector picks an OCR profile for a video
type ProfileDetector interface {
	Detect(ctx context.Context, path string) (langdetect.Detection, error)
}

// SegmentRunner produces subtitle intervals from a video
type SegmentRunner interface {
	Run(ctx context.Context, path string, engine ocr.Engine) (*segment.Result, error)
}

// EngineProvider hands out shared OCR engines
type EngineProvider interface {
	Engine(profile ocr.Profile) (ocr.Engine, error)
}

// ObjectStore uploads artifacts and returns their URL
type ObjectStore interface {
	Upload(ctx context.Context, path, bucket string) (string, error)
}

// SubtitleKind distinguishes OCR output from its translation
type SubtitleKind string

const (
	SubtitleOriginal   SubtitleKind = "original"
	SubtitleTranslated SubtitleKind = "translated"
)

// VideoRecord is the bookkeeping row for a processed video
type VideoRecord struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	SourcePath string    `json:"source_path"`
	OutputPath string    `json:"output_path,omitempty"`
	VideoURL   string    `json:"video_url,omitempty"`
	Profile    string    `json:"profile"`
	CreatedAt  time.Time `json:"created_at"`
}

// SubtitleRecord is one subtitle artifact of a video
type SubtitleRecord struct {
	ID        string       `json:"id"`
	VideoID   string       `json:"video_id"`
	Kind      SubtitleKind `json:"kind"`
	Language  string       `json:"language"`
	Path      string       `json:"path"`
	URL       string       `json:"url,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// RecordStore persists video and subtitle records
type RecordStore interface {
	CreateVideo(ctx context.Context, video *VideoRecord) error
	CreateSubtitle(ctx context.Context, sub *SubtitleRecord) error
}
