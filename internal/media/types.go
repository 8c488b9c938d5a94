package media

import (
	"context"
	"image"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// VideoInfo describes the first video stream of a file
type VideoInfo struct {
	Width    int
	Height   int
	FPS      float64
	Duration time.Duration
	Frames   int // 0 when the container does not report it
}

// FramePeriod is the time between two consecutive decoded frames.
func (v VideoInfo) FramePeriod() time.Duration {
	if v.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / v.FPS)
}

// Frame is a decoded grayscale image; it is only valid until the next call to Next.
type Frame struct {
	Index     int
	Image     *image.Gray
	Timestamp time.Duration
}

// FrameSource is a forward-only, non-restartable stream of sampled frames.
type FrameSource interface {
	// Next returns io.EOF once the stream is exhausted.
	Next() (Frame, error)
	Info() VideoInfo
	// Close releases the decoder. It is safe to call more than once.
	Close() error
}

// Decoder opens frame streams over video files. Only frames whose index is a
// multiple of skip are yielded.
type Decoder interface {
	OpenFrames(ctx context.Context, path string, skip int) (FrameSource, error)
}

// Prober reads stream metadata
type Prober interface {
	Probe(ctx context.Context, path string) (VideoInfo, error)
}

// Muxer renders subtitles into video and re-encodes outputs
type Muxer interface {
	BurnSubtitles(ctx context.Context, videoPath, subtitlePath, outputPath string) error
	Compress(ctx context.Context, videoPath, outputDir string) (string, error)
}

// FrameTimestamp is the presentation time of frame index at fps.
func FrameTimestamp(index int, fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(index) / fps * float64(time.Second))
}

// VideoExts are the container extensions picked up from watched folders
var VideoExts = []string{".mp4", ".mkv", ".mov", ".avi", ".webm", ".flv", ".m4v", ".ts"}

// IsVideo reports whether path has one of VideoExts
func IsVideo(path string) bool {
	return slices.Contains(VideoExts, strings.ToLower(filepath.Ext(path)))
}
