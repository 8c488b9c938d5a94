package service

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/MimeLyc/hardsub-translator/internal/langdetect"
	"github.com/MimeLyc/hardsub-translator/internal/ocr"
	"github.com/MimeLyc/hardsub-translator/internal/segment"
	"github.com/MimeLyc/hardsub-translator/internal/subtitle"
	"github.com/MimeLyc/hardsub-translator/pkg/file"
	"github.com/MimeLyc/hardsub-translator/pkg/log"
)

// Extraction is the OCR stage output for one video
type Extraction struct {
	Path      string
	Profile   ocr.Profile
	Detection *langdetect.Detection // nil when the profile was forced
	Segments  *segment.Result
}

// Extractor reads burned-in subtitles off a video into an SRT file
type Extractor struct {
	detector  ProfileDetector
	segmenter SegmentRunner
	engines   EngineProvider
	writer    subtitle.Writer
	workDir   string
}

func NewExtractor(detector ProfileDetector, segmenter SegmentRunner, engines EngineProvider, writer subtitle.Writer, workDir string) *Extractor {
	if writer == nil {
		writer = subtitle.NewWriter()
	}
	if workDir == "" {
		workDir = "tempsrt"
	}
	return &Extractor{
		detector:  detector,
		segmenter: segmenter,
		engines:   engines,
		writer:    writer,
		workDir:   workDir,
	}
}

// Extract detects the OCR profile unless one is given, segments the video
// and writes "<video>.srt" uniquely into the work dir. A video without text
// still yields a file holding one placeholder record.
func (e *Extractor) Extract(ctx context.Context, videoPath string, profile ocr.Profile) (*Extraction, error) {
	if _, err := os.Stat(videoPath); errors.Is(err, fs.ErrNotExist) {
		return nil, NewErrorWithCause(ErrFileNotFound, "video not found", err).WithContext("path", videoPath)
	}

	ext := &Extraction{Profile: profile}
	if profile == "" {
		detection, err := e.detector.Detect(ctx, videoPath)
		if err != nil {
			return nil, WrapError(err, ErrDecode, "detect subtitle language").WithContext("path", videoPath)
		}
		ext.Detection = &detection
		ext.Profile = detection.Profile
	}

	engine, err := e.engines.Engine(ext.Profile)
	if err != nil {
		return nil, WrapError(err, ErrOCR, "load OCR engine").WithContext("profile", ext.Profile)
	}

	result, err := e.segmenter.Run(ctx, videoPath, engine)
	if err != nil {
		return nil, WrapError(err, ErrDecode, "segment video").WithContext("path", videoPath)
	}
	ext.Segments = result
	if result.Status == segment.StatusEngineFailed {
		log.Error("OCR engine failed on all %d sampled frames of %s", result.FramesSampled, videoPath)
	}

	name := file.Derive(videoPath, "", ".srt")
	path, err := e.writer.WriteUnique(e.workDir, name, subtitle.FromIntervals(result.Intervals))
	if err != nil {
		return nil, WrapError(err, ErrFileWrite, "write subtitle").WithContext("dir", e.workDir)
	}
	ext.Path = path

	log.Info("Extracted %d subtitles from %s with profile %s into %s", len(result.Intervals), videoPath, ext.Profile, path)
	return ext, nil
}
