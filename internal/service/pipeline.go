package service

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/MimeLyc/hardsub-translator/internal/media"
	"github.com/MimeLyc/hardsub-translator/internal/ocr"
	"github.com/MimeLyc/hardsub-translator/internal/segment"
	"github.com/MimeLyc/hardsub-translator/pkg/file"
	"github.com/MimeLyc/hardsub-translator/pkg/log"
)

// Request is one end-to-end pipeline run
type Request struct {
	VideoPath string
	OutputDir string
	Profile   ocr.Profile // empty to detect
	BurnIn    bool
	Compress  bool
	Upload    bool
}

// Output lists the artifacts of a run. Files from finished stages stay on
// disk even when a later stage fails.
type Output struct {
	VideoID         string
	Profile         ocr.Profile
	SegmentStatus   segment.Status
	Translation     TranslateStatus
	SubtitlePath    string
	TranslatedPath  string
	VideoOutputPath string
	SubtitleURL     string
	TranslatedURL   string
	VideoURL        string
}

type Buckets struct {
	Video    string
	Subtitle string
}

// Pipeline chains extraction, translation, muxing, upload and bookkeeping
type Pipeline struct {
	extractor  *Extractor
	translator *SubtitleTranslator
	muxer      media.Muxer
	store      ObjectStore
	records    RecordStore
	buckets    Buckets
	workDir    string
	outputDir  string
	language   string
}

type PipelineOption func(*Pipeline)

func WithMuxer(m media.Muxer) PipelineOption {
	return func(p *Pipeline) { p.muxer = m }
}

func WithObjectStore(s ObjectStore, buckets Buckets) PipelineOption {
	return func(p *Pipeline) {
		p.store = s
		p.buckets = buckets
	}
}

func WithRecordStore(r RecordStore) PipelineOption {
	return func(p *Pipeline) { p.records = r }
}

// WithDirs sets the intermediate subtitle dir and the default video output dir
func WithDirs(workDir, outputDir string) PipelineOption {
	return func(p *Pipeline) {
		if workDir != "" {
			p.workDir = workDir
		}
		if outputDir != "" {
			p.outputDir = outputDir
		}
	}
}

// WithTargetLanguage labels translated subtitle records
func WithTargetLanguage(code string) PipelineOption {
	return func(p *Pipeline) { p.language = code }
}

func NewPipeline(extractor *Extractor, translator *SubtitleTranslator, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		extractor:  extractor,
		translator: translator,
		workDir:    "tempsrt",
		outputDir:  "tempvideo",
		language:   "vi",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes every requested stage in order and stops at the first
// failing one.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Output, error) {
	start := time.Now()
	log.Info("Pipeline started for %s", req.VideoPath)

	ext, err := p.extractor.Extract(ctx, req.VideoPath, req.Profile)
	if err != nil {
		return nil, err
	}
	out := &Output{
		Profile:       ext.Profile,
		SegmentStatus: ext.Segments.Status,
		SubtitlePath:  ext.Path,
	}

	tr := p.translator.TranslateFile(ctx, ext.Path, filepath.Join(p.workDir, TranslatedName(req.VideoPath)))
	out.Translation = tr.Status
	if tr.Status == StatusWriteFailed {
		return out, tr.Err
	}
	out.TranslatedPath = tr.Path

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = p.outputDir
	}

	if req.BurnIn || req.Compress {
		if p.muxer == nil {
			return out, NewError(ErrConfig, "video output requested but no muxer is configured")
		}
		if err := p.renderVideo(ctx, req, outputDir, out); err != nil {
			return out, err
		}
	}

	if req.Upload {
		if err := p.upload(ctx, req, out); err != nil {
			return out, err
		}
	}

	if p.records != nil {
		if err := p.record(ctx, req, out); err != nil {
			return out, err
		}
	}

	log.Info("Pipeline finished for %s in %s (profile %s, translation %s)",
		req.VideoPath, time.Since(start).Round(time.Millisecond), out.Profile, out.Translation)
	return out, nil
}

func (p *Pipeline) renderVideo(ctx context.Context, req Request, outputDir string, out *Output) error {
	video := req.VideoPath

	if req.BurnIn {
		target := file.UniqueName(outputDir, file.Derive(req.VideoPath, "_subtitled", ""), nil)
		if err := p.muxer.BurnSubtitles(ctx, video, out.TranslatedPath, target); err != nil {
			return WrapError(err, ErrMux, "burn subtitles").WithContext("video", video)
		}
		video = target
	}

	if req.Compress {
		compressed, err := p.muxer.Compress(ctx, video, outputDir)
		if err != nil {
			return WrapError(err, ErrMux, "compress video").WithContext("video", video)
		}
		video = compressed
	}

	out.VideoOutputPath = video
	return nil
}

func (p *Pipeline) upload(ctx context.Context, req Request, out *Output) error {
	if p.store == nil {
		return NewError(ErrConfig, "upload requested but object storage is not configured")
	}

	var err error
	if out.SubtitleURL, err = p.store.Upload(ctx, out.SubtitlePath, p.buckets.Subtitle); err != nil {
		return WrapError(err, ErrStorage, "upload subtitle").WithContext("path", out.SubtitlePath)
	}
	if out.TranslatedURL, err = p.store.Upload(ctx, out.TranslatedPath, p.buckets.Subtitle); err != nil {
		return WrapError(err, ErrStorage, "upload translated subtitle").WithContext("path", out.TranslatedPath)
	}

	video := out.VideoOutputPath
	if video == "" {
		video = req.VideoPath
	}
	if out.VideoURL, err = p.store.Upload(ctx, video, p.buckets.Video); err != nil {
		return WrapError(err, ErrStorage, "upload video").WithContext("path", video)
	}
	return nil
}

func (p *Pipeline) record(ctx context.Context, req Request, out *Output) error {
	now := time.Now()
	video := &VideoRecord{
		ID:         uuid.NewString(),
		FileName:   filepath.Base(req.VideoPath),
		SourcePath: req.VideoPath,
		OutputPath: out.VideoOutputPath,
		VideoURL:   out.VideoURL,
		Profile:    string(out.Profile),
		CreatedAt:  now,
	}
	if err := p.records.CreateVideo(ctx, video); err != nil {
		return WrapError(err, ErrPersistence, "save video record")
	}
	out.VideoID = video.ID

	subs := []*SubtitleRecord{
		{Kind: SubtitleOriginal, Language: out.Profile.Tag().String(), Path: out.SubtitlePath, URL: out.SubtitleURL},
		{Kind: SubtitleTranslated, Language: p.language, Path: out.TranslatedPath, URL: out.TranslatedURL},
	}
	for _, sub := range subs {
		sub.ID = uuid.NewString()
		sub.VideoID = video.ID
		sub.CreatedAt = now
		if err := p.records.CreateSubtitle(ctx, sub); err != nil {
			return WrapError(err, ErrPersistence, "save subtitle record").WithContext("kind", sub.Kind)
		}
	}
	return nil
}
