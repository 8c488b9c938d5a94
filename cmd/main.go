package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/hardsub-translator/internal/config"
	"github.com/MimeLyc/hardsub-translator/internal/httpapi"
	"github.com/MimeLyc/hardsub-translator/internal/intake"
	"github.com/MimeLyc/hardsub-translator/internal/jobs"
	"github.com/MimeLyc/hardsub-translator/internal/langdetect"
	"github.com/MimeLyc/hardsub-translator/internal/llm"
	"github.com/MimeLyc/hardsub-translator/internal/media"
	"github.com/MimeLyc/hardsub-translator/internal/ocr"
	"github.com/MimeLyc/hardsub-translator/internal/persistence"
	"github.com/MimeLyc/hardsub-translator/internal/segment"
	"github.com/MimeLyc/hardsub-translator/internal/service"
	"github.com/MimeLyc/hardsub-translator/internal/storage"
	"github.com/MimeLyc/hardsub-translator/internal/translator"
	"github.com/MimeLyc/hardsub-translator/pkg/icron"
	"github.com/MimeLyc/hardsub-translator/pkg/log"
)

const shutdownTimeout = 10 * time.Second

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type consumer interface {
	Run(ctx context.Context) error
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal("%v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log.InitLogger(log.ParseLevel(cfg.System.LogLevel))

	store, err := persistence.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	var objects *storage.MinioStore
	if cfg.Storage.Enabled() {
		objects, err = storage.NewMinioStore(storage.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Region:    cfg.Storage.Region,
		})
		if err != nil {
			return err
		}
	}

	engines := ocr.NewPool(ocr.TesseractFactory{
		Command:     cfg.OCR.Command,
		PageSegMode: cfg.OCR.PageSegMode,
	})
	defer engines.Close()

	builder := &pipelineBuilder{
		ff:      media.NewFfmpeg(),
		engines: engines,
		records: store,
		objects: objects,
	}
	if cfg.Oracle.Provider == config.ProviderGemini {
		builder.gemini, err = llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
		if err != nil {
			return err
		}
		defer builder.gemini.Close()
	}
	if err := builder.Build(*cfg); err != nil {
		return err
	}

	queue := jobs.NewQueue(cfg.System.WorkerCount, store)
	queue.Start(newExecutor(builder.Pipeline, cfg.OCR.Profile,
		remoteFetcher(objects, cfg.Storage.VideoBucket, cfg.System.WorkDir)))
	defer queue.Stop()

	c := cron.New(cron.WithParser(icron.Parser))
	var sched scheduler
	var resched rescheduler
	if cfg.Intake.InboxDir != "" {
		inbox := intake.NewInboxScanner(cfg.Intake.InboxDir, cfg.Intake.CronExpr, queue, c, jobs.Payload{
			OutputDir: cfg.System.OutputDir,
			Profile:   cfg.OCR.Profile,
			BurnIn:    cfg.Intake.BurnIn,
			Compress:  cfg.Intake.Compress,
			Upload:    cfg.Storage.Enabled(),
		})
		sched = inbox
		resched = inbox
	}

	var amqpConsumer consumer
	if cfg.Intake.AMQPURL != "" {
		ac := intake.NewAMQPConsumer(cfg.Intake.AMQPURL, cfg.Intake.AMQPQueue, queue)
		if err := ac.Connect(); err != nil {
			return err
		}
		defer ac.Close()
		amqpConsumer = ac
	}

	opts := []httpapi.Option{
		httpapi.WithVideoStore(store),
		httpapi.WithHealthCheck(store),
	}
	if objects != nil {
		opts = append(opts, httpapi.WithObjectStore(objects, service.Buckets{
			Video:    cfg.Storage.VideoBucket,
			Subtitle: cfg.Storage.SubtitleBucket,
		}))
	}
	settings, err := config.NewRuntimeSettingsStore(cfg.System.SettingsFile, cfg.RuntimeSettings())
	if err != nil {
		log.Warn("Runtime settings API disabled: %v", err)
	} else {
		log.Info("Runtime settings are saved to %s", settings.Path())
		opts = append(opts,
			httpapi.WithRuntimeSettingsStore(settings),
			httpapi.WithRuntimeSettingsApplier(newSettingsApplier(ctx, *cfg, builder, resched)),
		)
	}
	srv := httpapi.NewServer(queue, opts...)

	return runWithComponents(ctx, cfg, sched, c, amqpConsumer, srv)
}

// loadConfig reads the environment and then layers the runtime settings file
// on top when one was saved earlier.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".env")
	if err != nil {
		return nil, err
	}
	settings, err := config.LoadRuntimeSettingsFile(cfg.System.SettingsFile)
	switch {
	case err == nil:
		return config.Load(".env", config.WithRuntimeSettings(settings))
	case errors.Is(err, fs.ErrNotExist):
		return cfg, nil
	default:
		log.Warn("Ignoring runtime settings file %s: %v", cfg.System.SettingsFile, err)
		return cfg, nil
	}
}

// runWithComponents starts intake and the HTTP server and blocks until ctx is
// done or the server fails. Nil intake components are skipped.
func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, c cronEngine, amqpConsumer consumer, srv httpServer) error {
	if sched != nil {
		if err := sched.Schedule(ctx); err != nil {
			return fmt.Errorf("schedule inbox scan: %w", err)
		}
	}
	c.Start()
	defer c.Stop()

	if amqpConsumer != nil {
		go func() {
			if err := amqpConsumer.Run(ctx); err != nil {
				log.Error("AMQP consumer stopped: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}

// pipelineBuilder rebuilds the pipeline when runtime settings change. Jobs
// already running keep the pipeline they started with.
type pipelineBuilder struct {
	ff      *media.Ffmpeg
	engines *ocr.Pool
	records service.RecordStore
	objects *storage.MinioStore
	gemini  *llm.GeminiClient

	current atomic.Pointer[service.Pipeline]
}

func (b *pipelineBuilder) Pipeline() *service.Pipeline {
	return b.current.Load()
}

func (b *pipelineBuilder) Build(cfg config.Config) error {
	oracle, err := b.oracle(cfg)
	if err != nil {
		return err
	}

	batch := translator.NewBatchTranslator(oracle, translator.Options{
		Target:          cfg.Translate.TargetLanguage,
		Source:          cfg.Translate.SourceLanguage,
		Bridge:          cfg.Translate.BridgeLanguage,
		BatchSize:       cfg.Translate.BatchSize,
		ScriptThreshold: cfg.Translate.ScriptThreshold,
	})
	detector := langdetect.NewDetector(b.ff, ocr.TesseractFactory{
		Command:     cfg.OCR.Command,
		PageSegMode: cfg.OCR.PageSegMode,
	}, nil, cfg.OCR.DetectSamples)
	segmenter := segment.New(b.ff, segment.Options{
		MinLength:  cfg.Segment.MinLength,
		Similarity: cfg.Segment.Similarity,
		FrameSkip:  cfg.Segment.FrameSkip,
	})

	extractor := service.NewExtractor(detector, segmenter, b.engines, nil, cfg.System.WorkDir)
	subs := service.NewSubtitleTranslator(batch, service.WithWorkDir(cfg.System.WorkDir))

	opts := []service.PipelineOption{
		service.WithMuxer(b.ff),
		service.WithRecordStore(b.records),
		service.WithDirs(cfg.System.WorkDir, cfg.System.OutputDir),
		service.WithTargetLanguage(cfg.Translate.TargetLanguage.String()),
	}
	if b.objects != nil {
		opts = append(opts, service.WithObjectStore(b.objects, service.Buckets{
			Video:    cfg.Storage.VideoBucket,
			Subtitle: cfg.Storage.SubtitleBucket,
		}))
	}
	b.current.Store(service.NewPipeline(extractor, subs, opts...))
	log.Info("Pipeline ready: target %s, oracle %s", cfg.Translate.TargetLanguage, cfg.Oracle.Provider)
	return nil
}

func (b *pipelineBuilder) oracle(cfg config.Config) (translator.Oracle, error) {
	if b.gemini != nil {
		return b.gemini, nil
	}
	return llm.NewClient(&llm.Config{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		SiteURL:     cfg.LLM.SiteURL,
		AppName:     cfg.LLM.AppName,
	})
}

type rescheduler interface {
	Reschedule(ctx context.Context, cronExpr string) error
}

// newSettingsApplier rebuilds the pipeline from saved settings and moves the
// inbox scan to the new cron expression.
func newSettingsApplier(ctx context.Context, base config.Config, b *pipelineBuilder, inbox rescheduler) func(config.RuntimeSettings) error {
	var mu sync.Mutex
	return func(next config.RuntimeSettings) error {
		mu.Lock()
		defer mu.Unlock()

		cfg := base
		config.WithRuntimeSettings(next)(&cfg)
		if err := b.Build(cfg); err != nil {
			return err
		}
		base = cfg
		if inbox == nil {
			return nil
		}
		return inbox.Reschedule(ctx, cfg.Intake.CronExpr)
	}
}

type fetchFunc func(ctx context.Context, ref string) (string, error)

// remoteFetcher downloads s3:// video references into dir. Other paths are
// used as they are.
func remoteFetcher(store *storage.MinioStore, bucket, dir string) fetchFunc {
	return func(ctx context.Context, ref string) (string, error) {
		if !strings.HasPrefix(ref, "s3://") {
			return ref, nil
		}
		if store == nil {
			return "", service.NewError(service.ErrConfig, "object storage is not configured").WithContext("video", ref)
		}
		_, key, err := storage.ParseObjectURL(ref, bucket)
		if err != nil {
			return "", service.WrapError(err, service.ErrStorage, "parse video reference")
		}
		dest := filepath.Join(dir, path.Base(key))
		if err := store.Download(ctx, ref, bucket, dest); err != nil {
			return "", service.WrapError(err, service.ErrStorage, "download video").WithContext("video", ref)
		}
		log.Info("Downloaded %s to %s", ref, dest)
		return dest, nil
	}
}

// newExecutor maps queued payloads onto pipeline runs
func newExecutor(pipeline func() *service.Pipeline, defaultProfile string, fetch fetchFunc) jobs.Executor {
	return func(ctx context.Context, job *jobs.Job) (*jobs.Result, error) {
		req, err := requestFromPayload(job.Payload, defaultProfile)
		if err != nil {
			return nil, err
		}
		if fetch != nil {
			if req.VideoPath, err = fetch(ctx, req.VideoPath); err != nil {
				return nil, err
			}
		}
		out, err := pipeline().Run(ctx, req)
		if err != nil {
			return nil, err
		}
		return &jobs.Result{
			VideoID:         out.VideoID,
			Profile:         string(out.Profile),
			SubtitlePath:    out.SubtitlePath,
			TranslatedPath:  out.TranslatedPath,
			VideoOutputPath: out.VideoOutputPath,
			SubtitleURL:     out.SubtitleURL,
			TranslatedURL:   out.TranslatedURL,
			VideoURL:        out.VideoURL,
		}, nil
	}
}

func requestFromPayload(p jobs.Payload, defaultProfile string) (service.Request, error) {
	req := service.Request{
		VideoPath: p.VideoPath,
		OutputDir: p.OutputDir,
		BurnIn:    p.BurnIn,
		Compress:  p.Compress,
		Upload:    p.Upload,
	}
	name := strings.TrimSpace(p.Profile)
	if name == "" {
		name = defaultProfile
	}
	if name == "" || strings.EqualFold(name, "auto") {
		return req, nil
	}
	profile, err := ocr.ParseProfile(name)
	if err != nil {
		return req, service.NewErrorWithCause(service.ErrConfig, "invalid OCR profile", err)
	}
	req.Profile = profile
	return req, nil
}
