package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MimeLyc/hardsub-translator/internal/config"
	"github.com/MimeLyc/hardsub-translator/internal/jobs"
	"github.com/MimeLyc/hardsub-translator/internal/service"
)

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type videoStore interface {
	ListVideos(ctx context.Context, offset, limit int) ([]*service.VideoRecord, error)
	GetVideo(ctx context.Context, id string) (*service.VideoRecord, error)
	ListSubtitles(ctx context.Context, videoID string) ([]*service.SubtitleRecord, error)
	UpdateSubtitle(ctx context.Context, sub *service.SubtitleRecord) error
	DeleteVideo(ctx context.Context, id string) error
}

type objectStore interface {
	Replace(ctx context.Context, oldURL, bucket, path string) (string, error)
	Delete(ctx context.Context, objectURL, bucket string) error
	PresignedURL(ctx context.Context, objectURL, bucket string, ttl time.Duration) (string, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	queue    *jobs.Queue
	settings runtimeSettingsStore
	apply    runtimeSettingsApplier
	videos   videoStore
	objects  objectStore
	buckets  service.Buckets
	health   []pinger

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

// WithVideoStore enables the /api/videos routes
func WithVideoStore(store videoStore) Option {
	return func(s *Server) {
		s.videos = store
	}
}

// WithObjectStore lets the video routes presign, replace and delete uploaded artifacts
func WithObjectStore(store objectStore, buckets service.Buckets) Option {
	return func(s *Server) {
		s.objects = store
		s.buckets = buckets
	}
}

// WithHealthCheck adds a dependency probed by /healthz
func WithHealthCheck(p pinger) Option {
	return func(s *Server) {
		s.health = append(s.health, p)
	}
}

func NewServer(queue *jobs.Queue, opts ...Option) *Server {
	s := &Server{
		queue: queue,
		mux:   http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/jobs/{id}", s.handleJobDetail)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/api/videos", s.handleVideos)
	s.mux.HandleFunc("/api/videos/{id}", s.handleVideo)
	s.mux.HandleFunc("/api/videos/{id}/srt/{kind}", s.handleVideoSubtitle)
}
