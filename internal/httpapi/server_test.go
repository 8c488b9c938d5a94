package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MimeLyc/hardsub-translator/internal/config"
	"github.com/MimeLyc/hardsub-translator/internal/jobs"
	"github.com/MimeLyc/hardsub-translator/internal/persistence"
	"github.com/MimeLyc/hardsub-translator/internal/service"
	"github.com/stretchr/testify/require"
)

type fakeSettingsStore struct {
	current   config.RuntimeSettings
	updateErr error
}

func (f *fakeSettingsStore) GetRuntimeSettings() (config.RuntimeSettings, error) {
	return f.current, nil
}

func (f *fakeSettingsStore) UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error) {
	if f.updateErr != nil {
		return config.RuntimeSettings{}, f.updateErr
	}
	f.current = next
	return f.current, nil
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}

type fakeObjects struct {
	replaced []string
	deleted  []string
}

func (f *fakeObjects) Replace(_ context.Context, oldURL, bucket, path string) (string, error) {
	f.replaced = append(f.replaced, oldURL)
	return "http://minio/" + bucket + "/new_" + filepath.Base(path), nil
}

func (f *fakeObjects) Delete(_ context.Context, objectURL, _ string) error {
	f.deleted = append(f.deleted, objectURL)
	return nil
}

func (f *fakeObjects) PresignedURL(_ context.Context, objectURL, _ string, _ time.Duration) (string, error) {
	return objectURL + "?signed=1", nil
}

const sampleSRT = "1\n00:00:01,000 --> 00:00:02,500\nhello\n\n2\n00:00:03,000 --> 00:00:04,000\nworld\n\n"

func serve(srv *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	srv := NewServer(jobs.NewQueue(1, nil), WithHealthCheck(fakePinger{}))
	rec := serve(srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	srv = NewServer(jobs.NewQueue(1, nil), WithHealthCheck(fakePinger{err: errors.New("db down")}))
	rec = serve(srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "db down")
}

func TestServer_CreateJob_WithPayload(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	srv := NewServer(queue)

	body, err := json.Marshal(map[string]any{
		"video_path": "/inbox/movie.mp4",
		"profile":    "zh",
		"burn_in":    true,
	})
	require.NoError(t, err)

	rec := serve(srv, http.MethodPost, "/api/jobs", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Created bool     `json:"created"`
		Job     jobs.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Created)
	require.Equal(t, jobs.SourceManual, resp.Job.Source)
	require.Equal(t, "/inbox/movie.mp4", resp.Job.DedupeKey)
	require.Equal(t, "zh", resp.Job.Payload.Profile)
	require.True(t, resp.Job.Payload.BurnIn)

	// same video while pending is deduplicated
	rec = serve(srv, http.MethodPost, "/api/jobs", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, queue.List(), 1)

	rec = serve(srv, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
}

func TestServer_CreateJob_Rejects(t *testing.T) {
	srv := NewServer(jobs.NewQueue(1, nil))

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: "{"},
		{name: "missing video", body: `{"profile":"en"}`},
		{name: "unknown profile", body: `{"video_path":"/a.mp4","profile":"klingon"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(srv, http.MethodPost, "/api/jobs", []byte(tt.body))
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := serve(srv, http.MethodDelete, "/api/jobs", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_JobDetail_Preview(t *testing.T) {
	tmp := t.TempDir()
	original := filepath.Join(tmp, "movie.srt")
	translated := filepath.Join(tmp, "movie_translate.srt")
	require.NoError(t, os.WriteFile(original, []byte(sampleSRT), 0o644))
	require.NoError(t, os.WriteFile(translated, []byte(strings.ReplaceAll(strings.ReplaceAll(sampleSRT, "hello", "xin chao"), "world", "the gioi")), 0o644))

	queue := jobs.NewQueue(1, nil)
	queue.Start(func(context.Context, *jobs.Job) (*jobs.Result, error) {
		return &jobs.Result{SubtitlePath: original, TranslatedPath: translated}, nil
	})
	defer queue.Stop()

	job, created := queue.Enqueue(jobs.EnqueueRequest{
		Source:    jobs.SourceManual,
		DedupeKey: "movie",
		Payload:   jobs.Payload{VideoPath: "/inbox/movie.mp4"},
	})
	require.True(t, created)
	require.Eventually(t, func() bool {
		got, ok := queue.Get(job.ID)
		return ok && got.Status == jobs.StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)

	srv := NewServer(queue)
	rec := serve(srv, http.MethodGet, "/api/jobs/"+job.ID+"?offset=1&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp jobDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.TotalLines)
	require.Len(t, resp.Preview, 1)
	require.Equal(t, 2, resp.Preview[0].Index)
	require.Equal(t, "world", resp.Preview[0].Original)
	require.Equal(t, "the gioi", resp.Preview[0].Translated)
	require.Equal(t, "00:00:03,000", resp.Preview[0].Start)

	rec = serve(srv, http.MethodGet, "/api/jobs/job-999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Settings(t *testing.T) {
	store := &fakeSettingsStore{current: config.RuntimeSettings{
		LLMAPIURL:      "https://openrouter.ai/api/v1",
		LLMAPIKey:      "sk-test",
		LLMModel:       "openai/gpt-4o-mini",
		CronExpr:       "*/10 * * * *",
		TargetLanguage: "vi",
	}}
	var applied []config.RuntimeSettings
	srv := NewServer(
		jobs.NewQueue(1, nil),
		WithRuntimeSettingsStore(store),
		WithRuntimeSettingsApplier(func(next config.RuntimeSettings) error {
			applied = append(applied, next)
			return nil
		}),
	)

	rec := serve(srv, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var shown config.RuntimeSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shown))
	require.Equal(t, "****test", shown.LLMAPIKey)

	// sending back the redacted key keeps the stored one
	next := shown
	next.CronExpr = "0 * * * *"
	body, err := json.Marshal(next)
	require.NoError(t, err)
	rec = serve(srv, http.MethodPut, "/api/settings", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, applied, 1)
	require.Equal(t, "0 * * * *", applied[0].CronExpr)
	require.Equal(t, "sk-test", applied[0].LLMAPIKey)

	next.CronExpr = "not a cron"
	body, err = json.Marshal(next)
	require.NoError(t, err)
	rec = serve(srv, http.MethodPut, "/api/settings", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, applied, 1)

	store.updateErr = errors.New("disk full")
	next.CronExpr = "0 * * * *"
	body, err = json.Marshal(next)
	require.NoError(t, err)
	rec = serve(srv, http.MethodPut, "/api/settings", body)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_SettingsNotConfigured(t *testing.T) {
	srv := NewServer(jobs.NewQueue(1, nil))
	rec := serve(srv, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = serve(srv, http.MethodGet, "/api/videos", nil)
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func seedVideo(t *testing.T, store *persistence.Store, dir string) (*service.VideoRecord, *service.SubtitleRecord) {
	t.Helper()
	ctx := context.Background()

	translated := filepath.Join(dir, "movie_translate.srt")
	require.NoError(t, os.WriteFile(translated, []byte(sampleSRT), 0o644))

	video := &service.VideoRecord{
		ID:         "vid-1",
		FileName:   "movie.mp4",
		SourcePath: "/inbox/movie.mp4",
		VideoURL:   "http://minio/videos/abc_movie.mp4",
		Profile:    "zh",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.CreateVideo(ctx, video))
	sub := &service.SubtitleRecord{
		ID:        "sub-1",
		VideoID:   video.ID,
		Kind:      service.SubtitleTranslated,
		Language:  "vi",
		Path:      translated,
		URL:       "http://minio/subtitles/abc_movie_translate.srt",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateSubtitle(ctx, sub))
	return video, sub
}

func TestServer_Videos(t *testing.T) {
	tmp := t.TempDir()
	store, err := persistence.NewSQLiteStore(filepath.Join(tmp, "test.db"))
	require.NoError(t, err)
	defer store.Close()
	video, _ := seedVideo(t, store, tmp)

	objects := &fakeObjects{}
	srv := NewServer(
		jobs.NewQueue(1, nil),
		WithVideoStore(store),
		WithObjectStore(objects, service.Buckets{Video: "videos", Subtitle: "subtitles"}),
	)

	rec := serve(srv, http.MethodGet, "/api/videos?skip=0&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []service.VideoRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	require.Equal(t, video.ID, listed[0].ID)

	rec = serve(srv, http.MethodGet, "/api/videos/"+video.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail videoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.Equal(t, "movie.mp4", detail.FileName)
	require.Len(t, detail.Subtitles, 1)

	rec = serve(srv, http.MethodGet, "/api/videos/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(srv, http.MethodDelete, "/api/videos/"+video.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.ElementsMatch(t, []string{
		"http://minio/videos/abc_movie.mp4",
		"http://minio/subtitles/abc_movie_translate.srt",
	}, objects.deleted)

	_, err = store.GetVideo(context.Background(), video.ID)
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestServer_VideoSubtitle_Download(t *testing.T) {
	tmp := t.TempDir()
	store, err := persistence.NewSQLiteStore(filepath.Join(tmp, "test.db"))
	require.NoError(t, err)
	defer store.Close()
	video, sub := seedVideo(t, store, tmp)

	srv := NewServer(
		jobs.NewQueue(1, nil),
		WithVideoStore(store),
		WithObjectStore(&fakeObjects{}, service.Buckets{Video: "videos", Subtitle: "subtitles"}),
	)

	rec := serve(srv, http.MethodGet, "/api/videos/"+video.ID+"/srt/translated", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, sampleSRT, rec.Body.String())

	rec = serve(srv, http.MethodGet, "/api/videos/"+video.ID+"/srt/original", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(srv, http.MethodGet, "/api/videos/"+video.ID+"/srt/bogus", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// local copy gone, fall back to the uploaded object
	require.NoError(t, os.Remove(sub.Path))
	rec = serve(srv, http.MethodGet, "/api/videos/"+video.ID+"/srt/translated", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Equal(t, sub.URL+"?signed=1", rec.Header().Get("Location"))
}

func TestServer_VideoSubtitle_Replace(t *testing.T) {
	tmp := t.TempDir()
	store, err := persistence.NewSQLiteStore(filepath.Join(tmp, "test.db"))
	require.NoError(t, err)
	defer store.Close()
	video, sub := seedVideo(t, store, tmp)

	objects := &fakeObjects{}
	srv := NewServer(
		jobs.NewQueue(1, nil),
		WithVideoStore(store),
		WithObjectStore(objects, service.Buckets{Video: "videos", Subtitle: "subtitles"}),
	)
	target := "/api/videos/" + video.ID + "/srt/translated"

	rec := serve(srv, http.MethodPut, target, []byte("not an srt"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	edited := "1\n00:00:01,000 --> 00:00:02,000\nedited\n\n"
	rec = serve(srv, http.MethodPut, target, []byte(edited))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{sub.URL}, objects.replaced)

	data, err := os.ReadFile(sub.Path)
	require.NoError(t, err)
	require.Contains(t, string(data), "edited")

	subs, err := store.ListSubtitles(context.Background(), video.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "http://minio/subtitles/new_movie_translate.srt", subs[0].URL)
}

func TestServer_JobStream(t *testing.T) {
	queue := jobs.NewQueue(1, nil)
	queue.Enqueue(jobs.EnqueueRequest{
		Source:    jobs.SourceManual,
		DedupeKey: "movie",
		Payload:   jobs.Payload{VideoPath: "/inbox/movie.mp4"},
	})
	srv := NewServer(queue)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		srv.Handler().ServeHTTP(rec, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "event: jobs\n")
	require.Contains(t, rec.Body.String(), "/inbox/movie.mp4")
}
