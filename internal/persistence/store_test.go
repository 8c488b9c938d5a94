package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/hardsub-translator/internal/jobs"
	"github.com/MimeLyc/hardsub-translator/internal/service"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "hardsub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_JobsRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	job := &jobs.Job{
		ID:        "job-1",
		Source:    jobs.SourceManual,
		DedupeKey: "/videos/a.mp4",
		Payload: jobs.Payload{
			VideoPath: "/videos/a.mp4",
			Profile:   "korean",
			BurnIn:    true,
		},
		Status:    jobs.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.UpsertJob(ctx, job))

	all, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, job.ID, all[0].ID)
	assert.Equal(t, job.Status, all[0].Status)
	assert.Equal(t, job.Payload, all[0].Payload)
	assert.Nil(t, all[0].Result)
	assert.True(t, now.Equal(all[0].CreatedAt))

	job.Status = jobs.StatusSuccess
	job.Result = &jobs.Result{SubtitlePath: "tempsrt/a.srt", VideoID: "vid"}
	require.NoError(t, store.UpsertJob(ctx, job))

	all, err = store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, jobs.StatusSuccess, all[0].Status)
	require.NotNil(t, all[0].Result)
	assert.Equal(t, "tempsrt/a.srt", all[0].Result.SubtitlePath)

	require.NoError(t, store.DeleteJob(ctx, job.ID))
	all, err = store.LoadJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_QueueHydration(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	q := jobs.NewQueue(1, store)
	job, created := q.Enqueue(jobs.EnqueueRequest{Source: jobs.SourceInbox, DedupeKey: "k", Payload: jobs.Payload{VideoPath: "/in/x.mp4"}})
	require.True(t, created)

	restarted := jobs.NewQueue(1, store)
	got, ok := restarted.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, jobs.StatusPending, got.Status)
	assert.Equal(t, "/in/x.mp4", got.Payload.VideoPath)
}

func TestStore_RecordsLifecycle(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"v1", "v2"} {
		require.NoError(t, store.CreateVideo(ctx, &service.VideoRecord{
			ID:         id,
			FileName:   id + ".mp4",
			SourcePath: "/videos/" + id + ".mp4",
			Profile:    "en",
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, store.CreateSubtitle(ctx, &service.SubtitleRecord{
		ID: "s2", VideoID: "v1", Kind: service.SubtitleTranslated, Language: "vi", Path: "tempsrt/v1_translate.srt", CreatedAt: base,
	}))
	require.NoError(t, store.CreateSubtitle(ctx, &service.SubtitleRecord{
		ID: "s1", VideoID: "v1", Kind: service.SubtitleOriginal, Language: "en", Path: "tempsrt/v1.srt", CreatedAt: base,
	}))

	videos, err := store.ListVideos(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "v2", videos[0].ID, "newest first")

	page, err := store.ListVideos(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "v1", page[0].ID)

	v, err := store.GetVideo(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "/videos/v1.mp4", v.SourcePath)
	assert.True(t, base.Equal(v.CreatedAt))

	subs, err := store.ListSubtitles(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, service.SubtitleOriginal, subs[0].Kind)
	assert.Equal(t, service.SubtitleTranslated, subs[1].Kind)

	subs[1].Path = "tempsrt/edited.srt"
	subs[1].URL = "http://minio/subs/edited.srt"
	require.NoError(t, store.UpdateSubtitle(ctx, subs[1]))
	subs, err = store.ListSubtitles(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "tempsrt/edited.srt", subs[1].Path)
	assert.Equal(t, "http://minio/subs/edited.srt", subs[1].URL)

	require.NoError(t, store.DeleteVideo(ctx, "v1"))
	_, err = store.GetVideo(ctx, "v1")
	assert.ErrorIs(t, err, ErrNotFound)
	subs, err = store.ListSubtitles(ctx, "v1")
	require.NoError(t, err)
	assert.Empty(t, subs)

	assert.ErrorIs(t, store.DeleteVideo(ctx, "v1"), ErrNotFound)
	assert.ErrorIs(t, store.UpdateSubtitle(ctx, &service.SubtitleRecord{ID: "missing"}), ErrNotFound)
}

func TestStore_SubtitleNeedsExistingVideo(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	err := store.CreateSubtitle(context.Background(), &service.SubtitleRecord{
		ID: "s1", VideoID: "nope", Kind: service.SubtitleOriginal, Path: "x.srt", CreatedAt: time.Now(),
	})
	assert.Error(t, err)
}

func TestStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hardsub.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.CreateVideo(context.Background(), &service.VideoRecord{ID: "v", FileName: "v.mp4", SourcePath: "/v.mp4", CreatedAt: time.Now()}))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()
	_, err = store.GetVideo(context.Background(), "v")
	assert.NoError(t, err)
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	assert.Error(t, err)
	_, err = Open(DriverPostgres, " ")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := `UPDATE subtitles SET path = ?, url = ? WHERE id = ?`
	assert.Equal(t, q, rebind(DriverSQLite, q))
	assert.Equal(t, `UPDATE subtitles SET path = $1, url = $2 WHERE id = $3`, rebind(DriverPostgres, q))
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, 1, migrationVersion("001_init.sql"))
	assert.Equal(t, 12, migrationVersion("12"))
	assert.Equal(t, 0, migrationVersion("init.sql"))
}
