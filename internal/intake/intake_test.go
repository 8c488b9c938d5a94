package intake

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/hardsub-translator/internal/jobs"
)

type recordingQueue struct {
	mu   sync.Mutex
	reqs []jobs.EnqueueRequest
	keys map[string]bool
}

func (q *recordingQueue) Enqueue(req jobs.EnqueueRequest) (*jobs.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.keys == nil {
		q.keys = map[string]bool{}
	}
	job := &jobs.Job{ID: "job-" + req.DedupeKey, Payload: req.Payload, Source: req.Source}
	if q.keys[req.DedupeKey] {
		return job, false
	}
	q.keys[req.DedupeKey] = true
	q.reqs = append(q.reqs, req)
	return job, true
}

func writeAt(t *testing.T, path string, mtime time.Time) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestInboxScanner_QueuesRecentVideos(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeAt(t, filepath.Join(dir, "old.mp4"), now.Add(-2*time.Hour))
	fresh := writeAt(t, filepath.Join(dir, "fresh.MP4"), now.Add(-10*time.Minute))
	writeAt(t, filepath.Join(dir, "notes.txt"), now.Add(-10*time.Minute))
	deep := writeAt(t, filepath.Join(dir, "season1", "ep1.mkv"), now.Add(-5*time.Minute))

	q := &recordingQueue{}
	s := NewInboxScanner(dir, "*/10 * * * *", q, cron.New(), jobs.Payload{BurnIn: true, Upload: true})
	s.now = func() time.Time { return now }
	s.lastTrigger = now.Add(-time.Hour)

	created, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	var paths []string
	for _, req := range q.reqs {
		paths = append(paths, req.Payload.VideoPath)
		assert.Equal(t, jobs.SourceInbox, req.Source)
		assert.Equal(t, req.Payload.VideoPath, req.DedupeKey)
		assert.True(t, req.Payload.BurnIn)
		assert.True(t, req.Payload.Upload)
	}
	sort.Strings(paths)
	want := []string{fresh, deep}
	sort.Strings(want)
	assert.Equal(t, want, paths)

	created, err = s.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, created, "second scan starts where the first one ended")
}

func TestInboxScanner_StartTime(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	frequent := NewInboxScanner("", "*/10 * * * *", &recordingQueue{}, cron.New(), jobs.Payload{})
	start, err := frequent.startTime(now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-firstScanLookback), start)

	yearly := NewInboxScanner("", "0 0 1 1 *", &recordingQueue{}, cron.New(), jobs.Payload{})
	start, err = yearly.startTime(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)

	yearly.lastTrigger = now.Add(-time.Minute)
	start, err = yearly.startTime(now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-time.Minute), start)

	bad := NewInboxScanner("", "nope", &recordingQueue{}, cron.New(), jobs.Payload{})
	_, err = bad.startTime(now)
	assert.Error(t, err)
}

func TestInboxScanner_MissingDirFails(t *testing.T) {
	s := NewInboxScanner(filepath.Join(t.TempDir(), "absent"), "*/10 * * * *", &recordingQueue{}, cron.New(), jobs.Payload{})
	s.lastTrigger = time.Now().Add(-time.Hour)

	_, err := s.Scan(context.Background())
	assert.Error(t, err)
}

func TestInboxScanner_Reschedule(t *testing.T) {
	engine := cron.New()
	s := NewInboxScanner(t.TempDir(), "0 0 * * *", &recordingQueue{}, engine, jobs.Payload{})

	require.NoError(t, s.Schedule(context.Background()))
	require.Len(t, engine.Entries(), 1)
	first := engine.Entries()[0].ID

	require.NoError(t, s.Reschedule(context.Background(), "30 */10 * * * *"))
	require.Len(t, engine.Entries(), 1)
	assert.NotEqual(t, first, engine.Entries()[0].ID)
	assert.Equal(t, "30 */10 * * * *", s.cronExpr)

	assert.Error(t, s.Reschedule(context.Background(), "every tuesday"))
	assert.Len(t, engine.Entries(), 1, "a bad expression keeps the current entry")
	assert.Equal(t, "30 */10 * * * *", s.cronExpr)
}

type fakeAcknowledger struct {
	acked    []uint64
	rejected []uint64
	requeue  []bool
}

func (f *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	f.rejected = append(f.rejected, tag)
	f.requeue = append(f.requeue, requeue)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.rejected = append(f.rejected, tag)
	f.requeue = append(f.requeue, requeue)
	return nil
}

func TestAMQPConsumer_Handle(t *testing.T) {
	q := &recordingQueue{}
	ack := &fakeAcknowledger{}
	c := NewAMQPConsumer("amqp://unused", "video.subtitle.cmd", q)

	deliver := func(tag uint64, body string) {
		c.Handle(amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: []byte(body)})
	}

	deliver(1, `{"video_path": "/videos/a.mp4", "profile": "korean", "burn_in": true}`)
	deliver(2, `{"video_path": "/videos/a.mp4"}`)
	deliver(3, `{not json`)
	deliver(4, `{"video_path": "  "}`)
	deliver(5, `{"video_path": "/videos/b.mp4", "profile": "klingon"}`)
	deliver(6, `{"video_path": "/videos/c.mp4", "dedupe_key": "custom"}`)

	assert.Equal(t, []uint64{1, 2, 6}, ack.acked, "duplicates are acked too")
	assert.Equal(t, []uint64{3, 4, 5}, ack.rejected)
	assert.Equal(t, []bool{false, false, false}, ack.requeue)

	require.Len(t, q.reqs, 2)
	assert.Equal(t, jobs.SourceAMQP, q.reqs[0].Source)
	assert.Equal(t, "/videos/a.mp4", q.reqs[0].DedupeKey)
	assert.Equal(t, "korean", q.reqs[0].Payload.Profile)
	assert.True(t, q.reqs[0].Payload.BurnIn)
	assert.Equal(t, "custom", q.reqs[1].DedupeKey)
}

func TestAMQPConsumer_RunRequiresConnection(t *testing.T) {
	c := NewAMQPConsumer("amqp://unused", "q", &recordingQueue{})
	assert.Error(t, c.Run(context.Background()))
	assert.NoError(t, c.Close())
}
