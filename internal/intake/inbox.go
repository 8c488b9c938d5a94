package intake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/hardsub-translator/internal/jobs"
	"github.com/MimeLyc/hardsub-translator/internal/media"
	"github.com/MimeLyc/hardsub-translator/pkg/file"
	"github.com/MimeLyc/hardsub-translator/pkg/icron"
	"github.com/MimeLyc/hardsub-translator/pkg/log"
)

// Enqueuer accepts pipeline jobs
type Enqueuer interface {
	Enqueue(req jobs.EnqueueRequest) (*jobs.Job, bool)
}

// firstScanLookback bounds the first scan when the last cron activation is recent
const firstScanLookback = 7 * 24 * time.Hour

// InboxScanner periodically queues videos that appeared in a directory
type InboxScanner struct {
	dir      string
	defaults jobs.Payload
	queue    Enqueuer
	cron     *cron.Cron
	group    singleflight.Group
	now      func() time.Time

	mu          sync.Mutex
	cronExpr    string
	entryID     cron.EntryID
	scheduled   bool
	lastTrigger time.Time
}

// NewInboxScanner scans dir on cronExpr. defaults supplies every payload
// field but the video path.
func NewInboxScanner(dir, cronExpr string, queue Enqueuer, c *cron.Cron, defaults jobs.Payload) *InboxScanner {
	return &InboxScanner{
		dir:      dir,
		cronExpr: cronExpr,
		queue:    queue,
		cron:     c,
		defaults: defaults,
		now:      time.Now,
	}
}

// Schedule registers the scan with the cron engine
func (s *InboxScanner) Schedule(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked(ctx, s.cronExpr)
}

// Reschedule swaps the cron expression of a scheduled scanner
func (s *InboxScanner) Reschedule(ctx context.Context, cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cronExpr == s.cronExpr && s.scheduled {
		return nil
	}
	return s.scheduleLocked(ctx, cronExpr)
}

func (s *InboxScanner) scheduleLocked(ctx context.Context, cronExpr string) error {
	schedule, err := icron.Parser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	if s.scheduled {
		s.cron.Remove(s.entryID)
	}
	s.entryID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		if _, err := s.Scan(ctx); err != nil {
			log.Error("Inbox scan of %s failed: %v", s.dir, err)
		}
	}))
	s.cronExpr = cronExpr
	s.scheduled = true
	log.Info("Inbox %s scheduled with %q", s.dir, cronExpr)
	return nil
}

// Scan queues every video modified since the previous scan and returns how
// many new jobs were created. Overlapping calls share one walk.
func (s *InboxScanner) Scan(ctx context.Context) (int, error) {
	v, err, _ := s.group.Do("scan", func() (any, error) {
		return s.scan(ctx)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *InboxScanner) scan(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	triggered := s.now()
	start, err := s.startTime(triggered)
	if err != nil {
		return 0, err
	}
	log.Info("Scanning %s for videos modified after %v", s.dir, start)

	files, err := file.FindRecentAfter(s.dir, start, media.VideoExts...)
	if err != nil {
		return 0, fmt.Errorf("find recent videos: %w", err)
	}

	created := 0
	for _, path := range files {
		payload := s.defaults
		payload.VideoPath = path
		if _, ok := s.queue.Enqueue(jobs.EnqueueRequest{
			Source:    jobs.SourceInbox,
			DedupeKey: path,
			Payload:   payload,
		}); ok {
			created++
		}
	}

	s.mu.Lock()
	s.lastTrigger = triggered
	s.mu.Unlock()

	log.Info("Found %d videos in %s, queued %d", len(files), s.dir, created)
	return created, nil
}

// startTime is the previous scan time. Before the first scan it is the last
// cron activation, or a week back if that activation is less than a day old.
func (s *InboxScanner) startTime(now time.Time) (time.Time, error) {
	s.mu.Lock()
	last, expr := s.lastTrigger, s.cronExpr
	s.mu.Unlock()
	if !last.IsZero() {
		return last, nil
	}

	info, err := icron.GetTriggerInfo(expr, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get cron schedule: %w", err)
	}
	if now.Add(-24 * time.Hour).Before(info.Last) {
		return now.Add(-firstScanLookback), nil
	}
	return info.Last, nil
}
