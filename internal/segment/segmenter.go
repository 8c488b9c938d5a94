package segment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/MimeLyc/hardsub-translator/internal/media"
	"github.com/MimeLyc/hardsub-translator/internal/ocr"
	"github.com/MimeLyc/hardsub-translator/internal/subtitle"
	"github.com/MimeLyc/hardsub-translator/pkg/log"
	"github.com/pmezard/go-difflib/difflib"
)

const (
	DefaultMinLength  = 3
	DefaultSimilarity = 0.8
	DefaultFrameSkip  = 5
)

// Status tells an empty result apart from a broken engine
type Status string

const (
	StatusFound        Status = "found"
	StatusNoText       Status = "no_text"
	StatusEngineFailed Status = "engine_failed"
)

// Result of one segmentation pass
type Result struct {
	Intervals     []subtitle.Interval
	FramesSampled int
	FramesFailed  int
	Status        Status
}

type Options struct {
	MinLength  int     // in runes
	Similarity float64 // a ratio below this starts a new subtitle
	FrameSkip  int
}

func (o Options) withDefaults() Options {
	if o.MinLength <= 0 {
		o.MinLength = DefaultMinLength
	}
	if o.Similarity <= 0 {
		o.Similarity = DefaultSimilarity
	}
	if o.FrameSkip <= 0 {
		o.FrameSkip = DefaultFrameSkip
	}
	return o
}

// Segmenter turns OCR text over sampled frames into subtitle intervals
type Segmenter struct {
	decoder media.Decoder
	opts    Options
}

func New(decoder media.Decoder, opts Options) *Segmenter {
	return &Segmenter{
		decoder: decoder,
		opts:    opts.withDefaults(),
	}
}

// Run reads path with engine. Decode failures are returned; a frame the
// engine cannot read counts as a frame without text.
func (s *Segmenter) Run(ctx context.Context, path string, engine ocr.Engine) (*Result, error) {
	src, err := s.decoder.OpenFrames(ctx, path, s.opts.FrameSkip)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	info := src.Info()
	result := &Result{}

	var (
		previous  string
		start     time.Duration
		lastFrame media.Frame
		seen      bool
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		result.FramesSampled++
		lastFrame, seen = frame, true

		detections, err := engine.Recognize(ctx, frame.Image)
		if err != nil {
			result.FramesFailed++
			log.Warn("OCR failed on frame %d of %s: %v", frame.Index, path, err)
			continue
		}

		current := ocr.Text(detections)
		if utf8.RuneCountInString(current) < s.opts.MinLength {
			continue
		}

		if Similarity(current, previous) < s.opts.Similarity {
			if previous != "" {
				result.Intervals = append(result.Intervals, subtitle.Interval{
					Start: start,
					End:   frame.Timestamp,
					Text:  previous,
				})
			}
			start = frame.Timestamp
			previous = current
		}
	}

	if previous != "" {
		end := info.Duration
		if end <= start && seen {
			end = lastFrame.Timestamp + info.FramePeriod()
		}
		if end <= start {
			end = start + time.Millisecond
		}
		result.Intervals = append(result.Intervals, subtitle.Interval{Start: start, End: end, Text: previous})
	}

	switch {
	case len(result.Intervals) > 0:
		result.Status = StatusFound
	case result.FramesSampled > 0 && result.FramesFailed == result.FramesSampled:
		result.Status = StatusEngineFailed
	default:
		result.Status = StatusNoText
	}

	log.Info("Segmented %s: %d intervals from %d sampled frames (%d OCR failures)",
		path, len(result.Intervals), result.FramesSampled, result.FramesFailed)
	return result, nil
}

// Similarity is the SequenceMatcher ratio over runes: 2*M/T, with two empty
// strings counting as identical. Arguments are put in a fixed order so the
// result does not depend on which text came first.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a > b {
		a, b = b, a
	}
	ra, rb := splitRunes(a), splitRunes(b)
	if len(ra)+len(rb) == 0 {
		return 1
	}
	// difflib's autojunk heuristic makes the ratio asymmetric on long inputs
	m := difflib.NewMatcherWithJunk(ra, rb, false, nil)
	return m.Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
