package subtitle

import (
	"time"

	"golang.org/x/text/language"
)

const (
	// PlaceholderNoSubtitles marks a track where OCR found no text.
	PlaceholderNoSubtitles = "No subtitles detected"
	// PlaceholderUnavailable marks a translation whose input file was missing.
	PlaceholderUnavailable = "No subtitles available"
	// PlaceholderNothingToTranslate marks a translation whose input had no records.
	PlaceholderNothingToTranslate = "No subtitles to translate"
	// PlaceholderTranslationError marks a translation that failed unexpectedly.
	PlaceholderTranslationError = "Translation error occurred"

	// PlaceholderEnd is the end time of every placeholder record.
	PlaceholderEnd = 5 * time.Second
)

// Reader is the interface for reading subtitle files
type Reader interface {
	Read(path string) (*File, error)
}

// Writer is the interface for writing subtitle files
type Writer interface {
	// Write writes exactly to path, replacing any existing file.
	Write(path string, subtitle *File) error
	// WriteUnique writes into dir under name, or under the first
	// counter-prefixed variant of name that is not taken yet.
	WriteUnique(dir, name string, subtitle *File) (string, error)
}

// Line is a single subtitle record
type Line struct {
	Index          int           `json:"index"`
	StartTime      time.Duration `json:"start_time"`
	EndTime        time.Duration `json:"end_time"`
	Text           string        `json:"text"`
	TranslatedText string        `json:"translated_text,omitempty"`
}

// Interval is a span during which one piece of burned-in text stays on screen.
type Interval struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// File is an ordered subtitle track
type File struct {
	Lines    []Line
	Language language.Tag
	Format   string // e.g. SRT
	Path     string
}

// Texts returns the record texts in order.
func (f *File) Texts() []string {
	if f == nil {
		return nil
	}
	ret := make([]string, len(f.Lines))
	for i, line := range f.Lines {
		ret[i] = line.Text
	}
	return ret
}

// FromIntervals numbers intervals 1..N in input order. An empty input yields
// the single "no subtitles detected" placeholder record.
func FromIntervals(intervals []Interval) *File {
	if len(intervals) == 0 {
		return Placeholder(PlaceholderNoSubtitles)
	}

	lines := make([]Line, len(intervals))
	for i, iv := range intervals {
		lines[i] = Line{
			Index:     i + 1,
			StartTime: iv.Start,
			EndTime:   iv.End,
			Text:      iv.Text,
		}
	}
	return &File{
		Lines:    lines,
		Language: language.Und,
		Format:   "SRT",
	}
}

// Placeholder builds a one-record track spanning 0s to 5s.
func Placeholder(text string) *File {
	return &File{
		Lines: []Line{{
			Index:     1,
			StartTime: 0,
			EndTime:   PlaceholderEnd,
			Text:      text,
		}},
		Language: language.Und,
		Format:   "SRT",
	}
}
