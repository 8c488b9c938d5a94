package subtitle

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

var timingLine = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2}),(\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2}),(\d{3})`)

// SRTReader reads SRT subtitle files
type SRTReader struct{}

// NewReader creates a new subtitle file reader
func NewReader() Reader {
	return &SRTReader{}
}

// Read parses the SRT file at path
func (r *SRTReader) Read(path string) (*File, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".srt") {
		return nil, fmt.Errorf("only SRT format subtitle files are supported: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitle file: %w", err)
	}

	sub, err := ReadSRTBytes(data)
	if err != nil {
		return nil, err
	}
	sub.Path = path
	return sub, nil
}

// ReadSRTBytes parses SRT content. A UTF-8 BOM and CRLF line endings are tolerated.
func ReadSRTBytes(data []byte) (*File, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	lines, err := parseSRT(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &File{
		Lines:    lines,
		Language: detectLanguage(lines),
		Format:   "SRT",
	}, nil
}

func parseSRT(r io.Reader) ([]Line, error) {
	var lines []Line
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	current := Line{}
	state := "index"
	var textLines []string

	flush := func() {
		if len(textLines) > 0 {
			current.Text = strings.Join(textLines, "\n")
			lines = append(lines, current)
		}
		current = Line{}
		textLines = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch state {
		case "index":
			if line == "" {
				continue
			}
			index, err := strconv.Atoi(line)
			if err != nil {
				continue
			}
			current.Index = index
			state = "time"

		case "time":
			if line == "" {
				continue
			}
			start, end, err := parseSRTTime(line)
			if err != nil {
				return nil, fmt.Errorf("failed to parse time: %w", err)
			}
			current.StartTime = start
			current.EndTime = end
			state = "text"

		case "text":
			if line == "" {
				flush()
				state = "index"
				continue
			}
			textLines = append(textLines, line)
		}
	}
	if state == "text" {
		flush()
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subtitle file: %w", err)
	}
	return lines, nil
}

// parseSRTTime parses "00:02:16,612 --> 00:02:19,376"
func parseSRTTime(s string) (time.Duration, time.Duration, error) {
	m := timingLine.FindStringSubmatch(s)
	if len(m) != 9 {
		return 0, 0, fmt.Errorf("invalid time format: %s", s)
	}
	return clock(m[1], m[2], m[3], m[4]), clock(m[5], m[6], m[7], m[8]), nil
}

func clock(hours, minutes, seconds, millis string) time.Duration {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)
	ms, _ := strconv.Atoi(millis)
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond
}

// detectLanguage returns the most common language across records
func detectLanguage(lines []Line) language.Tag {
	if len(lines) == 0 {
		return language.Und
	}

	counts := make(map[string]int)
	for _, line := range lines {
		info := whatlanggo.Detect(line.Text)
		if info.Lang < 0 {
			continue
		}
		counts[info.Lang.Iso6391()]++
	}

	var top string
	var topCount int
	for lang, count := range counts {
		if count > topCount || (count == topCount && lang < top) {
			top = lang
			topCount = count
		}
	}
	if top == "" {
		return language.Und
	}

	tag, err := language.Parse(top)
	if err != nil {
		return language.Und
	}
	return tag
}
