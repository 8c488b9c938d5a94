package subtitle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MimeLyc/hardsub-translator/pkg/file"
)

const maxUniqueAttempts = 1000

// SRTWriter writes SRT subtitle files
type SRTWriter struct{}

// NewWriter creates a new subtitle file writer
func NewWriter() Writer {
	return &SRTWriter{}
}

// Write writes the track to path
func (w *SRTWriter) Write(path string, subtitle *File) error {
	if subtitle == nil {
		return fmt.Errorf("subtitle data is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := encode(f, subtitle); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteUnique picks a free name in dir and creates it exclusively, so two
// concurrent writers never share an output file.
func (w *SRTWriter) WriteUnique(dir, name string, subtitle *File) (string, error) {
	if subtitle == nil {
		return "", fmt.Errorf("subtitle data is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	for attempt := 0; attempt < maxUniqueAttempts; attempt++ {
		path := file.UniqueName(dir, name, nil)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			// lost the race for this name; look again
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create output file: %w", err)
		}
		if err := encode(f, subtitle); err != nil {
			f.Close()
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close output file: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}

func encode(out io.Writer, subtitle *File) error {
	bw := bufio.NewWriter(out)
	for _, line := range subtitle.Lines {
		text := line.TranslatedText
		if text == "" {
			text = line.Text
		}
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			line.Index, FormatTimestamp(line.StartTime), FormatTimestamp(line.EndTime), text)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write subtitle: %w", err)
	}
	return nil
}
