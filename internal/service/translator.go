package service

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MimeLyc/hardsub-translator/internal/subtitle"
	"github.com/MimeLyc/hardsub-translator/internal/translator"
	"github.com/MimeLyc/hardsub-translator/pkg/file"
	"github.com/MimeLyc/hardsub-translator/pkg/log"
)

// SubtitleTranslator translates a subtitle file into a new file with the same
// indices and timings. It always tries to leave a readable file behind: bad
// or missing input produces a placeholder track instead of an error.
type SubtitleTranslator struct {
	reader     subtitle.Reader
	writer     subtitle.Writer
	translator translator.Translator
	workDir    string
}

type SubtitleTranslatorOption func(*SubtitleTranslator)

func WithSubtitleIO(reader subtitle.Reader, writer subtitle.Writer) SubtitleTranslatorOption {
	return func(s *SubtitleTranslator) {
		if reader != nil {
			s.reader = reader
		}
		if writer != nil {
			s.writer = writer
		}
	}
}

// WithWorkDir sets where bare output names are written
func WithWorkDir(dir string) SubtitleTranslatorOption {
	return func(s *SubtitleTranslator) {
		if dir != "" {
			s.workDir = dir
		}
	}
}

func NewSubtitleTranslator(tr translator.Translator, opts ...SubtitleTranslatorOption) *SubtitleTranslator {
	s := &SubtitleTranslator{
		reader:     subtitle.NewReader(),
		writer:     subtitle.NewWriter(),
		translator: tr,
		workDir:    "tempsrt",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TranslateFile writes the translation of inputPath next to outputPath, under
// a counter-prefixed name if outputPath is taken. An output path without a
// directory is placed in the work dir.
func (s *SubtitleTranslator) TranslateFile(ctx context.Context, inputPath, outputPath string) TranslateResult {
	var (
		res TranslateResult
		out *subtitle.File
	)

	err := SafeExecute(func() error {
		if _, err := os.Stat(inputPath); errors.Is(err, fs.ErrNotExist) {
			log.Warn("Subtitle %s does not exist, writing placeholder", inputPath)
			res.Status = StatusNoInput
			out = subtitle.Placeholder(subtitle.PlaceholderUnavailable)
			return nil
		}

		sub, err := s.reader.Read(inputPath)
		if err != nil {
			return WrapError(err, ErrFileRead, "read subtitle").WithContext("path", inputPath)
		}
		if len(sub.Lines) == 0 {
			log.Warn("Subtitle %s has no records, writing placeholder", inputPath)
			res.Status = StatusEmptyInput
			out = subtitle.Placeholder(subtitle.PlaceholderNothingToTranslate)
			return nil
		}

		tr := s.translator.Translate(ctx, sub.Texts())
		if len(tr.Texts) != len(sub.Lines) {
			return NewError(ErrTranslation, "translation changed the number of lines").
				WithContext("want", len(sub.Lines)).
				WithContext("got", len(tr.Texts))
		}

		lines := make([]subtitle.Line, len(sub.Lines))
		for i, line := range sub.Lines {
			lines[i] = subtitle.Line{
				Index:     line.Index,
				StartTime: line.StartTime,
				EndTime:   line.EndTime,
				Text:      tr.Texts[i],
			}
		}
		out = &subtitle.File{Lines: lines, Format: sub.Format}

		res.Status = StatusTranslated
		res.Lines = len(lines)
		res.Batches = len(tr.Batches)
		res.Failed = tr.Failed()
		return nil
	})
	if err != nil {
		log.Error("Translating %s failed, writing placeholder: %v", inputPath, err)
		res = TranslateResult{Status: StatusError, Err: err}
		out = subtitle.Placeholder(subtitle.PlaceholderTranslationError)
	}

	dir, name := filepath.Split(outputPath)
	if dir == "" {
		dir = s.workDir
	}
	if name == "" {
		name = TranslatedName(inputPath)
	}
	path, werr := s.writer.WriteUnique(dir, name, out)
	if werr != nil {
		log.Error("Failed to write translated subtitle %s: %v", outputPath, werr)
		return TranslateResult{
			Status: StatusWriteFailed,
			Err:    WrapError(werr, ErrFileWrite, "write translated subtitle").WithContext("path", outputPath),
		}
	}

	res.Path = path
	log.Info("Wrote %s subtitle %s", res.Status, path)
	return res
}

// TranslatedName is the default output name for a translation of path
func TranslatedName(path string) string {
	return file.Derive(path, "_translate", ".srt")
}
