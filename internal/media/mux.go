package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/MimeLyc/hardsub-translator/pkg/file"
	"github.com/MimeLyc/hardsub-translator/pkg/log"
)

const subtitleStyle = "FontName=Noto Sans"

// BurnSubtitles renders subtitlePath into the video. ffmpeg writes into a
// temporary file next to outputPath which is renamed into place on success.
func (ff *Ffmpeg) BurnSubtitles(ctx context.Context, videoPath, subtitlePath, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), "ffmpeg_processing_temp_*"+filepath.Ext(outputPath))
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := ff.run(ctx, ff.burnArgs(videoPath, subtitlePath, tmpPath)); err != nil {
		return fmt.Errorf("burn subtitles into %s: %w", videoPath, err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return fmt.Errorf("move burned video into place: %w", err)
	}

	log.Info("Burned subtitles %s into %s", subtitlePath, outputPath)
	return nil
}

// Compress re-encodes videoPath into outputDir with a "_compressed" suffix and
// returns the new path.
func (ff *Ffmpeg) Compress(ctx context.Context, videoPath, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	output := filepath.Join(outputDir, file.Derive(videoPath, "_compressed", ""))

	if err := ff.run(ctx, ff.compressArgs(videoPath, output)); err != nil {
		return "", fmt.Errorf("compress %s: %w", videoPath, err)
	}

	log.Info("Compressed %s to %s", videoPath, output)
	return output, nil
}

func (ff *Ffmpeg) run(ctx context.Context, args []string) error {
	cmdPath, err := exec.LookPath(ff.ffmpegCmd)
	if err != nil {
		return err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, cmdPath, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (*Ffmpeg) burnArgs(videoPath, subtitlePath, outputPath string) []string {
	filter := fmt.Sprintf("subtitles=%s:force_style='%s'", escapeFilterPath(subtitlePath), subtitleStyle)
	return []string{
		"-y",
		"-i", videoPath,
		"-vf", filter,
		"-c:v", "libx264",
		"-crf", "23",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-c:a", "copy",
		outputPath,
	}
}

func (*Ffmpeg) compressArgs(videoPath, outputPath string) []string {
	return []string{
		"-y",
		"-i", videoPath,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-crf", "23",
		"-preset", "fast",
		"-movflags", "+faststart",
		"-threads", "0",
		"-b:v", "2M",
		outputPath,
	}
}

var filterPathEscaper = strings.NewReplacer(
	`\`, `\\\\`,
	`'`, `\\\'`,
	`:`, `\\:`,
	`,`, `\,`,
	`;`, `\;`,
	`[`, `\[`,
	`]`, `\]`,
)

// escapeFilterPath escapes both the option level and the filtergraph level
func escapeFilterPath(path string) string {
	return filterPathEscaper.Replace(filepath.ToSlash(path))
}
