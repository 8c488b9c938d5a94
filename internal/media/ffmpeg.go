package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/hardsub-translator/pkg/log"
)

// Ffmpeg drives the ffmpeg and ffprobe binaries
type Ffmpeg struct {
	ffmpegCmd  string
	ffprobeCmd string
}

type Option func(*Ffmpeg)

// WithBinaries overrides the ffmpeg and ffprobe executables.
func WithBinaries(ffmpegCmd, ffprobeCmd string) Option {
	return func(f *Ffmpeg) {
		if ffmpegCmd != "" {
			f.ffmpegCmd = ffmpegCmd
		}
		if ffprobeCmd != "" {
			f.ffprobeCmd = ffprobeCmd
		}
	}
}

func NewFfmpeg(opts ...Option) *Ffmpeg {
	ff := &Ffmpeg{
		ffmpegCmd:  "ffmpeg",
		ffprobeCmd: "ffprobe",
	}
	for _, opt := range opts {
		opt(ff)
	}
	return ff
}

type probeResult struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
		NbFrames     string `json:"nb_frames"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads size, frame rate and duration of the first video stream
func (ff *Ffmpeg) Probe(ctx context.Context, path string) (VideoInfo, error) {
	cmdPath, err := exec.LookPath(ff.ffprobeCmd)
	if err != nil {
		return VideoInfo{}, err
	}
	cmd := exec.CommandContext(ctx, cmdPath, ff.probeArgs(path)...)

	output, err := cmd.Output()
	if err != nil {
		log.Error("Failed to run ffprobe on %s: %v", path, err)
		return VideoInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	return parseProbe(output)
}

func parseProbe(output []byte) (VideoInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return VideoInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	for _, stream := range probe.Streams {
		if stream.CodecType != "" && stream.CodecType != "video" {
			continue
		}

		info := VideoInfo{
			Width:  stream.Width,
			Height: stream.Height,
			FPS:    parseRate(stream.RFrameRate),
		}
		if info.FPS <= 0 {
			info.FPS = parseRate(stream.AvgFrameRate)
		}
		if info.Width <= 0 || info.Height <= 0 || info.FPS <= 0 {
			return VideoInfo{}, fmt.Errorf("video stream without usable size or frame rate")
		}
		info.Frames, _ = strconv.Atoi(stream.NbFrames)

		switch {
		case parseSeconds(probe.Format.Duration) > 0:
			info.Duration = parseSeconds(probe.Format.Duration)
		case parseSeconds(stream.Duration) > 0:
			info.Duration = parseSeconds(stream.Duration)
		case info.Frames > 0:
			info.Duration = FrameTimestamp(info.Frames, info.FPS)
		}
		return info, nil
	}

	return VideoInfo{}, fmt.Errorf("no video stream found")
}

// parseRate parses "30000/1001" or "25"
func parseRate(rate string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(rate), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func parseSeconds(s string) time.Duration {
	sec, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || sec <= 0 {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}

func (*Ffmpeg) probeArgs(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		"-select_streams", "v:0",
		path,
	}
}
