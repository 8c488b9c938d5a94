package media

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const probeJSON = `{"streams":[{"codec_type":"video","width":2,"height":2,"r_frame_rate":"10/1","avg_frame_rate":"10/1","nb_frames":"12"}],"format":{"duration":"1.200000"}}`

// installTools writes mock executables into a temp dir and puts it first on PATH.
func installTools(t *testing.T, scripts map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range scripts {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return dir
}

func TestParseProbe(t *testing.T) {
	tests := []struct {
		name        string
		output      string
		want        VideoInfo
		expectError bool
	}{
		{
			name:   "format duration",
			output: probeJSON,
			want:   VideoInfo{Width: 2, Height: 2, FPS: 10, Duration: 1200 * time.Millisecond, Frames: 12},
		},
		{
			name:   "fractional rate and stream duration",
			output: `{"streams":[{"codec_type":"video","width":640,"height":360,"r_frame_rate":"30000/1001","duration":"2.5"}],"format":{}}`,
			want:   VideoInfo{Width: 640, Height: 360, FPS: 30000.0 / 1001.0, Duration: 2500 * time.Millisecond},
		},
		{
			name:   "duration from frame count",
			output: `{"streams":[{"codec_type":"video","width":4,"height":4,"r_frame_rate":"0/0","avg_frame_rate":"25","nb_frames":"50"}],"format":{}}`,
			want:   VideoInfo{Width: 4, Height: 4, FPS: 25, Duration: 2 * time.Second, Frames: 50},
		},
		{
			name:        "no video stream",
			output:      `{"streams":[{"codec_type":"audio"}],"format":{"duration":"3"}}`,
			expectError: true,
		},
		{
			name:        "invalid json",
			output:      `{"streams": [`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbe([]byte(tt.output))
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Width, got.Width)
			assert.Equal(t, tt.want.Height, got.Height)
			assert.InDelta(t, tt.want.FPS, got.FPS, 1e-9)
			assert.Equal(t, tt.want.Duration, got.Duration)
			assert.Equal(t, tt.want.Frames, got.Frames)
		})
	}
}

func TestFrameTimestamp(t *testing.T) {
	assert.Equal(t, time.Duration(0), FrameTimestamp(0, 25))
	assert.Equal(t, 2*time.Second, FrameTimestamp(50, 25))
	assert.Equal(t, 500*time.Millisecond, FrameTimestamp(5, 10))
	assert.Equal(t, time.Duration(0), FrameTimestamp(10, 0))
}

func TestOpenFrames_YieldsStridedFrames(t *testing.T) {
	installTools(t, map[string]string{
		"ffprobe": "echo '" + probeJSON + "'",
		"ffmpeg":  "printf 'AAAABBBBCCCCDDDDEEEEFFFFGGGGHHHHIIIIJJJJKKKKLLLL'",
	})

	src, err := NewFfmpeg().OpenFrames(context.Background(), "clip.mp4", 5)
	require.NoError(t, err)
	defer src.Close()

	var frames []Frame
	for {
		f, err := src.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}

	require.Len(t, frames, 3)
	assert.Equal(t, []int{0, 5, 10}, []int{frames[0].Index, frames[1].Index, frames[2].Index})
	assert.Equal(t, 500*time.Millisecond, frames[1].Timestamp)
	assert.Equal(t, time.Second, frames[2].Timestamp)
	assert.Equal(t, []byte("FFFF"), frames[1].Image.Pix)
	assert.Equal(t, 2, frames[0].Image.Bounds().Dx())

	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, src.Close())
	assert.NoError(t, src.Close())
}

func TestOpenFrames_TruncatedFrameFails(t *testing.T) {
	installTools(t, map[string]string{
		"ffprobe": "echo '" + probeJSON + "'",
		"ffmpeg":  "printf 'AAAAB'",
	})

	src, err := NewFfmpeg().OpenFrames(context.Background(), "clip.mp4", 1)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next()
	require.NoError(t, err)
	_, err = src.Next()
	assert.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestOpenFrames_DecoderFailurePropagates(t *testing.T) {
	installTools(t, map[string]string{
		"ffprobe": "echo '" + probeJSON + "'",
		"ffmpeg":  "echo 'moov atom not found' >&2; exit 1",
	})

	src, err := NewFfmpeg().OpenFrames(context.Background(), "broken.mp4", 5)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moov atom not found")
}

func TestOpenFrames_CloseStopsRunningDecoder(t *testing.T) {
	installTools(t, map[string]string{
		"ffprobe": "echo '" + probeJSON + "'",
		"ffmpeg":  "exec cat /dev/zero",
	})

	src, err := NewFfmpeg().OpenFrames(context.Background(), "endless.mp4", 1)
	require.NoError(t, err)

	_, err = src.Next()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		src.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not stop the decoder")
	}

	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestOpenFrames_ProbeFailure(t *testing.T) {
	installTools(t, map[string]string{
		"ffprobe": "exit 1",
	})

	_, err := NewFfmpeg().OpenFrames(context.Background(), "missing.mp4", 5)
	assert.Error(t, err)
}

func TestBurnSubtitles_RenamesTempOutput(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	installTools(t, map[string]string{
		"ffmpeg": `for a; do last="$a"; printf "%s\n" "$a" >> ` + argsFile + `; done; echo burned > "$last"`,
	})

	outDir := t.TempDir()
	output := filepath.Join(outDir, "final.mp4")
	err := NewFfmpeg().BurnSubtitles(context.Background(), "in.mp4", "/tmp/sub:1.srt", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "burned\n", string(data))

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), `subtitles=/tmp/sub\\:1.srt:force_style='FontName=Noto Sans'`)
	assert.Contains(t, string(args), "libx264")
}

func TestBurnSubtitles_FailureLeavesNoOutput(t *testing.T) {
	installTools(t, map[string]string{
		"ffmpeg": "echo 'No such filter' >&2; exit 1",
	})

	outDir := t.TempDir()
	err := NewFfmpeg().BurnSubtitles(context.Background(), "in.mp4", "sub.srt", filepath.Join(outDir, "final.mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such filter")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCompress_AddsSuffix(t *testing.T) {
	installTools(t, map[string]string{
		"ffmpeg": `for a; do last="$a"; done; echo small > "$last"`,
	})

	outDir := t.TempDir()
	got, err := NewFfmpeg().Compress(context.Background(), "/videos/clip.mp4", outDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "clip_compressed.mp4"), got)
	assert.FileExists(t, got)
}

func TestEscapeFilterPath(t *testing.T) {
	assert.Equal(t, "/tmp/plain.srt", escapeFilterPath("/tmp/plain.srt"))
	assert.True(t, strings.HasPrefix(escapeFilterPath("C:/x.srt"), `C\\:`))
	assert.Equal(t, `/tmp/a\,b\[1\].srt`, escapeFilterPath("/tmp/a,b[1].srt"))
}

func TestMissingBinary(t *testing.T) {
	t.Setenv("PATH", "")

	_, err := NewFfmpeg().Probe(context.Background(), "test.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffprobe")
}
