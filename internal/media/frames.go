package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/MimeLyc/hardsub-translator/pkg/log"
)

// OpenFrames starts a grayscale raw decode of path. The returned source must be closed.
func (ff *Ffmpeg) OpenFrames(ctx context.Context, path string, skip int) (FrameSource, error) {
	if skip < 1 {
		skip = 1
	}

	info, err := ff.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	cmdPath, err := exec.LookPath(ff.ffmpegCmd)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, cmdPath, ff.decodeArgs(path)...)
	src := &rawFrames{
		cmd:  cmd,
		info: info,
		skip: skip,
		buf:  make([]byte, info.Width*info.Height),
	}
	cmd.Stderr = &src.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	src.stdout = stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	log.Debug("Decoding %s (%dx%d @ %.3f fps, skip %d)", path, info.Width, info.Height, info.FPS, skip)
	return src, nil
}

func (*Ffmpeg) decodeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-i", path,
		"-vsync", "0",
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-",
	}
}

type rawFrames struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	info   VideoInfo
	skip   int
	next   int
	buf    []byte

	waitOnce sync.Once
	waitErr  error
	closed   bool
}

func (r *rawFrames) Info() VideoInfo { return r.info }

func (r *rawFrames) Next() (Frame, error) {
	if r.closed {
		return Frame{}, io.EOF
	}

	for {
		_, err := io.ReadFull(r.stdout, r.buf)
		switch {
		case errors.Is(err, io.EOF):
			if werr := r.wait(); werr != nil {
				return Frame{}, werr
			}
			return Frame{}, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			r.wait()
			return Frame{}, fmt.Errorf("truncated frame %d", r.next)
		case err != nil:
			return Frame{}, fmt.Errorf("read frame %d: %w", r.next, err)
		}

		index := r.next
		r.next++
		if index%r.skip != 0 {
			continue
		}

		img := image.NewGray(image.Rect(0, 0, r.info.Width, r.info.Height))
		copy(img.Pix, r.buf)
		return Frame{
			Index:     index,
			Image:     img,
			Timestamp: FrameTimestamp(index, r.info.FPS),
		}, nil
	}
}

func (r *rawFrames) wait() error {
	r.waitOnce.Do(func() {
		if err := r.cmd.Wait(); err != nil {
			msg := strings.TrimSpace(r.stderr.String())
			r.waitErr = fmt.Errorf("ffmpeg decode: %w: %s", err, msg)
		}
	})
	return r.waitErr
}

// Close stops the decoder if it is still running and reaps it
func (r *rawFrames) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	r.stdout.Close()
	if r.cmd.ProcessState == nil && r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	r.wait()
	return nil
}
