package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// TesseractEngine shells out to the tesseract CLI, feeding the image as PNG
// on stdin and reading TSV from stdout.
type TesseractEngine struct {
	command     string
	lang        string
	pageSegMode int
}

// TesseractFactory creates tesseract engines for profiles
type TesseractFactory struct {
	Command     string
	PageSegMode int
}

func (f TesseractFactory) New(profile Profile) (Engine, error) {
	return NewTesseractEngine(f.Command, profile, f.PageSegMode)
}

// NewTesseractEngine verifies the binary exists and binds it to a profile
func NewTesseractEngine(command string, profile Profile, pageSegMode int) (*TesseractEngine, error) {
	if command == "" {
		command = "tesseract"
	}
	cmdPath, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("OCR engine not available: %w", err)
	}
	if pageSegMode <= 0 {
		pageSegMode = 6
	}
	return &TesseractEngine{
		command:     cmdPath,
		lang:        tesseractLang(profile),
		pageSegMode: pageSegMode,
	}, nil
}

func tesseractLang(p Profile) string {
	switch p {
	case ProfileChinese:
		return "chi_sim"
	case ProfileJapanese:
		return "jpn"
	case ProfileKorean:
		return "kor"
	case ProfileVietnamese:
		return "vie"
	default:
		return "eng"
	}
}

func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image) ([]Detection, error) {
	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.command, e.args()...)
	cmd.Stdin = &in
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseTSV(&out)
}

func (e *TesseractEngine) args() []string {
	return []string{
		"stdin", "stdout",
		"-l", e.lang,
		"--psm", strconv.Itoa(e.pageSegMode),
		"tsv",
	}
}

type lineKey struct{ page, block, par, line int }

type lineAcc struct {
	words []string
	box   image.Rectangle
	conf  float64
}

// parseTSV groups word rows (level 5) into lines, in first-seen order
func parseTSV(r io.Reader) ([]Detection, error) {
	scanner := bufio.NewScanner(r)
	var order []lineKey
	lines := map[lineKey]*lineAcc{}

	header := true
	for scanner.Scan() {
		if header {
			header = false
			continue
		}
		cols := strings.Split(scanner.Text(), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}

		n := make([]int, 10)
		for i := 1; i <= 9; i++ {
			n[i], _ = strconv.Atoi(cols[i])
		}
		conf, _ := strconv.ParseFloat(cols[10], 64)

		key := lineKey{n[1], n[2], n[3], n[4]}
		acc, ok := lines[key]
		box := image.Rect(n[6], n[7], n[6]+n[8], n[7]+n[9])
		if !ok {
			acc = &lineAcc{box: box}
			lines[key] = acc
			order = append(order, key)
		} else {
			acc.box = acc.box.Union(box)
		}
		acc.words = append(acc.words, text)
		acc.conf += conf
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tesseract output: %w", err)
	}

	detections := make([]Detection, 0, len(order))
	for _, key := range order {
		acc := lines[key]
		detections = append(detections, Detection{
			Box:        acc.box,
			Text:       strings.Join(acc.words, " "),
			Confidence: acc.conf / float64(len(acc.words)) / 100,
		})
	}
	return detections, nil
}
