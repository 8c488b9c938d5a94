package langdetect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/MimeLyc/hardsub-translator/internal/media"
	"github.com/MimeLyc/hardsub-translator/internal/ocr"
	"github.com/MimeLyc/hardsub-translator/pkg/log"
)

// Reason records which rule picked the profile
type Reason string

const (
	ReasonHan        Reason = "han"
	ReasonKana       Reason = "kana"
	ReasonHangul     Reason = "hangul"
	ReasonClassifier Reason = "classifier"
	ReasonFallback   Reason = "fallback"
)

// DefaultSamples is the number of leading frames probed
const DefaultSamples = 5

// ProbeProfiles are the models each sample frame is read with
var ProbeProfiles = []ocr.Profile{ocr.ProfileChinese, ocr.ProfileJapanese, ocr.ProfileKorean, ocr.ProfileEnglish}

// Detection is the chosen profile with the evidence behind it
type Detection struct {
	Profile ocr.Profile
	Reason  Reason
	Texts   []string
	// Classified is the classifier answer, empty unless the classifier ran.
	Classified string
}

// Detector picks an OCR profile by reading the first frames of a video
type Detector struct {
	decoder    media.Decoder
	factory    ocr.Factory
	classifier Classifier
	samples    int
}

func NewDetector(decoder media.Decoder, factory ocr.Factory, classifier Classifier, samples int) *Detector {
	if samples <= 0 {
		samples = DefaultSamples
	}
	if classifier == nil {
		classifier = WhatlangClassifier{}
	}
	return &Detector{
		decoder:    decoder,
		factory:    factory,
		classifier: classifier,
		samples:    samples,
	}
}

// Detect is a one-off per video: it builds a throwaway engine for every probe
// profile and releases them before returning.
func (d *Detector) Detect(ctx context.Context, path string) (Detection, error) {
	engines := make([]ocr.Engine, 0, len(ProbeProfiles))
	defer func() {
		for _, e := range engines {
			if c, ok := e.(io.Closer); ok {
				c.Close()
			}
		}
	}()
	for _, p := range ProbeProfiles {
		e, err := d.factory.New(p)
		if err != nil {
			return Detection{}, fmt.Errorf("create %s engine: %w", p, err)
		}
		engines = append(engines, e)
	}

	src, err := d.decoder.OpenFrames(ctx, path, 1)
	if err != nil {
		return Detection{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	var texts []string
	for i := 0; i < d.samples; i++ {
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Detection{}, fmt.Errorf("decode sample frame: %w", err)
		}

		for j, e := range engines {
			detections, err := e.Recognize(ctx, frame.Image)
			if err != nil {
				log.Warn("Language probe with %s failed on frame %d: %v", ProbeProfiles[j], frame.Index, err)
				continue
			}
			if text := ocr.Text(detections); text != "" {
				texts = append(texts, text)
			}
		}
	}

	result := DecideProfile(texts, d.classifier)
	log.Info("Detected OCR profile %s for %s (%s, %d samples with text)", result.Profile, path, result.Reason, len(texts))
	return result, nil
}

// DecideProfile applies the script rules in order (Han, kana, Hangul), then
// the classifier, then falls back to English.
func DecideProfile(texts []string, classifier Classifier) Detection {
	result := Detection{Texts: texts}

	switch {
	case anyHas(texts, unicode.Han):
		result.Profile, result.Reason = ocr.ProfileChinese, ReasonHan
		return result
	case anyHas(texts, unicode.Hiragana, unicode.Katakana):
		result.Profile, result.Reason = ocr.ProfileJapanese, ReasonKana
		return result
	case anyHas(texts, unicode.Hangul):
		result.Profile, result.Reason = ocr.ProfileKorean, ReasonHangul
		return result
	}

	result.Profile, result.Reason = ocr.ProfileEnglish, ReasonFallback
	joined := strings.TrimSpace(strings.Join(texts, " "))
	if joined == "" || classifier == nil {
		return result
	}

	code, err := classifier.Detect(joined)
	if err != nil {
		log.Debug("Language classifier gave up: %v", err)
		return result
	}
	result.Classified = code
	switch code {
	case "vi":
		result.Profile, result.Reason = ocr.ProfileVietnamese, ReasonClassifier
	case "en":
		result.Profile, result.Reason = ocr.ProfileEnglish, ReasonClassifier
	}
	return result
}

func anyHas(texts []string, tables ...*unicode.RangeTable) bool {
	for _, text := range texts {
		for _, r := range text {
			if unicode.In(r, tables...) {
				return true
			}
		}
	}
	return false
}
