package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"golang.org/x/text/language"
)

// Profile selects the recognition model used for a whole OCR pass
type Profile string

const (
	ProfileEnglish    Profile = "en"
	ProfileChinese    Profile = "ch"
	ProfileJapanese   Profile = "japan"
	ProfileKorean     Profile = "korean"
	ProfileVietnamese Profile = "vi"
)

// Profiles lists every supported profile
var Profiles = []Profile{ProfileEnglish, ProfileChinese, ProfileJapanese, ProfileKorean, ProfileVietnamese}

// ParseProfile accepts profile names as well as common language codes.
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "eng", "english":
		return ProfileEnglish, nil
	case "ch", "zh", "chi_sim", "chinese":
		return ProfileChinese, nil
	case "japan", "ja", "jpn", "japanese":
		return ProfileJapanese, nil
	case "korean", "ko", "kor":
		return ProfileKorean, nil
	case "vi", "vie", "vietnamese":
		return ProfileVietnamese, nil
	}
	return "", fmt.Errorf("unknown OCR profile %q", s)
}

// Tag is the language a profile recognizes
func (p Profile) Tag() language.Tag {
	switch p {
	case ProfileChinese:
		return language.SimplifiedChinese
	case ProfileJapanese:
		return language.Japanese
	case ProfileKorean:
		return language.Korean
	case ProfileVietnamese:
		return language.Vietnamese
	default:
		return language.English
	}
}

// Detection is one recognized text region
type Detection struct {
	Box        image.Rectangle
	Text       string
	Confidence float64
}

// Engine recognizes text in a single image. A nil or empty result means no
// text. Implementations keep no per-call state and are safe for concurrent use.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) ([]Detection, error)
}

// Factory builds an engine for a profile
type Factory interface {
	New(profile Profile) (Engine, error)
}

// FactoryFunc adapts a function to Factory
type FactoryFunc func(profile Profile) (Engine, error)

func (f FactoryFunc) New(profile Profile) (Engine, error) { return f(profile) }

// Text joins non-blank detection texts with single spaces, in engine order.
func Text(detections []Detection) string {
	parts := make([]string, 0, len(detections))
	for _, d := range detections {
		if t := strings.TrimSpace(d.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
