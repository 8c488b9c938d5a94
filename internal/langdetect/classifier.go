package langdetect

import (
	"errors"

	"github.com/abadojack/whatlanggo"
)

// Classifier guesses the ISO 639-1 code of a text
type Classifier interface {
	Detect(text string) (string, error)
}

var ErrUnknownLanguage = errors.New("language could not be determined")

// WhatlangClassifier classifies with whatlanggo
type WhatlangClassifier struct {
	// MinConfidence rejects unreliable guesses when set.
	MinConfidence float64
}

func (c WhatlangClassifier) Detect(text string) (string, error) {
	info := whatlanggo.Detect(text)
	if info.Lang < 0 {
		return "", ErrUnknownLanguage
	}
	if c.MinConfidence > 0 && info.Confidence < c.MinConfidence {
		return "", ErrUnknownLanguage
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return "", ErrUnknownLanguage
	}
	return code, nil
}
