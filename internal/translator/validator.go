package translator

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Validator scores a batch: the fraction of lines written in the target script.
type Validator interface {
	Fraction(lines []string) float64
}

// ScriptValidator counts lines that contain at least one matching rune
type ScriptValidator struct {
	Match func(r rune) bool
}

func (v ScriptValidator) Fraction(lines []string) float64 {
	if len(lines) == 0 {
		return 0
	}
	hits := 0
	for _, line := range lines {
		if strings.IndexFunc(line, v.Match) >= 0 {
			hits++
		}
	}
	return float64(hits) / float64(len(lines))
}

const vietnameseLetters = "àáảãạăằắẳẵặâầấẩẫậèéẻẽẹêềếểễệìíỉĩịòóỏõọôồốổỗộơờớởỡợùúủũụưừứửữựỳýỷỹỵđ"

func isVietnamese(r rune) bool {
	return strings.ContainsRune(vietnameseLetters, unicode.ToLower(r))
}

func inTables(tables ...*unicode.RangeTable) func(rune) bool {
	return func(r rune) bool { return unicode.In(r, tables...) }
}

var validators = map[language.Base]Validator{}

func init() {
	register := func(code string, v Validator) {
		validators[language.MustParseBase(code)] = v
	}
	register("vi", ScriptValidator{Match: isVietnamese})
	register("zh", ScriptValidator{Match: inTables(unicode.Han)})
	register("ja", ScriptValidator{Match: inTables(unicode.Hiragana, unicode.Katakana, unicode.Han)})
	register("ko", ScriptValidator{Match: inTables(unicode.Hangul)})
	register("ru", ScriptValidator{Match: inTables(unicode.Cyrillic)})
	register("th", ScriptValidator{Match: inTables(unicode.Thai)})
}

// ValidatorFor returns the validator registered for tag's base language, or nil.
func ValidatorFor(tag language.Tag) Validator {
	base, _ := tag.Base()
	return validators[base]
}
