package translator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var numberedLine = regexp.MustCompile(`^\s*(\d+)\.\s*(.*)$`)

// LanguageName is the English name of a language code or tag, "auto" excluded.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// BuildPrompt numbers texts from 1 and asks for a translation into target
// that keeps the numbering.
func BuildPrompt(texts []string, target, source string) string {
	var prompt strings.Builder

	from := ""
	if source != "" && source != AutoLanguage {
		from = " from " + LanguageName(source)
	}
	prompt.WriteString(fmt.Sprintf("Translate the following lines%s into %s, keeping the numbering.\n", from, LanguageName(target)))
	prompt.WriteString("If a line cannot be translated, keep the original text. ")
	prompt.WriteString("Return only the numbered translations, without the original lines.\n")
	prompt.WriteString("Preserve " + inlineBreakerPlaceholder + " markers.\n\n")

	for i, text := range texts {
		prompt.WriteString(fmt.Sprintf("%d. %s\n", i+1, strings.ReplaceAll(text, "\n", inlineBreakerPlaceholder)))
	}
	return prompt.String()
}

// ParseNumbered maps "<n>. <text>" lines of response back onto positions of
// fallback. Missing or out-of-range numbers keep the fallback text; a
// repeated number keeps its last occurrence.
func ParseNumbered(response string, fallback []string) []string {
	found := make(map[int]string)
	for _, line := range strings.Split(strings.TrimSpace(response), "\n") {
		m := numberedLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(fallback) {
			continue
		}
		found[n] = strings.ReplaceAll(strings.TrimSpace(m[2]), inlineBreakerPlaceholder, "\n")
	}

	out := make([]string, len(fallback))
	for i := range fallback {
		if text, ok := found[i+1]; ok {
			out[i] = text
		} else {
			out[i] = fallback[i]
		}
	}
	return out
}
