package translator

import (
	"context"

	"golang.org/x/text/language"
)

const (
	DefaultBatchSize       = 20
	DefaultScriptThreshold = 0.4
	AutoLanguage           = "auto"

	// keeps multi-line records on one numbered prompt line
	inlineBreakerPlaceholder = "%%inline_breaker%%"
)

// Oracle is any text generation service: one prompt in, one completion out.
type Oracle interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OracleFunc adapts a function to Oracle
type OracleFunc func(ctx context.Context, prompt string) (string, error)

func (f OracleFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Translator translates subtitle texts, keeping length and order.
type Translator interface {
	Translate(ctx context.Context, texts []string) *Result
}

type Options struct {
	Target language.Tag
	// Source is a language code or "auto".
	Source string
	// Bridge is the intermediate language used when a batch does not come
	// back in the target script.
	Bridge          language.Tag
	BatchSize       int
	ScriptThreshold float64
	// Validator scores how much of a batch is in the target script. When nil
	// the validator registered for Target is used; targets without one skip
	// validation.
	Validator Validator
}

func (o Options) withDefaults() Options {
	if o.Target == language.Und {
		o.Target = language.Vietnamese
	}
	if o.Source == "" {
		o.Source = AutoLanguage
	}
	if o.Bridge == language.Und {
		o.Bridge = language.English
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.ScriptThreshold <= 0 {
		o.ScriptThreshold = DefaultScriptThreshold
	}
	if o.Validator == nil {
		o.Validator = ValidatorFor(o.Target)
	}
	return o
}

// Outcome of a single batch
type Outcome string

const (
	OutcomeTranslated Outcome = "translated"
	OutcomeBridged    Outcome = "bridged"
	OutcomeFailed     Outcome = "failed"
)

// BatchReport describes what happened to texts[Start:End]
type BatchReport struct {
	Start    int
	End      int
	Outcome  Outcome
	Fraction float64 // target-script fraction of the first attempt, -1 if unchecked
	Err      error
}

// Result always holds exactly one text per input text.
type Result struct {
	Texts   []string
	Batches []BatchReport
}

// Failed counts batches that fell back to the source text
func (r *Result) Failed() int {
	n := 0
	for _, b := range r.Batches {
		if b.Outcome == OutcomeFailed {
			n++
		}
	}
	return n
}
