package translator

import (
	"context"
	"fmt"

	"github.com/MimeLyc/hardsub-translator/pkg/log"
	"golang.org/x/text/language"
)

// BatchTranslator sends numbered batches to an oracle, one call per batch,
// with a single bridge hop when a batch comes back in the wrong script.
type BatchTranslator struct {
	oracle Oracle
	opts   Options
}

func NewBatchTranslator(oracle Oracle, opts Options) *BatchTranslator {
	return &BatchTranslator{
		oracle: oracle,
		opts:   opts.withDefaults(),
	}
}

func (t *BatchTranslator) Options() Options { return t.opts }

// Translate never fails as a whole: a batch whose oracle call errors keeps
// its source texts and the remaining batches go on.
func (t *BatchTranslator) Translate(ctx context.Context, texts []string) *Result {
	result := &Result{Texts: make([]string, 0, len(texts))}

	for i := 0; i < len(texts); i += t.opts.BatchSize {
		end := min(i+t.opts.BatchSize, len(texts))
		batch := texts[i:end]

		out, report := t.translateBatch(ctx, batch)
		report.Start, report.End = i, end
		if report.Outcome == OutcomeFailed {
			log.Error("Translation batch %d-%d failed, keeping source text: %v", i+1, end, report.Err)
		}

		result.Texts = append(result.Texts, out...)
		result.Batches = append(result.Batches, report)
	}

	log.Info("Translated %d lines in %d batches (%d failed)", len(texts), len(result.Batches), result.Failed())
	return result
}

func (t *BatchTranslator) translateBatch(ctx context.Context, batch []string) ([]string, BatchReport) {
	target := t.opts.Target.String()

	out, err := t.ask(ctx, batch, target, t.opts.Source)
	if err != nil {
		return failed(batch, err)
	}

	if t.opts.Validator == nil || sameLanguage(t.opts.Target, t.opts.Bridge) {
		return out, BatchReport{Outcome: OutcomeTranslated, Fraction: -1}
	}

	fraction := t.opts.Validator.Fraction(out)
	if fraction >= t.opts.ScriptThreshold {
		return out, BatchReport{Outcome: OutcomeTranslated, Fraction: fraction}
	}

	bridge := t.opts.Bridge.String()
	log.Warn("Only %.0f%% of batch is in %s, bridging through %s", fraction*100, target, bridge)

	intermediate, err := t.ask(ctx, batch, bridge, t.opts.Source)
	if err != nil {
		return failed(batch, fmt.Errorf("bridge to %s: %w", bridge, err))
	}
	out, err = t.ask(ctx, intermediate, target, bridge)
	if err != nil {
		return failed(batch, fmt.Errorf("bridge from %s: %w", bridge, err))
	}
	return out, BatchReport{Outcome: OutcomeBridged, Fraction: fraction}
}

// ask makes one oracle call; missing numbers fall back to the call's input.
func (t *BatchTranslator) ask(ctx context.Context, texts []string, target, source string) ([]string, error) {
	response, err := t.oracle.Generate(ctx, BuildPrompt(texts, target, source))
	if err != nil {
		return nil, err
	}
	return ParseNumbered(response, texts), nil
}

func failed(batch []string, err error) ([]string, BatchReport) {
	out := make([]string, len(batch))
	copy(out, batch)
	return out, BatchReport{Outcome: OutcomeFailed, Err: err}
}

func sameLanguage(a, b language.Tag) bool {
	ba, _ := a.Base()
	bb, _ := b.Base()
	return ba == bb
}
