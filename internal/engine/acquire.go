// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/biblio-engine/internal/citeproc"
	"github.com/pdiddy/biblio-engine/internal/translate"
	"github.com/pdiddy/biblio-engine/pkg/types"
)

// TranslateOptions adjust acquisition behavior.
type TranslateOptions struct {
	// Confirm stages even a single resolved item for explicit
	// CommitSelection instead of committing immediately. Used when the add
	// replaces an existing bibliography's style context.
	Confirm bool

	// Import treats the input as a raw import payload (BibTeX, RIS, ...)
	// rather than an identifier or URL.
	Import bool
}

// Translate resolves raw input into items. A single resolved item commits
// immediately (unless Confirm is set); several resolved items are staged for
// CommitSelection; MULTIPLE_CHOICES outcomes are held for SelectChoice. A
// cancelled context aborts silently: no state changes and the error is the
// plain context error for the caller to suppress.
func (e *Engine) Translate(ctx context.Context, input string, opts TranslateOptions) (translate.Outcome, error) {
	e.queryHandled = false
	defer func() { e.queryHandled = true }()

	var (
		out translate.Outcome
		err error
	)
	if opts.Import {
		out, err = e.translator.ResolveImport(ctx, []byte(input), e.store.Items())
	} else {
		out, err = e.translator.Resolve(ctx, input, e.store.Items())
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return translate.Outcome{}, err
		}
		return translate.Outcome{}, fmt.Errorf("translating input: %w", err)
	}

	return out, e.handleOutcome(ctx, input, out, opts)
}

// SelectChoice re-enters a held MULTIPLE_CHOICES outcome with one candidate.
func (e *Engine) SelectChoice(ctx context.Context, choiceKey string) (translate.Outcome, error) {
	if e.choices == nil {
		return translate.Outcome{}, fmt.Errorf("no choice set pending")
	}
	e.queryHandled = false
	defer func() { e.queryHandled = true }()

	out, err := e.translator.ResolveChoice(ctx, e.choices.input, choiceKey, e.choices.session, e.store.Items())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return translate.Outcome{}, err
		}
		return translate.Outcome{}, fmt.Errorf("resolving choice: %w", err)
	}
	return out, e.handleOutcome(ctx, e.choices.input, out, TranslateOptions{})
}

// handleOutcome routes a pipeline outcome: commit, stage, or hold choices.
// FAILED and empty outcomes mutate nothing.
func (e *Engine) handleOutcome(_ context.Context, input string, out translate.Outcome, opts TranslateOptions) error {
	for _, dup := range out.Duplicates {
		e.log.Info().Str("existing", dup.ExistingKey).Str("title", dup.CandidateTitle).Msg("possible duplicate")
	}

	switch out.Result {
	case types.TranslationComplete:
		e.choices = nil
		if len(out.Items) == 0 {
			// The backend translated cleanly but found nothing committable.
			e.log.Info().Str("input", input).Msg("no results")
			return nil
		}
		if len(out.Items) == 1 && !opts.Confirm {
			return e.AddTranslated(out.Items)
		}
		e.staged = out.Items

	case types.TranslationMultipleChoices:
		pending := &pendingAcquisition{input: input, session: out.Next, seen: make(map[string]bool)}
		if e.choices != nil && e.choices.input == input {
			pending.seen = e.choices.seen
		}
		for _, c := range out.Choices {
			pending.seen[types.NormalizeTitle(c.Title)] = true
		}
		e.choices = pending

	case types.TranslationFailed:
		e.log.Info().Str("input", input).Msg("translation failed")
	}
	return nil
}

// FetchMoreChoices follows the held choice set's continuation cursor and
// returns the next page of candidates, dropping any whose titles already
// appeared on an earlier page. The held cursor advances to the new page's.
func (e *Engine) FetchMoreChoices(ctx context.Context) (translate.Outcome, error) {
	if e.choices == nil {
		return translate.Outcome{}, fmt.Errorf("no choice set pending")
	}
	if e.choices.session == "" {
		return translate.Outcome{}, fmt.Errorf("no more candidates")
	}
	e.queryHandled = false
	defer func() { e.queryHandled = true }()

	out, err := e.translator.ResolveMore(ctx, e.choices.input, e.choices.session, e.store.Items())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return translate.Outcome{}, err
		}
		return translate.Outcome{}, fmt.Errorf("fetching more candidates: %w", err)
	}

	if out.Result == types.TranslationMultipleChoices {
		unseen := make([]types.Choice, 0, len(out.Choices))
		for _, c := range out.Choices {
			if !e.choices.seen[types.NormalizeTitle(c.Title)] {
				unseen = append(unseen, c)
			}
		}
		out.Choices = unseen
	}
	return out, e.handleOutcome(ctx, e.choices.input, out, TranslateOptions{})
}

// Staged returns the candidate items awaiting CommitSelection.
func (e *Engine) Staged() []*types.Item {
	return append([]*types.Item(nil), e.staged...)
}

// StagedPreview pairs a staged candidate with its rendered entry under the
// active style and, when an incoming style is set, under that style too.
type StagedPreview struct {
	Item     *types.Item
	Current  string
	Incoming string
}

// PreviewStaged renders the staged candidates without committing them. The
// renders go through a throwaway processor, so neither the projection nor
// the session engine's state is touched.
func (e *Engine) PreviewStaged() ([]StagedPreview, error) {
	if len(e.staged) == 0 {
		return nil, ErrNoSelection
	}
	current, err := e.renderCandidates(e.active)
	if err != nil {
		return nil, err
	}
	var incoming []string
	if e.incoming != nil {
		if incoming, err = e.renderCandidates(e.incoming); err != nil {
			return nil, err
		}
	}

	previews := make([]StagedPreview, len(e.staged))
	for i, item := range e.staged {
		previews[i] = StagedPreview{Item: item, Current: current[i]}
		if incoming != nil {
			previews[i].Incoming = incoming[i]
		}
	}
	return previews, nil
}

// renderCandidates renders the staged items under style. Candidates carry
// no stable keys yet, so entries map back by a positional placeholder id.
func (e *Engine) renderCandidates(style *types.Style) ([]string, error) {
	if style == nil {
		return make([]string, len(e.staged)), nil
	}
	proc, err := citeproc.New(citeproc.Options{Engine: e.cfg.Processor})
	if err != nil {
		return nil, fmt.Errorf("previewing candidates: %w", err)
	}
	adapter := citeproc.NewAdapter(proc)
	adapter.SetLocale(e.cfg.Locale)

	csl := make([]types.CSLItem, len(e.staged))
	for i, item := range e.staged {
		c := item.ToCSL()
		c.ID = fmt.Sprintf("candidate-%d", i+1)
		csl[i] = c
	}
	rendered, err := adapter.Rebuild(style, csl)
	if err != nil {
		return nil, fmt.Errorf("previewing candidates: %w", err)
	}

	byID := make(map[string]string, len(rendered.Entries))
	for _, entry := range rendered.Entries {
		byID[entry.ID] = entry.Value
	}
	values := make([]string, len(csl))
	for i, c := range csl {
		values[i] = byID[c.ID]
	}
	return values, nil
}

// CommitSelection commits the staged candidates at the given indices, in
// selection order, appended to the existing store order. The staging buffer
// clears afterwards.
func (e *Engine) CommitSelection(indices []int) error {
	if e.staged == nil {
		return ErrNoSelection
	}
	staged := e.staged
	e.staged = nil

	selected := make([]*types.Item, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(staged) {
			return fmt.Errorf("selection index %d out of range", idx)
		}
		selected = append(selected, staged[idx])
	}
	return e.AddTranslated(selected)
}

// DiscardSelection drops staged candidates and any held choice set.
func (e *Engine) DiscardSelection() {
	e.staged = nil
	e.choices = nil
}
