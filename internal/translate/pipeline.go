// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package translate

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/biblio-engine/internal/identify"
	"github.com/pdiddy/biblio-engine/pkg/types"
)

// Backend is the slice of the translation client the pipeline uses. Tests
// substitute canned responders.
type Backend interface {
	TranslateURL(ctx context.Context, url string) (types.TranslationResponse, error)
	TranslateIdentifier(ctx context.Context, id string) (types.TranslationResponse, error)
	TranslateImport(ctx context.Context, payload []byte) (types.TranslationResponse, error)
	TranslateURLItems(ctx context.Context, url, choiceKey, session string) (types.TranslationResponse, error)
	TranslateURLMore(ctx context.Context, url, session string) (types.TranslationResponse, error)
}

// Validator checks a candidate item against the loaded schema.
type Validator interface {
	Validate(item *types.Item) []types.FieldError
}

// DuplicatePolicy reports whether candidate describes the same work as
// existing.
type DuplicatePolicy func(candidate, existing *types.Item) bool

// Duplicate flags a candidate that matches an item already in the
// collection. Duplicates are advisory; they never block a commit.
type Duplicate struct {
	CandidateTitle string
	ExistingKey    string
}

// Outcome is a fully post-processed translation response: root items only,
// schema-validated, with duplicate notices attached.
type Outcome struct {
	Result     types.TranslationResult
	Items      []*types.Item
	Choices    []types.Choice
	Next       string
	Duplicates []Duplicate
}

// Pipeline turns raw input into committable items: classify, dispatch to
// the backend, filter to root items, validate against the schema, and flag
// duplicates against the current collection.
type Pipeline struct {
	backend   Backend
	validator Validator
	dup       DuplicatePolicy
	log       zerolog.Logger
}

// NewPipeline wires a pipeline. A nil validator skips schema validation; a
// nil policy uses DefaultDuplicatePolicy.
func NewPipeline(backend Backend, validator Validator, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		backend:   backend,
		validator: validator,
		dup:       DefaultDuplicatePolicy,
		log:       logger.With().Str("component", "translate").Logger(),
	}
}

// SetDuplicatePolicy overrides the duplicate check.
func (p *Pipeline) SetDuplicatePolicy(policy DuplicatePolicy) {
	if policy != nil {
		p.dup = policy
	}
}

// Resolve dispatches a single line of user input. Recognized identifiers go
// to the identifier endpoint in normalized form, URLs to the web endpoint,
// everything else to the identifier endpoint as-is (the backend may still
// know it as a search term).
func (p *Pipeline) Resolve(ctx context.Context, input string, existing []*types.Item) (Outcome, error) {
	kind, normalized := identify.Classify(input)
	p.log.Debug().Str("kind", kind.String()).Str("input", normalized).Msg("resolving input")

	var (
		resp types.TranslationResponse
		err  error
	)
	switch kind {
	case identify.TypeURL:
		resp, err = p.backend.TranslateURL(ctx, normalized)
	default:
		resp, err = p.backend.TranslateIdentifier(ctx, normalized)
	}
	if err != nil {
		return Outcome{}, err
	}
	return p.finish(resp, existing), nil
}

// ResolveImport dispatches a raw import payload (BibTeX, RIS, ...).
func (p *Pipeline) ResolveImport(ctx context.Context, payload []byte, existing []*types.Item) (Outcome, error) {
	resp, err := p.backend.TranslateImport(ctx, payload)
	if err != nil {
		return Outcome{}, err
	}
	return p.finish(resp, existing), nil
}

// ResolveChoice re-enters a MULTIPLE_CHOICES outcome with one selected
// candidate. The session cursor comes from the earlier Outcome's Next.
func (p *Pipeline) ResolveChoice(ctx context.Context, url, choiceKey, session string, existing []*types.Item) (Outcome, error) {
	resp, err := p.backend.TranslateURLItems(ctx, url, choiceKey, session)
	if err != nil {
		return Outcome{}, err
	}
	return p.finish(resp, existing), nil
}

// ResolveMore follows a MULTIPLE_CHOICES outcome's continuation cursor and
// returns the next page of candidates.
func (p *Pipeline) ResolveMore(ctx context.Context, url, session string, existing []*types.Item) (Outcome, error) {
	resp, err := p.backend.TranslateURLMore(ctx, url, session)
	if err != nil {
		return Outcome{}, err
	}
	return p.finish(resp, existing), nil
}

// finish post-processes a backend response. Child items are dropped,
// backend-transient keys are cleared so the store mints stable ones, each
// item is schema-validated, and duplicate candidates are flagged. Choice
// lists are deduped by normalized title. A COMPLETE response can end up
// with zero items (child-only responses, empty searches); that is a
// no-results outcome, distinct from FAILED.
func (p *Pipeline) finish(resp types.TranslationResponse, existing []*types.Item) Outcome {
	out := Outcome{Result: resp.Result, Next: resp.Next}

	switch resp.Result {
	case types.TranslationComplete:
		for _, item := range resp.RootItems() {
			item.Key = ""
			if p.validator != nil {
				for _, fe := range p.validator.Validate(item) {
					p.log.Debug().Str("field", fe.Field).Str("reason", fe.Reason).Msg("schema fix")
				}
			}
			if dup, ok := p.findDuplicate(item, existing); ok {
				out.Duplicates = append(out.Duplicates, dup)
			}
			out.Items = append(out.Items, item)
		}

	case types.TranslationMultipleChoices:
		out.Choices = dedupChoices(resp.Choices)
	}
	return out
}

func (p *Pipeline) findDuplicate(candidate *types.Item, existing []*types.Item) (Duplicate, bool) {
	for _, other := range existing {
		if p.dup(candidate, other) {
			p.log.Info().Str("existing", other.Key).Str("title", candidate.Title()).Msg("duplicate candidate")
			return Duplicate{CandidateTitle: candidate.Title(), ExistingKey: other.Key}, true
		}
	}
	return Duplicate{}, false
}

// DefaultDuplicatePolicy treats equal DOIs as the same work, and otherwise
// requires an equal normalized title plus a matching ISBN or URL. Title
// alone is too weak (editions, homonyms); DOI alone is authoritative.
func DefaultDuplicatePolicy(candidate, existing *types.Item) bool {
	if doi := strings.ToLower(candidate.Field("DOI")); doi != "" {
		return doi == strings.ToLower(existing.Field("DOI"))
	}

	ct := types.NormalizeTitle(candidate.Title())
	if ct == "" || ct != types.NormalizeTitle(existing.Title()) {
		return false
	}
	if isbn := candidate.Field("ISBN"); isbn != "" && isbn == existing.Field("ISBN") {
		return true
	}
	if u := candidate.Field("url"); u != "" && u == existing.Field("url") {
		return true
	}
	return false
}

// dedupChoices drops choices whose normalized title repeats an earlier one.
// Multi-translator pages often report the same work several times.
func dedupChoices(choices []types.Choice) []types.Choice {
	seen := make(map[string]bool, len(choices))
	out := make([]types.Choice, 0, len(choices))
	for _, c := range choices {
		norm := types.NormalizeTitle(c.Title)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, c)
	}
	return out
}
