// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// TranslationResult classifies the outcome of one acquisition attempt.
type TranslationResult string

const (
	// TranslationComplete means the backend resolved zero or more items.
	TranslationComplete TranslationResult = "COMPLETE"

	// TranslationMultipleChoices means the backend needs the caller to
	// pick one candidate before it can resolve items.
	TranslationMultipleChoices TranslationResult = "MULTIPLE_CHOICES"

	// TranslationFailed means the backend could not translate the input.
	TranslationFailed TranslationResult = "FAILED"
)

// Choice is one candidate offered by a MULTIPLE_CHOICES response.
type Choice struct {
	// Key scopes a follow-up translation to this candidate.
	Key string `json:"key" yaml:"key"`

	// Title is the candidate's display title.
	Title string `json:"title" yaml:"title"`

	// Identifier is an optional DOI/ISBN the backend associated with the
	// candidate, used for dedup.
	Identifier string `json:"identifier,omitempty" yaml:"identifier,omitempty"`
}

// TranslationResponse is the transient result of an acquisition attempt.
type TranslationResponse struct {
	Result TranslationResult `json:"result" yaml:"result"`

	// Items holds resolved candidate items on COMPLETE.
	Items []*Item `json:"items,omitempty" yaml:"items,omitempty"`

	// Choices holds candidates on MULTIPLE_CHOICES.
	Choices []Choice `json:"choices,omitempty" yaml:"choices,omitempty"`

	// Next is a continuation cursor for fetching more choices.
	Next string `json:"next,omitempty" yaml:"next,omitempty"`
}

// RootItems returns the items without a parent back-reference.
func (r TranslationResponse) RootItems() []*Item {
	var roots []*Item
	for _, it := range r.Items {
		if it.IsRoot() {
			roots = append(roots, it)
		}
	}
	return roots
}
