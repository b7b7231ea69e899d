// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// StyleFlags are capability flags derived from a style definition. They
// drive processor behavior and engine decisions (fallback rendering,
// sentence-case confirmation).
type StyleFlags struct {
	// HasBibliography reports whether the style defines a bibliography
	// section. Styles without one render each item as its own cluster.
	HasBibliography bool `json:"has_bibliography" yaml:"has_bibliography"`

	// Numeric reports citation-format="numeric".
	Numeric bool `json:"numeric" yaml:"numeric"`

	// Note reports a note-class style (citations as footnotes).
	Note bool `json:"note" yaml:"note"`

	// Sorted reports whether the bibliography section mandates its own
	// sort order rather than following item-store order.
	Sorted bool `json:"sorted" yaml:"sorted"`

	// SentenceCase reports styles that require sentence-cased titles;
	// activating one triggers the confirm/transform flow.
	SentenceCase bool `json:"sentence_case" yaml:"sentence_case"`

	// UppercaseSubtitles reports styles that capitalize the first word
	// after a title's colon.
	UppercaseSubtitles bool `json:"uppercase_subtitles" yaml:"uppercase_subtitles"`
}

// Style is a resolved citation style definition. For dependent styles the
// XML is the parent's, while Name, Flags, and DefaultLocale remain the
// dependent style's own.
type Style struct {
	// Name is the style's primary identifier (repository short name).
	Name string `json:"name" yaml:"name"`

	// Title is the human-readable style title.
	Title string `json:"title" yaml:"title"`

	// XML is the serialized style definition used for rendering.
	XML string `json:"-" yaml:"-"`

	// IsDependent reports whether this style inherits its rules from a
	// parent; Parent names that parent when set.
	IsDependent bool   `json:"is_dependent" yaml:"is_dependent"`
	Parent      string `json:"parent,omitempty" yaml:"parent,omitempty"`

	// DefaultLocale overrides the rendering locale when non-empty.
	DefaultLocale string `json:"default_locale,omitempty" yaml:"default_locale,omitempty"`

	Flags StyleFlags `json:"flags" yaml:"flags"`
}

// StyleInfo is one entry of the style repository listing.
type StyleInfo struct {
	Name   string `json:"name" yaml:"name"`
	Title  string `json:"title" yaml:"title"`
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`
}
