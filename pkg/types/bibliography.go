// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// BibEntry is one rendered bibliography entry, keyed by item key.
type BibEntry struct {
	ID    string `json:"id" yaml:"id"`
	Value string `json:"value" yaml:"value"`
}

// BibMeta carries rendering metadata the view layer needs alongside the
// entries.
type BibMeta struct {
	// Numeric reports that entries carry numeric labels tied to position.
	Numeric bool `json:"numeric" yaml:"numeric"`

	// Fallback reports per-item cluster rendering (style without a
	// bibliography section).
	Fallback bool `json:"fallback" yaml:"fallback"`
}

// Bibliography is the derived projection of the item store through the
// active style. It is rebuildable from those two sources at any time and is
// never the source of truth.
type Bibliography struct {
	Entries []BibEntry      `json:"entries" yaml:"entries"`
	Meta    BibMeta         `json:"meta" yaml:"meta"`
	Lookup  map[string]Item `json:"lookup" yaml:"lookup"`
}

// Keys returns the entry IDs in projection order.
func (b Bibliography) Keys() []string {
	keys := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		keys[i] = e.ID
	}
	return keys
}

// Entry returns the rendered entry for an item key.
func (b Bibliography) Entry(id string) (BibEntry, bool) {
	for _, e := range b.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return BibEntry{}, false
}

// RenderedBibliography is the result of a full, non-incremental render.
type RenderedBibliography struct {
	Entries []BibEntry `json:"entries" yaml:"entries"`
	Meta    BibMeta    `json:"meta" yaml:"meta"`
}

// BibDiff is the incremental diff for styles with a native bibliography
// section. EntryIDs carries the current full entry order; UpdatedEntries
// holds only the entries whose rendered value changed.
type BibDiff struct {
	EntryIDs       []string          `json:"entry_ids,omitempty" yaml:"entry_ids,omitempty"`
	UpdatedEntries map[string]string `json:"updated_entries,omitempty" yaml:"updated_entries,omitempty"`
}

// ClusterValue is one changed cluster in a fallback-style diff.
type ClusterValue struct {
	ID    string `json:"id" yaml:"id"`
	Value string `json:"value" yaml:"value"`
}

// UpdateDiff is the result of a batched update. Exactly one of Bibliography
// or Clusters is populated, matching the active style's rendering mode; both
// nil/empty means nothing changed since the last render.
type UpdateDiff struct {
	Bibliography *BibDiff       `json:"bibliography,omitempty" yaml:"bibliography,omitempty"`
	Clusters     []ClusterValue `json:"clusters,omitempty" yaml:"clusters,omitempty"`
}

// Empty reports whether the diff carries no changes.
func (d UpdateDiff) Empty() bool {
	return (d.Bibliography == nil || len(d.Bibliography.UpdatedEntries) == 0) && len(d.Clusters) == 0
}
