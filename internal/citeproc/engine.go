// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citeproc

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/pdiddy/biblio-engine/pkg/types"
)

// classic is the in-process reference engine. It renders entries from CSL
// data according to the style's capability flags and tracks rendered values
// so BatchedUpdates can report only what changed.
type classic struct {
	fmtr  formatter
	built bool

	flags  types.StyleFlags
	locale string

	refs     map[string]types.CSLItem
	refOrder []string
	clusters []string

	// rendered holds the values delivered by the last MakeBibliography or
	// BatchedUpdates call, keyed by item id.
	rendered  map[string]string
	lastOrder []string
}

func newClassic() *classic {
	return &classic{fmtr: plainFormatter{}}
}

// cached is the alternate engine: identical rendering, but formatted
// entries are memoized by content so repeated rebuilds of unchanged items
// skip re-formatting. Selected via Options.Engine at session start.
type cached struct {
	classic
}

func newCached() *cached {
	c := &cached{}
	c.fmtr = &memoFormatter{memo: make(map[uint64]string)}
	return c
}

func (e *classic) Reset(xml string, opts EngineOptions) error {
	if strings.TrimSpace(xml) == "" {
		return fmt.Errorf("empty style definition")
	}
	e.built = true
	e.flags = opts.Flags
	e.locale = opts.Locale
	e.refs = make(map[string]types.CSLItem)
	e.refOrder = nil
	e.clusters = nil
	e.rendered = make(map[string]string)
	e.lastOrder = nil
	return nil
}

func (e *classic) InsertReference(item types.CSLItem) error {
	if !e.built {
		return ErrEngineNotBuilt
	}
	if item.ID == "" {
		return fmt.Errorf("reference has no id")
	}
	if _, exists := e.refs[item.ID]; !exists {
		e.refOrder = append(e.refOrder, item.ID)
	}
	e.refs[item.ID] = item
	return nil
}

func (e *classic) RemoveReference(id string) error {
	if !e.built {
		return ErrEngineNotBuilt
	}
	if _, exists := e.refs[id]; !exists {
		return fmt.Errorf("unknown reference %q", id)
	}
	delete(e.refs, id)
	e.refOrder = removeID(e.refOrder, id)
	return nil
}

func (e *classic) ResetReferences(items []types.CSLItem) error {
	if !e.built {
		return ErrEngineNotBuilt
	}
	e.refs = make(map[string]types.CSLItem, len(items))
	e.refOrder = make([]string, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			return fmt.Errorf("reference has no id")
		}
		e.refs[item.ID] = item
		e.refOrder = append(e.refOrder, item.ID)
	}
	return nil
}

func (e *classic) InitClusters(ids []string) error {
	if !e.built {
		return ErrEngineNotBuilt
	}
	e.clusters = append([]string(nil), ids...)
	return nil
}

func (e *classic) InsertCluster(id string) error {
	if !e.built {
		return ErrEngineNotBuilt
	}
	e.clusters = append(e.clusters, id)
	return nil
}

func (e *classic) RemoveCluster(id string) error {
	if !e.built {
		return ErrEngineNotBuilt
	}
	e.clusters = removeID(e.clusters, id)
	return nil
}

func (e *classic) SetClusterOrder(ids []string) error {
	if !e.built {
		return ErrEngineNotBuilt
	}
	for _, id := range ids {
		if _, ok := e.refs[id]; !ok {
			return fmt.Errorf("cluster order references unknown id %q", id)
		}
	}
	e.clusters = append([]string(nil), ids...)
	return nil
}

func (e *classic) MakeBibliography() (types.RenderedBibliography, error) {
	if !e.built {
		return types.RenderedBibliography{}, ErrEngineNotBuilt
	}

	order := e.entryOrder()
	entries := make([]types.BibEntry, len(order))
	e.rendered = make(map[string]string, len(order))
	for i, id := range order {
		value := e.renderAt(id, i)
		entries[i] = types.BibEntry{ID: id, Value: value}
		e.rendered[id] = value
	}
	e.lastOrder = order

	return types.RenderedBibliography{
		Entries: entries,
		Meta: types.BibMeta{
			Numeric:  e.flags.Numeric && e.flags.HasBibliography,
			Fallback: !e.flags.HasBibliography,
		},
	}, nil
}

func (e *classic) BatchedUpdates() (types.UpdateDiff, error) {
	if !e.built {
		return types.UpdateDiff{}, ErrEngineNotBuilt
	}

	order := e.entryOrder()
	current := make(map[string]string, len(order))
	updated := make(map[string]string)
	for i, id := range order {
		value := e.renderAt(id, i)
		current[id] = value
		if prev, ok := e.rendered[id]; !ok || prev != value {
			updated[id] = value
		}
	}

	orderChanged := !equalIDs(order, e.lastOrder)

	// Commit the delivered state.
	e.rendered = current
	e.lastOrder = order

	if len(updated) == 0 && !orderChanged {
		return types.UpdateDiff{}, nil
	}

	if !e.flags.HasBibliography {
		clusters := make([]types.ClusterValue, 0, len(updated))
		for _, id := range order {
			if value, ok := updated[id]; ok {
				clusters = append(clusters, types.ClusterValue{ID: id, Value: value})
			}
		}
		return types.UpdateDiff{Clusters: clusters}, nil
	}

	return types.UpdateDiff{Bibliography: &types.BibDiff{
		EntryIDs:       order,
		UpdatedEntries: updated,
	}}, nil
}

// entryOrder returns the item ids in rendering order: the style's sort for
// sorted styles, cluster order for fallback styles, reference order
// otherwise.
func (e *classic) entryOrder() []string {
	if e.flags.Sorted && e.flags.HasBibliography {
		return e.sortedOrder()
	}
	if !e.flags.HasBibliography {
		return append([]string(nil), e.clusters...)
	}
	return append([]string(nil), e.refOrder...)
}

func (e *classic) sortedOrder() []string {
	order := append([]string(nil), e.refOrder...)
	sort.SliceStable(order, func(i, j int) bool {
		return sortKey(e.refs[order[i]]) < sortKey(e.refs[order[j]])
	})
	return order
}

func sortKey(item types.CSLItem) string {
	var author string
	if len(item.Author) > 0 {
		if item.Author[0].Literal != "" {
			author = item.Author[0].Literal
		} else {
			author = item.Author[0].Family
		}
	}
	year := ""
	if item.Issued != nil && len(item.Issued.DateParts) > 0 && len(item.Issued.DateParts[0]) > 0 {
		year = fmt.Sprintf("%04d", item.Issued.DateParts[0][0])
	}
	return strings.ToLower(author) + "\x00" + year + "\x00" + types.NormalizeTitle(item.Title)
}

// renderAt formats one entry, applying the positional numeric label for
// numeric bibliography styles.
func (e *classic) renderAt(id string, pos int) string {
	item, ok := e.refs[id]
	if !ok {
		return ""
	}
	value := e.fmtr.format(item, e.flags)
	if e.flags.Numeric && e.flags.HasBibliography {
		value = fmt.Sprintf("[%d] %s", pos+1, value)
	}
	return value
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// formatter renders one CSL item into a bibliography entry string.
type formatter interface {
	format(item types.CSLItem, flags types.StyleFlags) string
}

type plainFormatter struct{}

func (plainFormatter) format(item types.CSLItem, flags types.StyleFlags) string {
	return renderEntry(item, flags)
}

// memoFormatter caches formatted entries by content hash. The cache
// survives Reset, so a style rebuild only re-formats items whose content or
// flags changed.
type memoFormatter struct {
	memo map[uint64]string
}

func (m *memoFormatter) format(item types.CSLItem, flags types.StyleFlags) string {
	key := contentHash(item, flags)
	if value, ok := m.memo[key]; ok {
		return value
	}
	value := renderEntry(item, flags)
	m.memo[key] = value
	return value
}

func contentHash(item types.CSLItem, flags types.StyleFlags) uint64 {
	h := fnv.New64a()
	data, _ := json.Marshal(item)
	h.Write(data)
	flagData, _ := json.Marshal(flags)
	h.Write(flagData)
	return h.Sum64()
}

// renderEntry formats a CSL item per the style flags. This is deliberately
// a compact renderer, not a full CSL interpreter: author list, year, title,
// container, publisher, and identifier in a flag-dependent arrangement.
func renderEntry(item types.CSLItem, flags types.StyleFlags) string {
	authors := formatAuthors(item.Author)
	year := issuedYear(item)
	title := item.Title
	if flags.UppercaseSubtitles {
		title = uppercaseSubtitle(title)
	}

	var b strings.Builder
	switch {
	case flags.Note:
		// Doe, J., Title (Publisher, 2020).
		if authors != "" {
			b.WriteString(authors)
			b.WriteString(", ")
		}
		b.WriteString(title)
		if item.Publisher != "" || year != "" {
			b.WriteString(" (")
			if item.Publisher != "" {
				b.WriteString(item.Publisher)
				if year != "" {
					b.WriteString(", ")
				}
			}
			b.WriteString(year)
			b.WriteString(")")
		}
		b.WriteString(".")
	case flags.Numeric:
		// Doe J. Title. Container; 2020.
		if authors != "" {
			b.WriteString(authors)
			b.WriteString(". ")
		}
		b.WriteString(title)
		b.WriteString(".")
		if item.ContainerTitle != "" {
			b.WriteString(" ")
			b.WriteString(item.ContainerTitle)
			b.WriteString(";")
		}
		if year != "" {
			b.WriteString(" ")
			b.WriteString(year)
			b.WriteString(".")
		}
	default:
		// Doe, J. (2020). Title. Container. Publisher.
		if authors != "" {
			b.WriteString(authors)
			b.WriteString(" ")
		}
		if year != "" {
			b.WriteString("(")
			b.WriteString(year)
			b.WriteString("). ")
		}
		b.WriteString(title)
		b.WriteString(".")
		if item.ContainerTitle != "" {
			b.WriteString(" ")
			b.WriteString(item.ContainerTitle)
			b.WriteString(".")
		}
		if item.Publisher != "" {
			b.WriteString(" ")
			b.WriteString(item.Publisher)
			b.WriteString(".")
		}
	}

	if item.DOI != "" {
		b.WriteString(" https://doi.org/")
		b.WriteString(item.DOI)
	}
	return b.String()
}

func formatAuthors(names []types.CSLName) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		switch {
		case n.Literal != "":
			parts = append(parts, n.Literal)
		case n.Given != "":
			parts = append(parts, n.Family+", "+initials(n.Given))
		default:
			parts = append(parts, n.Family)
		}
	}
	return strings.Join(parts, "; ")
}

func initials(given string) string {
	fields := strings.Fields(given)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = string([]rune(f)[0]) + "."
	}
	return strings.Join(parts, " ")
}

func issuedYear(item types.CSLItem) string {
	if item.Issued == nil || len(item.Issued.DateParts) == 0 || len(item.Issued.DateParts[0]) == 0 {
		return ""
	}
	return fmt.Sprintf("%d", item.Issued.DateParts[0][0])
}

// uppercaseSubtitle capitalizes the first letter after a title's colon.
func uppercaseSubtitle(title string) string {
	idx := strings.Index(title, ": ")
	if idx < 0 || idx+2 >= len(title) {
		return title
	}
	rest := []rune(title[idx+2:])
	rest[0] = []rune(strings.ToUpper(string(rest[0])))[0]
	return title[:idx+2] + string(rest)
}
