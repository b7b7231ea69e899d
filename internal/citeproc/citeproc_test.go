// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citeproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/biblio-engine/pkg/types"
)

const dummyXML = `<style class="in-text"><info/></style>`

func cslItem(id, family, title string, year int) types.CSLItem {
	return types.CSLItem{
		ID:     id,
		Type:   "article-journal",
		Title:  title,
		Author: []types.CSLName{{Family: family, Given: "Ada"}},
		Issued: &types.CSLDate{DateParts: [][]int{{year}}},
	}
}

func bibStyle(flags types.StyleFlags) *types.Style {
	return &types.Style{Name: "test", XML: dummyXML, Flags: flags}
}

func TestNew_SelectsEngine(t *testing.T) {
	for _, kind := range []string{"", EngineClassic, EngineCached} {
		proc, err := New(Options{Engine: kind})
		require.NoError(t, err, kind)
		require.NotNil(t, proc, kind)
	}

	_, err := New(Options{Engine: "quantum"})
	assert.Error(t, err)
}

func TestProcessor_RequiresReset(t *testing.T) {
	proc, err := New(Options{})
	require.NoError(t, err)

	assert.ErrorIs(t, proc.InsertReference(cslItem("a", "Doe", "T", 2020)), ErrEngineNotBuilt)
	_, err = proc.MakeBibliography()
	assert.ErrorIs(t, err, ErrEngineNotBuilt)
}

func TestRebuild_Idempotent(t *testing.T) {
	a := NewAdapter(newClassic())
	style := bibStyle(types.StyleFlags{HasBibliography: true})
	items := []types.CSLItem{
		cslItem("a", "Doe", "First Paper", 2020),
		cslItem("b", "Roe", "Second Paper", 2021),
	}

	first, err := a.Rebuild(style, items)
	require.NoError(t, err)
	second, err := a.Rebuild(style, items)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first.Entries, 2)
	assert.Equal(t, "a", first.Entries[0].ID)
}

func TestFlush_SingleEditChangesOneEntry(t *testing.T) {
	a := NewAdapter(newClassic())
	style := bibStyle(types.StyleFlags{HasBibliography: true})
	items := []types.CSLItem{
		cslItem("a", "Doe", "First Paper", 2020),
		cslItem("b", "Roe", "Second Paper", 2021),
		cslItem("c", "Poe", "Third Paper", 2022),
	}
	_, err := a.Rebuild(style, items)
	require.NoError(t, err)

	edited := cslItem("b", "Roe", "Second Paper, Revised", 2021)
	require.NoError(t, a.Insert(edited, false))

	diff, err := a.Flush()
	require.NoError(t, err)
	require.NotNil(t, diff.Bibliography)
	assert.Len(t, diff.Bibliography.UpdatedEntries, 1)
	assert.Contains(t, diff.Bibliography.UpdatedEntries, "b")
	assert.Equal(t, []string{"a", "b", "c"}, diff.Bibliography.EntryIDs)
}

func TestFlush_NothingPendingIsEmpty(t *testing.T) {
	a := NewAdapter(newClassic())
	style := bibStyle(types.StyleFlags{HasBibliography: true})
	_, err := a.Rebuild(style, []types.CSLItem{cslItem("a", "Doe", "Paper", 2020)})
	require.NoError(t, err)

	diff, err := a.Flush()
	require.NoError(t, err)
	assert.True(t, diff.Empty())

	// Still empty on a second call.
	diff, err = a.Flush()
	require.NoError(t, err)
	assert.True(t, diff.Empty())
}

func TestFallback_SingleClusterPerItem(t *testing.T) {
	a := NewAdapter(newClassic())
	style := bibStyle(types.StyleFlags{Note: true}) // no bibliography section

	bib, err := a.Rebuild(style, nil)
	require.NoError(t, err)
	assert.Empty(t, bib.Entries)
	assert.True(t, bib.Meta.Fallback)
	assert.True(t, a.Fallback())

	require.NoError(t, a.Insert(cslItem("x", "Doe", "Lone Paper", 2020), true))
	diff, err := a.Flush()
	require.NoError(t, err)

	require.Len(t, diff.Clusters, 1)
	assert.Equal(t, "x", diff.Clusters[0].ID)
	assert.NotEmpty(t, diff.Clusters[0].Value)
	assert.Nil(t, diff.Bibliography)
}

func TestFallback_RemovePairsClusterRemoval(t *testing.T) {
	a := NewAdapter(newClassic())
	style := bibStyle(types.StyleFlags{})
	items := []types.CSLItem{
		cslItem("a", "Doe", "One", 2020),
		cslItem("b", "Roe", "Two", 2021),
	}
	_, err := a.Rebuild(style, items)
	require.NoError(t, err)

	require.NoError(t, a.Remove("a"))
	bib, err := a.proc.MakeBibliography()
	require.NoError(t, err)
	require.Len(t, bib.Entries, 1)
	assert.Equal(t, "b", bib.Entries[0].ID)
}

func TestNumericStyle_PositionalLabels(t *testing.T) {
	a := NewAdapter(newClassic())
	style := bibStyle(types.StyleFlags{HasBibliography: true, Numeric: true})
	items := []types.CSLItem{
		cslItem("a", "Doe", "One", 2020),
		cslItem("b", "Roe", "Two", 2021),
	}

	bib, err := a.Rebuild(style, items)
	require.NoError(t, err)
	assert.True(t, bib.Meta.Numeric)
	assert.Contains(t, bib.Entries[0].Value, "[1] ")
	assert.Contains(t, bib.Entries[1].Value, "[2] ")

	// Reordering shifts every label; the diff reports both entries.
	require.NoError(t, a.Resync([]types.CSLItem{items[1], items[0]}))
	diff, err := a.Flush()
	require.NoError(t, err)
	require.NotNil(t, diff.Bibliography)
	assert.Len(t, diff.Bibliography.UpdatedEntries, 2)
	assert.Equal(t, []string{"b", "a"}, diff.Bibliography.EntryIDs)
}

func TestSortedStyle_IgnoresInsertionOrder(t *testing.T) {
	a := NewAdapter(newClassic())
	style := bibStyle(types.StyleFlags{HasBibliography: true, Sorted: true})
	items := []types.CSLItem{
		cslItem("z", "Zimmer", "Zeta", 2020),
		cslItem("a", "Abbott", "Alpha", 2021),
	}

	bib, err := a.Rebuild(style, items)
	require.NoError(t, err)
	require.Len(t, bib.Entries, 2)
	assert.Equal(t, "a", bib.Entries[0].ID)
	assert.Equal(t, "z", bib.Entries[1].ID)
}

func TestCachedEngine_MatchesClassicOutput(t *testing.T) {
	style := bibStyle(types.StyleFlags{HasBibliography: true})
	items := []types.CSLItem{
		cslItem("a", "Doe", "First Paper", 2020),
		cslItem("b", "Roe", "Second Paper", 2021),
	}

	classicAdapter := NewAdapter(newClassic())
	cachedAdapter := NewAdapter(newCached())

	want, err := classicAdapter.Rebuild(style, items)
	require.NoError(t, err)
	got, err := cachedAdapter.Rebuild(style, items)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Rebuild with the memo warm still matches.
	got, err = cachedAdapter.Rebuild(style, items)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRenderEntry_UppercaseSubtitles(t *testing.T) {
	item := cslItem("a", "Doe", "Deep work: a study", 2020)
	value := renderEntry(item, types.StyleFlags{UppercaseSubtitles: true})
	assert.Contains(t, value, "Deep work: A study")
}

func TestRenderEntry_NoteStyle(t *testing.T) {
	item := types.CSLItem{
		ID:        "a",
		Title:     "City of Glass",
		Author:    []types.CSLName{{Family: "Auster", Given: "Paul"}},
		Publisher: "Penguin",
		Issued:    &types.CSLDate{DateParts: [][]int{{1985}}},
	}
	value := renderEntry(item, types.StyleFlags{Note: true})
	assert.Equal(t, "Auster, P., City of Glass (Penguin, 1985).", value)
}
