// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package styles

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/biblio-engine/pkg/types"
)

const independentXML = `<?xml version="1.0" encoding="utf-8"?>
<style xmlns="http://purl.org/net/xbiblio/csl" class="in-text" default-locale="en-US">
  <info>
    <title>Test Author-Date Style</title>
    <category citation-format="author-date"/>
  </info>
  <citation><layout/></citation>
  <bibliography>
    <sort><key variable="author"/></sort>
    <layout/>
  </bibliography>
</style>`

const numericXML = `<?xml version="1.0" encoding="utf-8"?>
<style xmlns="http://purl.org/net/xbiblio/csl" class="in-text">
  <info>
    <title>Test Numeric Style</title>
    <category citation-format="numeric"/>
  </info>
  <citation><layout/></citation>
  <bibliography><layout/></bibliography>
</style>`

const noteNoBibXML = `<?xml version="1.0" encoding="utf-8"?>
<style xmlns="http://purl.org/net/xbiblio/csl" class="note">
  <info>
    <title>Test Note Style</title>
    <category citation-format="note"/>
  </info>
  <citation><layout/></citation>
</style>`

const dependentXML = `<?xml version="1.0" encoding="utf-8"?>
<style xmlns="http://purl.org/net/xbiblio/csl" class="in-text" default-locale="de-DE">
  <info>
    <title>Test Dependent Style</title>
    <link href="https://www.zotero.org/styles/test-author-date" rel="independent-parent"/>
  </info>
</style>`

func testResolver(t *testing.T, handler http.Handler) *Resolver {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	oldBase, oldList := styleBaseURL, styleListURL
	styleBaseURL = ts.URL + "/styles/"
	styleListURL = ts.URL + "/styles.json"
	t.Cleanup(func() { styleBaseURL, styleListURL = oldBase, oldList })

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r, err := NewResolver(ts.Client(), types.StyleConfig{}, db)
	require.NoError(t, err)
	return r
}

func styleServer(t *testing.T, xmlByName map[string]string, hits *int32) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		name := filepath.Base(r.URL.Path)
		xml, ok := xmlByName[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(xml))
	})
}

func TestResolve_FlagDerivation(t *testing.T) {
	r := testResolver(t, styleServer(t, map[string]string{
		"test-author-date": independentXML,
		"test-numeric":     numericXML,
		"test-note":        noteNoBibXML,
	}, nil))
	ctx := context.Background()

	tests := []struct {
		name  string
		style string
		want  types.StyleFlags
	}{
		{"author-date sorted", "test-author-date", types.StyleFlags{HasBibliography: true, Sorted: true}},
		{"numeric", "test-numeric", types.StyleFlags{HasBibliography: true, Numeric: true}},
		{"note without bibliography", "test-note", types.StyleFlags{Note: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			style, err := r.Resolve(ctx, tt.style)
			require.NoError(t, err)
			assert.Equal(t, tt.want, style.Flags)
		})
	}
}

func TestResolve_DependentKeepsOwnIdentity(t *testing.T) {
	r := testResolver(t, styleServer(t, map[string]string{
		"test-author-date": independentXML,
		"test-dependent":   dependentXML,
	}, nil))

	style, err := r.Resolve(context.Background(), "test-dependent")
	require.NoError(t, err)

	assert.True(t, style.IsDependent)
	assert.Equal(t, "test-dependent", style.Name)
	assert.Equal(t, "test-author-date", style.Parent)
	// Rendering rules come from the parent.
	assert.Equal(t, independentXML, style.XML)
	assert.True(t, style.Flags.HasBibliography)
	assert.True(t, style.Flags.Sorted)
	// Locale override stays with the dependent style.
	assert.Equal(t, "de-DE", style.DefaultLocale)
}

func TestResolve_FetchFailure(t *testing.T) {
	r := testResolver(t, styleServer(t, map[string]string{}, nil))

	_, err := r.Resolve(context.Background(), "missing-style")
	assert.ErrorIs(t, err, ErrStyleFetch)
}

func TestResolve_CacheAvoidsRefetch(t *testing.T) {
	var hits int32
	r := testResolver(t, styleServer(t, map[string]string{
		"test-numeric": numericXML,
	}, &hits))
	ctx := context.Background()

	_, err := r.Resolve(ctx, "test-numeric")
	require.NoError(t, err)
	_, err = r.Resolve(ctx, "test-numeric")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	// Invalidation forces a fresh fetch.
	require.NoError(t, r.Invalidate(ctx, "test-numeric"))
	_, err = r.Resolve(ctx, "test-numeric")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestResolve_SentenceCasePolicy(t *testing.T) {
	r := testResolver(t, styleServer(t, map[string]string{
		"apa-6th": numericXML,
	}, nil))

	style, err := r.Resolve(context.Background(), "apa-6th")
	require.NoError(t, err)
	assert.True(t, style.Flags.SentenceCase)
	assert.True(t, style.Flags.UppercaseSubtitles)
}

func TestList(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"apa","title":"APA"},{"name":"nature-child","title":"Nature Child","parent":"nature"}]`))
	}))
	t.Cleanup(ts.Close)

	oldList := styleListURL
	styleListURL = ts.URL
	t.Cleanup(func() { styleListURL = oldList })

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r, err := NewResolver(ts.Client(), types.StyleConfig{}, db)
	require.NoError(t, err)

	infos, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.StyleInfo{
		{Name: "apa", Title: "APA"},
		{Name: "nature-child", Title: "Nature Child", Parent: "nature"},
	}, infos)
}
