// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/biblio-engine/pkg/types"
)

const testSchemaJSON = `{
	"itemTypes": [
		{
			"itemType": "journalArticle",
			"fields": [
				{"field": "title"},
				{"field": "publicationTitle", "baseField": "publisher"},
				{"field": "date"},
				{"field": "DOI"},
				{"field": "url"}
			],
			"creatorTypes": [
				{"creatorType": "editor"},
				{"creatorType": "author", "primary": true}
			]
		},
		{
			"itemType": "book",
			"fields": [
				{"field": "title"},
				{"field": "publisher", "baseField": "publisher"},
				{"field": "date"},
				{"field": "ISBN"}
			],
			"creatorTypes": [
				{"creatorType": "author", "primary": true},
				{"creatorType": "editor"}
			]
		}
	]
}`

func testProvider(t *testing.T) *Provider {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(testSchemaJSON))
	}))
	t.Cleanup(ts.Close)

	oldURL := schemaURL
	schemaURL = ts.URL
	t.Cleanup(func() { schemaURL = oldURL })

	p := NewProvider(ts.Client(), types.SchemaConfig{})
	require.NoError(t, p.Load(context.Background()))
	return p
}

func TestLoad_BuildsTables(t *testing.T) {
	p := testProvider(t)
	s := p.Schema()
	require.NotNil(t, s)

	assert.ElementsMatch(t, []string{"journalArticle", "book"}, s.ItemTypes)
	assert.True(t, s.HasField("journalArticle", "DOI"))
	assert.False(t, s.HasField("book", "DOI"))
	// Primary creator type sorts first.
	assert.Equal(t, "author", s.PrimaryCreatorType("journalArticle"))
}

func TestLoad_FallsBackToCache(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "schema.json")

	// First load succeeds and populates the cache.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(testSchemaJSON))
	}))
	oldURL := schemaURL
	schemaURL = ts.URL
	t.Cleanup(func() { schemaURL = oldURL })

	p := NewProvider(ts.Client(), types.SchemaConfig{CachePath: cachePath})
	require.NoError(t, p.Load(context.Background()))
	ts.Close()

	// Second provider hits a dead server and must fall back to the cache.
	p2 := NewProvider(http.DefaultClient, types.SchemaConfig{CachePath: cachePath})
	require.NoError(t, p2.Load(context.Background()))
	assert.True(t, p2.Schema().HasItemType("book"))
}

func TestLoad_NoCacheNoNetworkIsErrSchema(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	oldURL := schemaURL
	schemaURL = ts.URL
	t.Cleanup(func() { schemaURL = oldURL })

	p := NewProvider(ts.Client(), types.SchemaConfig{})
	err := p.Load(context.Background())
	assert.ErrorIs(t, err, ErrSchema)
	assert.False(t, p.Loaded())
}

func TestValidate_DropsUnknownFieldsAndCoercesCreators(t *testing.T) {
	p := testProvider(t)

	item := &types.Item{
		Key:      "k1",
		ItemType: "journalArticle",
		Fields: map[string]string{
			"title":     "On Testing",
			"DOI":       "10.1000/x",
			"bogoField": "zap",
		},
		Creators: []types.Creator{
			{CreatorType: "inventor", LastName: "Doe"},
			{CreatorType: "author", LastName: "Roe"},
		},
	}

	errs := p.Validate(item)
	require.Len(t, errs, 2)

	_, hasBogo := item.Fields["bogoField"]
	assert.False(t, hasBogo)
	assert.Equal(t, "10.1000/x", item.Fields["DOI"])
	assert.Equal(t, "author", item.Creators[0].CreatorType)
	assert.Equal(t, "author", item.Creators[1].CreatorType)
}

func TestValidate_UnknownItemType(t *testing.T) {
	p := testProvider(t)
	item := &types.Item{Key: "k1", ItemType: "hologram", Fields: map[string]string{"title": "X"}}

	errs := p.Validate(item)
	require.Len(t, errs, 1)
	assert.Equal(t, "itemType", errs[0].Field)
}

func TestRemapBaseFields(t *testing.T) {
	p := testProvider(t)

	item := &types.Item{
		Key:      "k1",
		ItemType: "journalArticle",
		Fields: map[string]string{
			"title":            "Deep Work",
			"publicationTitle": "ACM Press",
			"DOI":              "10.1000/x",
			"date":             "2021",
		},
	}

	p.RemapBaseFields(item, "book")

	assert.Equal(t, "book", item.ItemType)
	// publicationTitle carries over through the shared base field.
	assert.Equal(t, "ACM Press", item.Fields["publisher"])
	// DOI has no slot on book and is dropped.
	_, hasDOI := item.Fields["DOI"]
	assert.False(t, hasDOI)
	// Fields valid on both types are untouched.
	assert.Equal(t, "2021", item.Fields["date"])
	assert.Equal(t, "Deep Work", item.Fields["title"])
}
