// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package translate

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/biblio-engine/pkg/types"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.Client(), types.TranslationConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "biblio-engine-test"},
		Endpoint:   server.URL,
	})
}

func TestClient_CompleteResponse(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{
			"key": "ABC123",
			"itemType": "journalArticle",
			"title": "A Paper",
			"DOI": "10.1000/xyz",
			"creators": [{"creatorType": "author", "firstName": "Ada", "lastName": "Doe"}],
			"tags": [{"tag": "testing"}]
		}]`))
	})

	resp, err := client.TranslateIdentifier(context.Background(), "10.1000/xyz")
	require.NoError(t, err)
	assert.Equal(t, types.TranslationComplete, resp.Result)
	require.Len(t, resp.Items, 1)

	item := resp.Items[0]
	assert.Equal(t, "ABC123", item.Key)
	assert.Equal(t, "journalArticle", item.ItemType)
	assert.Equal(t, "A Paper", item.Title())
	assert.Equal(t, "10.1000/xyz", item.Field("DOI"))
	require.Len(t, item.Creators, 1)
	assert.Equal(t, "Doe", item.Creators[0].LastName)

	// Non-string members never become fields.
	assert.Empty(t, item.Field("tags"))
}

func TestClient_MultipleChoices(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMultipleChoices)
		w.Write([]byte(`{
			"select": {"k2": "Second Result", "k1": "First Result"},
			"next": "session-42"
		}`))
	})

	resp, err := client.TranslateURL(context.Background(), "https://example.com/results")
	require.NoError(t, err)
	assert.Equal(t, types.TranslationMultipleChoices, resp.Result)
	assert.Equal(t, "session-42", resp.Next)
	require.Len(t, resp.Choices, 2)
	assert.Equal(t, "k1", resp.Choices[0].Key)
	assert.Equal(t, "k2", resp.Choices[1].Key)
}

func TestClient_MoreRequestCarriesCursorWithoutSelection(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"url": "https://example.com/results", "session": "session-42"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMultipleChoices)
		w.Write([]byte(`{"select": {"k9": "Late Result"}, "next": "session-43"}`))
	})

	resp, err := client.TranslateURLMore(context.Background(), "https://example.com/results", "session-42")
	require.NoError(t, err)
	assert.Equal(t, types.TranslationMultipleChoices, resp.Result)
	assert.Equal(t, "session-43", resp.Next)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "k9", resp.Choices[0].Key)
}

func TestClient_UntranslatableIsFailureNotError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	})

	resp, err := client.TranslateURL(context.Background(), "https://example.com/opaque")
	require.NoError(t, err)
	assert.Equal(t, types.TranslationFailed, resp.Result)
}

func TestClient_CancellationSurfacesUnwrapped(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.TranslateURL(ctx, "https://example.com/slow")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTranslation)
}

// stubBackend records which endpoint the pipeline dispatched to.
type stubBackend struct {
	method string
	input  string
	resp   types.TranslationResponse
	err    error
}

func (s *stubBackend) TranslateURL(_ context.Context, url string) (types.TranslationResponse, error) {
	s.method, s.input = "web", url
	return s.resp, s.err
}

func (s *stubBackend) TranslateIdentifier(_ context.Context, id string) (types.TranslationResponse, error) {
	s.method, s.input = "search", id
	return s.resp, s.err
}

func (s *stubBackend) TranslateImport(_ context.Context, payload []byte) (types.TranslationResponse, error) {
	s.method, s.input = "import", string(payload)
	return s.resp, s.err
}

func (s *stubBackend) TranslateURLItems(_ context.Context, url, choiceKey, _ string) (types.TranslationResponse, error) {
	s.method, s.input = "web-items", url+"#"+choiceKey
	return s.resp, s.err
}

func (s *stubBackend) TranslateURLMore(_ context.Context, url, session string) (types.TranslationResponse, error) {
	s.method, s.input = "web-more", url+"#"+session
	return s.resp, s.err
}

func rootItem(title string, fields map[string]string) *types.Item {
	item := &types.Item{ItemType: "journalArticle", Fields: map[string]string{"title": title}}
	for k, v := range fields {
		item.Fields[k] = v
	}
	return item
}

func TestPipeline_DispatchByInputKind(t *testing.T) {
	tests := []struct {
		input      string
		wantMethod string
		wantInput  string
	}{
		{"https://doi.org/10.1000/xyz", "search", "10.1000/xyz"},
		{"arXiv:2301.07041", "search", "2301.07041"},
		{"978-0-306-40615-7", "search", "9780306406157"},
		{"https://example.com/article", "web", "https://example.com/article"},
		{"some free text", "search", "some free text"},
	}
	for _, tc := range tests {
		backend := &stubBackend{resp: types.TranslationResponse{Result: types.TranslationFailed}}
		p := NewPipeline(backend, nil, zerolog.Nop())

		_, err := p.Resolve(context.Background(), tc.input, nil)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.wantMethod, backend.method, tc.input)
		assert.Equal(t, tc.wantInput, backend.input, tc.input)
	}
}

func TestPipeline_FinishFiltersAndFlags(t *testing.T) {
	attachment := rootItem("Full Text PDF", nil)
	attachment.ParentItem = "PARENT"
	paper := rootItem("A Paper", map[string]string{"DOI": "10.1000/xyz"})
	paper.Key = "BACKEND-KEY"

	backend := &stubBackend{resp: types.TranslationResponse{
		Result: types.TranslationComplete,
		Items:  []*types.Item{paper, attachment},
	}}
	p := NewPipeline(backend, nil, zerolog.Nop())

	existing := rootItem("A Paper", map[string]string{"DOI": "10.1000/XYZ"})
	existing.Key = "EXISTING"

	out, err := p.Resolve(context.Background(), "https://example.com/a", []*types.Item{existing})
	require.NoError(t, err)

	// Child items dropped, backend keys cleared.
	require.Len(t, out.Items, 1)
	assert.Empty(t, out.Items[0].Key)

	// Duplicate flagged but the item still comes through.
	require.Len(t, out.Duplicates, 1)
	assert.Equal(t, "EXISTING", out.Duplicates[0].ExistingKey)
}

func TestPipeline_ChildOnlyResponseIsNoResultsNotFailure(t *testing.T) {
	child := rootItem("Snapshot", nil)
	child.ParentItem = "PARENT"
	backend := &stubBackend{resp: types.TranslationResponse{
		Result: types.TranslationComplete,
		Items:  []*types.Item{child},
	}}
	p := NewPipeline(backend, nil, zerolog.Nop())

	out, err := p.Resolve(context.Background(), "https://example.com/a", nil)
	require.NoError(t, err)
	assert.Equal(t, types.TranslationComplete, out.Result)
	assert.Empty(t, out.Items)
}

func TestPipeline_ResolveMoreUsesCursor(t *testing.T) {
	backend := &stubBackend{resp: types.TranslationResponse{
		Result:  types.TranslationMultipleChoices,
		Choices: []types.Choice{{Key: "k4", Title: "Fourth Result"}},
		Next:    "page-3",
	}}
	p := NewPipeline(backend, nil, zerolog.Nop())

	out, err := p.ResolveMore(context.Background(), "https://example.com/results", "page-2", nil)
	require.NoError(t, err)
	assert.Equal(t, "web-more", backend.method)
	assert.Equal(t, "https://example.com/results#page-2", backend.input)
	require.Len(t, out.Choices, 1)
	assert.Equal(t, "page-3", out.Next)
}

func TestPipeline_DedupsChoices(t *testing.T) {
	backend := &stubBackend{resp: types.TranslationResponse{
		Result: types.TranslationMultipleChoices,
		Choices: []types.Choice{
			{Key: "k1", Title: "Deep Work"},
			{Key: "k2", Title: "deep work"},
			{Key: "k3", Title: "Another Result"},
		},
		Next: "session-1",
	}}
	p := NewPipeline(backend, nil, zerolog.Nop())

	out, err := p.Resolve(context.Background(), "https://example.com/results", nil)
	require.NoError(t, err)
	require.Len(t, out.Choices, 2)
	assert.Equal(t, "k1", out.Choices[0].Key)
	assert.Equal(t, "k3", out.Choices[1].Key)
	assert.Equal(t, "session-1", out.Next)
}

func TestDefaultDuplicatePolicy(t *testing.T) {
	tests := []struct {
		name      string
		candidate *types.Item
		existing  *types.Item
		want      bool
	}{
		{
			name:      "equal DOIs case-insensitive",
			candidate: rootItem("A", map[string]string{"DOI": "10.1/AB"}),
			existing:  rootItem("Different Title", map[string]string{"DOI": "10.1/ab"}),
			want:      true,
		},
		{
			name:      "DOI mismatch overrides title match",
			candidate: rootItem("Same", map[string]string{"DOI": "10.1/a"}),
			existing:  rootItem("Same", map[string]string{"DOI": "10.1/b"}),
			want:      false,
		},
		{
			name:      "title alone is not enough",
			candidate: rootItem("Same Title", nil),
			existing:  rootItem("Same Title", nil),
			want:      false,
		},
		{
			name:      "title plus ISBN",
			candidate: rootItem("Same Title", map[string]string{"ISBN": "9780306406157"}),
			existing:  rootItem("same title", map[string]string{"ISBN": "9780306406157"}),
			want:      true,
		},
		{
			name:      "title plus URL",
			candidate: rootItem("Same Title", map[string]string{"url": "https://example.com/a"}),
			existing:  rootItem("Same Title", map[string]string{"url": "https://example.com/a"}),
			want:      true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DefaultDuplicatePolicy(tc.candidate, tc.existing))
		})
	}
}
