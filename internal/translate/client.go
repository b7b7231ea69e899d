// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package translate resolves raw user input (URLs, identifiers, import
// payloads) into candidate bibliographic items through the translation
// backend, then dedups, validates, and flags likely duplicates before the
// engine commits anything.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/pdiddy/biblio-engine/internal/httputil"
	"github.com/pdiddy/biblio-engine/pkg/types"
)

// ErrTranslation marks a transport-level translation failure. Backend
// "could not translate" outcomes are not errors; they come back as
// TranslationFailed responses.
var ErrTranslation = errors.New("translation request failed")

// translateBaseURL is the translation server endpoint. Declared as a var so
// tests can substitute httptest servers; TranslationConfig.Endpoint
// overrides it when set.
var translateBaseURL = "http://127.0.0.1:1969"

// Client talks to the translation server.
type Client struct {
	client *http.Client
	cfg    types.TranslationConfig
}

// NewClient returns a translation server client.
func NewClient(client *http.Client, cfg types.TranslationConfig) *Client {
	return &Client{client: client, cfg: cfg}
}

func (c *Client) base() string {
	if c.cfg.Endpoint != "" {
		return c.cfg.Endpoint
	}
	return translateBaseURL
}

// TranslateURL resolves a web page URL.
func (c *Client) TranslateURL(ctx context.Context, url string) (types.TranslationResponse, error) {
	return c.post(ctx, "/web", "text/plain", []byte(url))
}

// TranslateIdentifier resolves a DOI/ISBN/PMID/arXiv identifier.
func (c *Client) TranslateIdentifier(ctx context.Context, id string) (types.TranslationResponse, error) {
	return c.post(ctx, "/search", "text/plain", []byte(id))
}

// TranslateImport resolves a raw import payload (BibTeX, RIS, ...).
func (c *Client) TranslateImport(ctx context.Context, payload []byte) (types.TranslationResponse, error) {
	return c.post(ctx, "/import", "text/plain", payload)
}

// TranslateURLItems re-enters a MULTIPLE_CHOICES response, scoped to one
// selected candidate.
func (c *Client) TranslateURLItems(ctx context.Context, url, choiceKey, session string) (types.TranslationResponse, error) {
	body, err := json.Marshal(map[string]any{
		"url":     url,
		"session": session,
		"items":   map[string]int{choiceKey: 1},
	})
	if err != nil {
		return types.TranslationResponse{}, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	return c.post(ctx, "/web", "application/json", body)
}

// TranslateURLMore follows a MULTIPLE_CHOICES continuation: the session
// cursor with no item selection asks the backend for the next page of
// candidates.
func (c *Client) TranslateURLMore(ctx context.Context, url, session string) (types.TranslationResponse, error) {
	body, err := json.Marshal(map[string]any{
		"url":     url,
		"session": session,
	})
	if err != nil {
		return types.TranslationResponse{}, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	return c.post(ctx, "/web", "application/json", body)
}

func (c *Client) post(ctx context.Context, path, contentType string, body []byte) (types.TranslationResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+path, bytes.NewReader(body))
	if err != nil {
		return types.TranslationResponse{}, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.cfg.MaxRetries)
	if err != nil {
		// Cancellation is the caller aborting; surface it untranslated so
		// the pipeline can stay silent.
		if ctx.Err() != nil {
			return types.TranslationResponse{}, ctx.Err()
		}
		return types.TranslationResponse{}, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return decodeItems(resp.Body)
	case http.StatusMultipleChoices:
		return decodeChoices(resp.Body)
	default:
		io.Copy(io.Discard, resp.Body)
		return types.TranslationResponse{Result: types.TranslationFailed}, nil
	}
}

// decodeItems parses a COMPLETE response: a JSON array of items in the
// backend's field layout.
func decodeItems(r io.Reader) (types.TranslationResponse, error) {
	var raw []map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return types.TranslationResponse{}, fmt.Errorf("%w: parsing items: %v", ErrTranslation, err)
	}

	resp := types.TranslationResponse{Result: types.TranslationComplete}
	for _, entry := range raw {
		resp.Items = append(resp.Items, itemFromRaw(entry))
	}
	return resp, nil
}

// itemFromRaw maps the backend's flat item JSON onto an Item: known
// structural members are lifted out, every other string member becomes a
// typed field.
func itemFromRaw(raw map[string]json.RawMessage) *types.Item {
	item := &types.Item{Fields: make(map[string]string)}
	for name, value := range raw {
		switch name {
		case "key":
			json.Unmarshal(value, &item.Key)
		case "itemType":
			json.Unmarshal(value, &item.ItemType)
		case "parentItem":
			json.Unmarshal(value, &item.ParentItem)
		case "version":
			json.Unmarshal(value, &item.Version)
		case "creators":
			json.Unmarshal(value, &item.Creators)
		default:
			var s string
			if err := json.Unmarshal(value, &s); err == nil {
				item.Fields[name] = s
			}
			// Non-string members (tags, collections) are not fields.
		}
	}
	return item
}

// decodeChoices parses a MULTIPLE_CHOICES response.
func decodeChoices(r io.Reader) (types.TranslationResponse, error) {
	var body struct {
		Select map[string]string `json:"select"`
		Next   string            `json:"next"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return types.TranslationResponse{}, fmt.Errorf("%w: parsing choices: %v", ErrTranslation, err)
	}

	resp := types.TranslationResponse{
		Result: types.TranslationMultipleChoices,
		Next:   body.Next,
	}
	for key, title := range body.Select {
		resp.Choices = append(resp.Choices, types.Choice{Key: key, Title: title})
	}
	// JSON object order is not stable; present choices in key order.
	sort.Slice(resp.Choices, func(i, j int) bool {
		return resp.Choices[i].Key < resp.Choices[j].Key
	})
	return resp, nil
}
