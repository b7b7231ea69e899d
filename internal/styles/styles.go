// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package styles resolves citation styles from the style repository:
// fetching and caching XML, following dependent→parent chains, and deriving
// the capability flags the engine keys its decisions on.
package styles

import (
	"context"
	"database/sql"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/biblio-engine/internal/httputil"
	"github.com/pdiddy/biblio-engine/pkg/types"
)

// ErrStyleFetch marks a failed style lookup. The caller must keep the
// previously active style active; a failed fetch never partially switches.
var ErrStyleFetch = errors.New("style fetch failed")

// Base URLs for the style repository. Declared as vars so tests can
// substitute httptest servers.
var (
	styleBaseURL = "https://www.zotero.org/styles/"
	styleListURL = "https://www.zotero.org/styles-files/styles.json"
)

// Default prefix lists for the heuristic flags. The exact matching rule is
// policy, configurable via StyleConfig.
var (
	defaultSentenceCasePrefixes      = []string{"apa", "american-medical-association", "vancouver"}
	defaultUppercaseSubtitlePrefixes = []string{"apa", "american-"}
)

// Resolver fetches styles, caching XML in sqlite.
type Resolver struct {
	client *http.Client
	cfg    types.StyleConfig
	db     *sql.DB
}

// NewResolver returns a Resolver caching into db. The cache table is
// created if missing.
func NewResolver(client *http.Client, cfg types.StyleConfig, db *sql.DB) (*Resolver, error) {
	r := &Resolver{client: client, cfg: cfg, db: db}
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS style_cache (
		name TEXT PRIMARY KEY,
		xml TEXT NOT NULL,
		fetched_at TEXT NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("creating style cache: %w", err)
	}
	return r, nil
}

// Resolve fetches the named style and returns it ready for activation. A
// dependent style resolves to its parent's XML while keeping its own name,
// flags, and locale override. Failures wrap ErrStyleFetch.
func (r *Resolver) Resolve(ctx context.Context, name string) (*types.Style, error) {
	xmlText, err := r.fetchXML(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStyleFetch, name, err)
	}

	style, err := r.parse(name, xmlText)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStyleFetch, name, err)
	}

	if style.IsDependent {
		parentXML, err := r.fetchXML(ctx, style.Parent)
		if err != nil {
			return nil, fmt.Errorf("%w: parent %s of %s: %v", ErrStyleFetch, style.Parent, name, err)
		}
		parent, err := r.parse(style.Parent, parentXML)
		if err != nil {
			return nil, fmt.Errorf("%w: parent %s of %s: %v", ErrStyleFetch, style.Parent, name, err)
		}
		// Rendering rules come from the parent; identity, locale override,
		// and heuristic flags stay with the dependent style.
		style.XML = parentXML
		style.Flags.HasBibliography = parent.Flags.HasBibliography
		style.Flags.Sorted = parent.Flags.Sorted
		if !style.Flags.Numeric {
			style.Flags.Numeric = parent.Flags.Numeric
		}
		if !style.Flags.Note {
			style.Flags.Note = parent.Flags.Note
		}
	}

	return style, nil
}

// List returns the repository's style listing.
func (r *Resolver) List(ctx context.Context) ([]types.StyleInfo, error) {
	var listing []struct {
		Name      string `json:"name"`
		Title     string `json:"title"`
		Dependent int    `json:"dependent"`
		Parent    string `json:"parent"`
	}
	if err := httputil.GetJSON(ctx, r.client, styleListURL, r.cfg.UserAgent, &listing); err != nil {
		return nil, fmt.Errorf("%w: listing: %v", ErrStyleFetch, err)
	}

	infos := make([]types.StyleInfo, len(listing))
	for i, s := range listing {
		infos[i] = types.StyleInfo{Name: s.Name, Title: s.Title, Parent: s.Parent}
	}
	return infos, nil
}

// fetchXML returns the style XML from cache or the repository, caching on a
// successful fetch.
func (r *Resolver) fetchXML(ctx context.Context, name string) (string, error) {
	var cached string
	err := r.db.QueryRowContext(ctx,
		`SELECT xml FROM style_cache WHERE name = ?`, name,
	).Scan(&cached)
	if err == nil {
		return cached, nil
	}

	body, err := httputil.GetBody(ctx, r.client, styleBaseURL+name, r.cfg.UserAgent)
	if err != nil {
		return "", err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO style_cache (name, xml, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET xml=excluded.xml, fetched_at=excluded.fetched_at`,
		name, string(body), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("caching style %s: %w", name, err)
	}
	return string(body), nil
}

// Invalidate drops a style from the cache, forcing a re-fetch.
func (r *Resolver) Invalidate(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM style_cache WHERE name = ?`, name)
	return err
}

// cslStyle mirrors the parts of a CSL style document the resolver reads.
type cslStyle struct {
	XMLName       xml.Name `xml:"style"`
	Class         string   `xml:"class,attr"`
	DefaultLocale string   `xml:"default-locale,attr"`
	Info          struct {
		Title string `xml:"title"`
		Links []struct {
			Rel  string `xml:"rel,attr"`
			Href string `xml:"href,attr"`
		} `xml:"link"`
		Categories []struct {
			CitationFormat string `xml:"citation-format,attr"`
		} `xml:"category"`
	} `xml:"info"`
	Bibliography *struct {
		Sort *struct{} `xml:"sort"`
	} `xml:"bibliography"`
}

// parse extracts style metadata and capability flags from style XML.
func (r *Resolver) parse(name, xmlText string) (*types.Style, error) {
	var doc cslStyle
	if err := xml.Unmarshal([]byte(xmlText), &doc); err != nil {
		return nil, fmt.Errorf("parsing style XML: %w", err)
	}

	style := &types.Style{
		Name:          name,
		Title:         strings.TrimSpace(doc.Info.Title),
		XML:           xmlText,
		DefaultLocale: doc.DefaultLocale,
	}

	for _, link := range doc.Info.Links {
		if link.Rel == "independent-parent" {
			style.IsDependent = true
			style.Parent = parentName(link.Href)
		}
	}

	for _, cat := range doc.Info.Categories {
		if cat.CitationFormat == "numeric" {
			style.Flags.Numeric = true
		}
	}

	style.Flags.Note = doc.Class == "note"
	style.Flags.HasBibliography = doc.Bibliography != nil
	style.Flags.Sorted = doc.Bibliography != nil && doc.Bibliography.Sort != nil
	style.Flags.SentenceCase = matchesPrefix(name, r.prefixes(r.cfg.SentenceCasePrefixes, defaultSentenceCasePrefixes))
	style.Flags.UppercaseSubtitles = matchesPrefix(name, r.prefixes(r.cfg.UppercaseSubtitlePrefixes, defaultUppercaseSubtitlePrefixes))

	return style, nil
}

func (r *Resolver) prefixes(configured, fallback []string) []string {
	if len(configured) > 0 {
		return configured
	}
	return fallback
}

// parentName extracts the style short name from an independent-parent href.
func parentName(href string) string {
	href = strings.TrimSuffix(href, "/")
	if i := strings.LastIndex(href, "/"); i >= 0 {
		return href[i+1:]
	}
	return href
}

func matchesPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
