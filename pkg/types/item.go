// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data model for the bibliography engine:
// items, styles, the rendered bibliography projection, translation responses,
// and per-stage configuration.
package types

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Creator identifies one contributor to a bibliographic item.
type Creator struct {
	// CreatorType classifies the contribution (e.g. "author", "editor").
	CreatorType string `json:"creatorType" yaml:"creator_type"`

	// FirstName and LastName hold a two-field personal name.
	FirstName string `json:"firstName,omitempty" yaml:"first_name,omitempty"`
	LastName  string `json:"lastName,omitempty" yaml:"last_name,omitempty"`

	// Name holds a single-field name (institutional authors).
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Item is one bibliographic record. Key is opaque and stable across reorder
// and edit; order within the store defines bibliography order unless the
// active style mandates sorting.
type Item struct {
	// Key uniquely identifies the item within a store.
	Key string `json:"key" yaml:"key"`

	// ItemType is the record's type (e.g. "journalArticle", "book").
	ItemType string `json:"itemType" yaml:"item_type"`

	// Creators lists contributors in display order.
	Creators []Creator `json:"creators,omitempty" yaml:"creators,omitempty"`

	// Fields holds the typed field values (title, date, DOI, url, ...).
	Fields map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`

	// Version increases monotonically on every mutation.
	Version int `json:"version" yaml:"version"`

	// ParentItem back-references another item's key when this record is a
	// child (note, attachment). Child items are excluded from root counts.
	ParentItem string `json:"parentItem,omitempty" yaml:"parent_item,omitempty"`
}

// Field returns the named field value, or "" when absent.
func (it *Item) Field(name string) string {
	if it.Fields == nil {
		return ""
	}
	return it.Fields[name]
}

// SetField stores a field value, allocating the map on first use.
func (it *Item) SetField(name, value string) {
	if it.Fields == nil {
		it.Fields = make(map[string]string)
	}
	it.Fields[name] = value
}

// Title returns the item's title field.
func (it *Item) Title() string { return it.Field("title") }

// IsRoot reports whether the item is a top-level record rather than a
// child of another item.
func (it *Item) IsRoot() bool { return it.ParentItem == "" }

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	dup := *it
	dup.Creators = append([]Creator(nil), it.Creators...)
	if it.Fields != nil {
		dup.Fields = make(map[string]string, len(it.Fields))
		for k, v := range it.Fields {
			dup.Fields[k] = v
		}
	}
	return &dup
}

// CSLName is a person's name in CSL form.
type CSLName struct {
	Family  string `json:"family,omitempty" yaml:"family,omitempty"`
	Given   string `json:"given,omitempty" yaml:"given,omitempty"`
	Literal string `json:"literal,omitempty" yaml:"literal,omitempty"`
}

// CSLDate is a date in CSL date-parts form.
type CSLDate struct {
	DateParts [][]int `json:"date-parts" yaml:"date-parts"`
}

// CSLItem is a bibliographic entry in CSL (Citation Style Language) format,
// the representation the citation processor consumes. Field names follow the
// CSL-JSON schema.
type CSLItem struct {
	ID             string    `json:"id" yaml:"id"`
	Type           string    `json:"type" yaml:"type"`
	Title          string    `json:"title,omitempty" yaml:"title,omitempty"`
	Author         []CSLName `json:"author,omitempty" yaml:"author,omitempty"`
	Issued         *CSLDate  `json:"issued,omitempty" yaml:"issued,omitempty"`
	ContainerTitle string    `json:"container-title,omitempty" yaml:"container-title,omitempty"`
	Publisher      string    `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	DOI            string    `json:"DOI,omitempty" yaml:"DOI,omitempty"`
	ISBN           string    `json:"ISBN,omitempty" yaml:"ISBN,omitempty"`
	URL            string    `json:"URL,omitempty" yaml:"URL,omitempty"`
}

// cslTypeMap translates item types to CSL types. Unmapped types fall back
// to "document".
var cslTypeMap = map[string]string{
	"journalArticle":   "article-journal",
	"magazineArticle":  "article-magazine",
	"newspaperArticle": "article-newspaper",
	"book":             "book",
	"bookSection":      "chapter",
	"conferencePaper":  "paper-conference",
	"thesis":           "thesis",
	"report":           "report",
	"webpage":          "webpage",
	"preprint":         "article",
	"document":         "document",
}

var yearPattern = regexp.MustCompile(`\b(\d{4})\b`)

// ToCSL converts an Item to its CSL representation, keyed by the item's Key.
func (it *Item) ToCSL() CSLItem {
	cslType, ok := cslTypeMap[it.ItemType]
	if !ok {
		cslType = "document"
	}
	csl := CSLItem{
		ID:             it.Key,
		Type:           cslType,
		Title:          it.Title(),
		ContainerTitle: it.Field("publicationTitle"),
		Publisher:      it.Field("publisher"),
		DOI:            it.Field("DOI"),
		ISBN:           it.Field("ISBN"),
		URL:            it.Field("url"),
	}

	for _, c := range it.Creators {
		if c.CreatorType != "author" && c.CreatorType != "" {
			continue
		}
		if c.Name != "" {
			csl.Author = append(csl.Author, CSLName{Literal: c.Name})
			continue
		}
		csl.Author = append(csl.Author, CSLName{Family: c.LastName, Given: c.FirstName})
	}

	if m := yearPattern.FindStringSubmatch(it.Field("date")); m != nil {
		year, _ := strconv.Atoi(m[1])
		csl.Issued = &CSLDate{DateParts: [][]int{{year}}}
	}
	return csl
}

// NormalizeTitle returns a lowercased, punctuation-stripped form of a title,
// used as a dedup key across the acquisition pipeline and duplicate checks.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
