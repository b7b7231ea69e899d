// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package identify classifies raw user input into bibliographic identifier
// types (DOI, ISBN, PMID, arXiv, URL) and returns the normalized form the
// translation backend expects.
package identify

import (
	"net/url"
	"regexp"
	"strings"
)

// Type classifies an input identifier.
type Type int

const (
	TypeUnknown Type = iota
	TypeDOI
	TypeISBN
	TypePMID
	TypeArxiv
	TypeURL
)

func (t Type) String() string {
	switch t {
	case TypeDOI:
		return "doi"
	case TypeISBN:
		return "isbn"
	case TypePMID:
		return "pmid"
	case TypeArxiv:
		return "arxiv"
	case TypeURL:
		return "url"
	default:
		return "unknown"
	}
}

// doiPattern matches DOIs: "10.1145/1234567.1234568", with an optional
// "doi:" prefix or doi.org URL wrapper handled before matching.
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/[^\s]+$`)

// arxivPattern matches arXiv IDs: "2301.07041", "arXiv:2301.07041",
// "2301.07041v2".
var arxivPattern = regexp.MustCompile(`^(?:arXiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)$`)

// pmidPattern matches PubMed IDs: bare digits or a "PMID:" prefix.
var pmidPattern = regexp.MustCompile(`^(?:PMID:?\s*)?(\d{1,8})$`)

// isbnStrip removes separators tolerated inside ISBNs.
var isbnStrip = strings.NewReplacer("-", "", " ", "")

// Classify determines the identifier type and returns the normalized form.
// DOIs are unwrapped from "doi:" prefixes and doi.org URLs; ISBNs are
// stripped of separators and checksum-validated; arXiv IDs lose the
// "arXiv:" prefix.
func Classify(raw string) (Type, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TypeUnknown, raw
	}

	if doi, ok := extractDOI(raw); ok {
		return TypeDOI, doi
	}

	if m := arxivPattern.FindStringSubmatch(raw); m != nil {
		return TypeArxiv, m[1]
	}

	if isbn, ok := extractISBN(raw); ok {
		return TypeISBN, isbn
	}

	// PMID after ISBN: a bare 10- or 13-digit run with a valid checksum
	// is an ISBN, everything shorter is a PubMed ID.
	if m := pmidPattern.FindStringSubmatch(raw); m != nil {
		return TypePMID, m[1]
	}

	if u, err := url.Parse(raw); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return TypeURL, raw
	}

	return TypeUnknown, raw
}

// extractDOI unwraps "doi:" prefixes and doi.org resolver URLs before
// matching the DOI grammar.
func extractDOI(raw string) (string, bool) {
	s := raw
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "doi:"):
		s = strings.TrimSpace(s[len("doi:"):])
	case strings.HasPrefix(lower, "https://doi.org/"):
		s = s[len("https://doi.org/"):]
	case strings.HasPrefix(lower, "http://doi.org/"):
		s = s[len("http://doi.org/"):]
	case strings.HasPrefix(lower, "https://dx.doi.org/"):
		s = s[len("https://dx.doi.org/"):]
	}
	if doiPattern.MatchString(s) {
		return s, true
	}
	return "", false
}

// extractISBN strips separators and validates the ISBN-10 or ISBN-13
// checksum. The stripped digit string is the normalized form.
func extractISBN(raw string) (string, bool) {
	s := isbnStrip.Replace(strings.TrimPrefix(strings.TrimPrefix(raw, "ISBN:"), "ISBN "))
	s = strings.ToUpper(s)
	switch len(s) {
	case 10:
		if isbn10Valid(s) {
			return s, true
		}
	case 13:
		if isbn13Valid(s) {
			return s, true
		}
	}
	return "", false
}

func isbn10Valid(s string) bool {
	sum := 0
	for i, r := range s {
		var v int
		switch {
		case r >= '0' && r <= '9':
			v = int(r - '0')
		case r == 'X' && i == 9:
			v = 10
		default:
			return false
		}
		sum += (10 - i) * v
	}
	return sum%11 == 0
}

func isbn13Valid(s string) bool {
	sum := 0
	for i, r := range s {
		if r < '0' || r > '9' {
			return false
		}
		v := int(r - '0')
		if i%2 == 1 {
			v *= 3
		}
		sum += v
	}
	return sum%10 == 0
}
