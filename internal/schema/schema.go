// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema fetches and caches the item-type schema (field and
// creator-type tables) and validates items against it. Invalid fields are
// dropped or coerced, never silently retained as unknown.
package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pdiddy/biblio-engine/internal/httputil"
	"github.com/pdiddy/biblio-engine/pkg/types"
)

// ErrSchema marks a failure to obtain a usable schema. It is fatal to
// engine readiness until a retry succeeds.
var ErrSchema = errors.New("schema unavailable")

// schemaURL is the authority's schema endpoint. Declared as a var so tests
// can substitute httptest servers.
var schemaURL = "https://api.zotero.org/schema"

// Provider loads the schema once and answers validation queries.
type Provider struct {
	client *http.Client
	cfg    types.SchemaConfig
	schema *types.Schema
}

// NewProvider returns a Provider that fetches via client using cfg.
func NewProvider(client *http.Client, cfg types.SchemaConfig) *Provider {
	return &Provider{client: client, cfg: cfg}
}

// schemaDocument mirrors the authority's schema JSON.
type schemaDocument struct {
	ItemTypes []struct {
		ItemType string `json:"itemType"`
		Fields   []struct {
			Field     string `json:"field"`
			BaseField string `json:"baseField"`
		} `json:"fields"`
		CreatorTypes []struct {
			CreatorType string `json:"creatorType"`
			Primary     bool   `json:"primary"`
		} `json:"creatorTypes"`
	} `json:"itemTypes"`
}

// Load fetches the schema, falling back to the on-disk cache when the fetch
// fails. A successful fetch refreshes the cache. Both failing yields
// ErrSchema.
func (p *Provider) Load(ctx context.Context) error {
	var doc schemaDocument
	err := httputil.GetJSON(ctx, p.client, schemaURL, p.cfg.UserAgent, &doc)
	if err == nil {
		p.schema = buildTables(&doc)
		p.writeCache(&doc)
		return nil
	}

	if cached, cacheErr := p.readCache(); cacheErr == nil {
		p.schema = buildTables(cached)
		return nil
	}

	return fmt.Errorf("%w: %v", ErrSchema, err)
}

// Loaded reports whether a schema is available.
func (p *Provider) Loaded() bool { return p.schema != nil }

// Schema returns the loaded tables, or nil before Load succeeds.
func (p *Provider) Schema() *types.Schema { return p.schema }

func (p *Provider) writeCache(doc *schemaDocument) {
	if p.cfg.CachePath == "" {
		return
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return
	}
	os.MkdirAll(filepath.Dir(p.cfg.CachePath), 0o755)
	os.WriteFile(p.cfg.CachePath, data, 0o644)
}

func (p *Provider) readCache() (*schemaDocument, error) {
	if p.cfg.CachePath == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(p.cfg.CachePath)
	if err != nil {
		return nil, err
	}
	var doc schemaDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func buildTables(doc *schemaDocument) *types.Schema {
	s := &types.Schema{
		ItemTypeFields:       make(map[string][]string),
		ItemTypeCreatorTypes: make(map[string][]string),
		BaseMappings:         make(map[string]map[string]string),
	}
	for _, it := range doc.ItemTypes {
		s.ItemTypes = append(s.ItemTypes, it.ItemType)

		fields := make([]string, 0, len(it.Fields))
		for _, f := range it.Fields {
			fields = append(fields, f.Field)
			if f.BaseField != "" {
				if s.BaseMappings[it.ItemType] == nil {
					s.BaseMappings[it.ItemType] = make(map[string]string)
				}
				s.BaseMappings[it.ItemType][f.Field] = f.BaseField
			}
		}
		s.ItemTypeFields[it.ItemType] = fields

		// Primary creator type first, remaining in declared order.
		var creators []string
		for _, c := range it.CreatorTypes {
			if c.Primary {
				creators = append([]string{c.CreatorType}, creators...)
			} else {
				creators = append(creators, c.CreatorType)
			}
		}
		s.ItemTypeCreatorTypes[it.ItemType] = creators
	}
	return s
}

// Validate checks item against the tables for its item type. Unknown fields
// are dropped and invalid creator types coerced to the type's primary
// creator; each such fix is reported as a FieldError. The item itself is
// always left committable.
func (p *Provider) Validate(item *types.Item) []types.FieldError {
	if p.schema == nil {
		return nil
	}
	var errs []types.FieldError

	if !p.schema.HasItemType(item.ItemType) {
		errs = append(errs, types.FieldError{Field: "itemType", Reason: fmt.Sprintf("unknown item type %q", item.ItemType)})
		return errs
	}

	for name := range item.Fields {
		if name == "title" || p.schema.HasField(item.ItemType, name) {
			continue
		}
		delete(item.Fields, name)
		errs = append(errs, types.FieldError{Field: name, Reason: fmt.Sprintf("not valid for %s, dropped", item.ItemType)})
	}

	primary := p.schema.PrimaryCreatorType(item.ItemType)
	for i, c := range item.Creators {
		if c.CreatorType == "" || !p.schema.HasCreatorType(item.ItemType, c.CreatorType) {
			item.Creators[i].CreatorType = primary
			errs = append(errs, types.FieldError{Field: "creators", Reason: fmt.Sprintf("creator type %q coerced to %q", c.CreatorType, primary)})
		}
	}
	return errs
}

// RemapBaseFields rewrites item.Fields for a new item type: fields sharing
// a base field are renamed to the new type's slot, fields without a slot in
// the new type are dropped. The item's type is updated in place.
func (p *Provider) RemapBaseFields(item *types.Item, newType string) {
	if p.schema == nil || item.ItemType == newType {
		item.ItemType = newType
		return
	}

	oldBase := p.schema.BaseMappings[item.ItemType]
	newBase := p.schema.BaseMappings[newType]

	// base field -> field name in the new type
	slot := make(map[string]string, len(newBase))
	for field, base := range newBase {
		slot[base] = field
	}

	remapped := make(map[string]string, len(item.Fields))
	for name, value := range item.Fields {
		if name == "title" || p.schema.HasField(newType, name) {
			remapped[name] = value
			continue
		}
		if base, ok := oldBase[name]; ok {
			if target, ok := slot[base]; ok {
				remapped[target] = value
				continue
			}
		}
		// No slot in the new type: dropped.
	}

	item.Fields = remapped
	item.ItemType = newType
}
