// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Schema holds the field and creator-type tables items are validated
// against, keyed by item type.
type Schema struct {
	// ItemTypes lists the known item types.
	ItemTypes []string `json:"item_types" yaml:"item_types"`

	// ItemTypeFields maps an item type to its valid field names.
	ItemTypeFields map[string][]string `json:"item_type_fields" yaml:"item_type_fields"`

	// ItemTypeCreatorTypes maps an item type to its valid creator types.
	// The first entry is the primary creator type.
	ItemTypeCreatorTypes map[string][]string `json:"item_type_creator_types" yaml:"item_type_creator_types"`

	// BaseMappings maps itemType -> field -> base field, used to carry
	// field values across an item-type change.
	BaseMappings map[string]map[string]string `json:"base_mappings" yaml:"base_mappings"`
}

// HasItemType reports whether t is a known item type.
func (s *Schema) HasItemType(t string) bool {
	for _, it := range s.ItemTypes {
		if it == t {
			return true
		}
	}
	return false
}

// HasField reports whether field is valid for itemType.
func (s *Schema) HasField(itemType, field string) bool {
	for _, f := range s.ItemTypeFields[itemType] {
		if f == field {
			return true
		}
	}
	return false
}

// HasCreatorType reports whether creatorType is valid for itemType.
func (s *Schema) HasCreatorType(itemType, creatorType string) bool {
	for _, c := range s.ItemTypeCreatorTypes[itemType] {
		if c == creatorType {
			return true
		}
	}
	return false
}

// PrimaryCreatorType returns the first creator type for itemType, or
// "author" when the type is unknown.
func (s *Schema) PrimaryCreatorType(itemType string) string {
	if cts := s.ItemTypeCreatorTypes[itemType]; len(cts) > 0 {
		return cts[0]
	}
	return "author"
}

// FieldError records one non-fatal validation problem: the offending field
// was dropped or coerced, and the item was committed regardless.
type FieldError struct {
	Field  string `json:"field" yaml:"field"`
	Reason string `json:"reason" yaml:"reason"`
}

func (e FieldError) Error() string {
	return "field " + e.Field + ": " + e.Reason
}
