// Package schema models the entity type definitions the import engine
// validates and reconciles spreadsheet data against. Definitions are supplied
// by an external registry (JSON files exported from the schema API) and are
// consumed read-only.
package schema

import "fmt"

// AttributeType is the declared value type of an attribute.
type AttributeType string

const (
	TypeString       AttributeType = "string"
	TypeList         AttributeType = "list"
	TypeMultiValue   AttributeType = "multivalue-string"
	TypeTag          AttributeType = "tag"
	TypeCheckbox     AttributeType = "checkbox"
	TypeJSON         AttributeType = "json"
	TypeRelationship AttributeType = "relationship"
	TypeEmbedded     AttributeType = "embedded_entity"
	TypeStatus       AttributeType = "status"
	TypeInteger      AttributeType = "Integer"
	TypeDate         AttributeType = "date"
)

// Attribute mirrors the attribute objects served by the schema API.
type Attribute struct {
	Name        string        `json:"name" validate:"required"`
	Type        AttributeType `json:"type" validate:"required,oneof=string list multivalue-string tag checkbox json relationship embedded_entity status Integer date"`
	Description string        `json:"description,omitempty"`

	Required bool `json:"required,omitempty"`
	System   bool `json:"system,omitempty"`

	ValidationRegex    string `json:"validation_regex,omitempty"`
	ValidationRegexMsg string `json:"validation_regex_msg,omitempty"`

	// Relationship metadata, set when Type is relationship.
	RelEntity           string `json:"rel_entity,omitempty"`
	RelKey              string `json:"rel_key,omitempty"`
	RelDisplayAttribute string `json:"rel_display_attribute,omitempty"`
	ListMultiSelect     bool   `json:"listMultiSelect,omitempty"`

	// Pipe-separated options for list attributes.
	ListValue string `json:"listvalue,omitempty"`
}

// IsRelationship reports whether the attribute references another entity.
func (a Attribute) IsRelationship() bool {
	return a.Type == TypeRelationship
}

// Schema is one entity type definition with its ordered attributes.
type Schema struct {
	Name       string      `json:"schema_name" validate:"required"`
	Type       string      `json:"schema_type,omitempty"`
	Attributes []Attribute `json:"attributes" validate:"dive"`

	// KeyAttr and DisplayAttr override the <name>_id / <name>_name
	// conventions used by the migration entity schemas.
	KeyAttr     string `json:"key_attribute,omitempty"`
	DisplayAttr string `json:"display_attribute,omitempty"`
}

// Attribute returns the named attribute definition.
func (s Schema) Attribute(name string) (Attribute, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// HasAttribute reports whether the schema defines the named attribute.
func (s Schema) HasAttribute(name string) bool {
	_, ok := s.Attribute(name)
	return ok
}

// KeyAttribute is the identifier attribute records are keyed by.
func (s Schema) KeyAttribute() string {
	if s.KeyAttr != "" {
		return s.KeyAttr
	}
	return s.Name + "_id"
}

// DisplayAttribute is the human-facing name attribute. It doubles as the
// natural key when grouping import rows into candidate records and when
// matching candidates against existing records.
func (s Schema) DisplayAttribute() string {
	if s.DisplayAttr != "" {
		return s.DisplayAttr
	}
	return s.Name + "_name"
}

func (s Schema) validateUniqueAttributes() error {
	seen := make(map[string]struct{}, len(s.Attributes))
	for _, a := range s.Attributes {
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("schema %s: duplicate attribute name %q", s.Name, a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	return nil
}
