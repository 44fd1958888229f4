package importer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/openmigrate/mfdata/pkg/schema"
)

// ValueKind tags the coerced form of a cell.
type ValueKind int

const (
	KindEmpty ValueKind = iota
	KindString
	KindStringList
	KindTags
	KindBool
	KindJSON
)

// TagPair is one key=value entry of a tag attribute.
type TagPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Value is the typed form of a raw cell, coerced once at the boundary so the
// rest of the pipeline never re-parses strings.
type Value struct {
	Kind ValueKind
	Str  string
	List []string
	Tags []TagPair
	Bool bool
	JSON any
}

// Interface returns the wire-form value stored on candidate records.
func (v Value) Interface() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindStringList:
		return v.List
	case KindTags:
		return v.Tags
	case KindBool:
		return v.Bool
	case KindJSON:
		return v.JSON
	default:
		return nil
	}
}

// IsEmpty reports whether the cell carried no value.
func (v Value) IsEmpty() bool { return v.Kind == KindEmpty }

// listSeparator splits multi-valued cells.
const listSeparator = ";"

func splitList(raw string) []string {
	parts := strings.Split(raw, listSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var truthy = map[string]struct{}{
	"on": {}, "true": {}, "yes": {}, "1": {},
}

// Coerce normalizes one raw cell according to the attribute's type and
// returns the typed value plus at most one validation message. An empty cell
// short-circuits: there is nothing to validate.
func Coerce(attr schema.Attribute, raw string) (Value, *Message) {
	if raw == "" {
		return Value{Kind: KindEmpty}, nil
	}

	switch attr.Type {
	case schema.TypeList, schema.TypeMultiValue:
		parts := splitList(raw)
		if attr.ValidationRegex != "" {
			re, err := regexp.Compile(attr.ValidationRegex)
			if err != nil {
				return Value{Kind: KindStringList, List: parts}, nil
			}
			for _, p := range parts {
				if !re.MatchString(p) {
					return Value{Kind: KindStringList, List: parts}, regexFailure(attr)
				}
			}
		}
		return Value{Kind: KindStringList, List: parts}, nil

	case schema.TypeTag:
		var tags []TagPair
		for _, part := range splitList(raw) {
			key, val, ok := strings.Cut(part, "=")
			if !ok {
				// pairs without '=' are skipped
				continue
			}
			tags = append(tags, TagPair{Key: strings.TrimSpace(key), Value: strings.TrimSpace(val)})
		}
		return Value{Kind: KindTags, Tags: tags}, nil

	case schema.TypeCheckbox:
		_, yes := truthy[strings.ToLower(strings.TrimSpace(raw))]
		return Value{Kind: KindBool, Bool: yes}, nil

	case schema.TypeJSON:
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return Value{Kind: KindEmpty}, &Message{
				Attribute: attr.Name,
				Error:     fmt.Sprintf("Invalid JSON: %v", err),
			}
		}
		return Value{Kind: KindJSON, JSON: parsed}, nil

	default:
		// string, status, Integer, date, relationship, embedded_entity: the
		// raw text is kept as-is; only the attribute regex applies.
		if attr.ValidationRegex != "" {
			re, err := regexp.Compile(attr.ValidationRegex)
			if err == nil && !re.MatchString(raw) {
				return Value{Kind: KindString, Str: raw}, regexFailure(attr)
			}
		}
		return Value{Kind: KindString, Str: raw}, nil
	}
}

func regexFailure(attr schema.Attribute) *Message {
	msg := attr.ValidationRegexMsg
	if msg == "" {
		msg = fmt.Sprintf("Value does not match the required format for %s.", attr.Name)
	}
	return &Message{Attribute: attr.Name, Error: msg}
}
