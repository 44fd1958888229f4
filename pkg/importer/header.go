package importer

import (
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/openmigrate/mfdata/pkg/schema"
)

// Mapping associates one raw header with a specific schema's attribute.
// A single header can produce several mappings when its bare name exists in
// more than one schema; the row then contributes to every matching schema's
// candidate record.
type Mapping struct {
	SchemaName string
	Attribute  schema.Attribute
	RawHeader  string
	// Prefixed is set when the header carried an explicit [schema] tag.
	// Prefixed relationship headers force display-name lookup.
	Prefixed bool
}

// Notice is a header-scoped finding produced while resolving headers. It is
// attached to each row that supplies a value under the offending header.
type Notice struct {
	Severity  Severity
	Attribute string
	Text      string
}

func unknownHeaderText(header string) string {
	return fmt.Sprintf("%s attribute name not found in any user schema and your data file has provided values.", header)
}

// ResolveHeader parses one raw header against the registry and returns zero
// or more mappings plus any notices.
//
// Recognized forms:
//
//	[schema]attribute  scoped to one schema
//	attribute          searched across every schema
//
// A bracket tag without an attribute suffix is unmatched. An opening bracket
// that is never closed is treated as a literal bare name.
func ResolveHeader(reg *schema.Registry, header string) ([]Mapping, []Notice) {
	if strings.HasPrefix(header, "[") {
		if end := strings.Index(header, "]"); end >= 0 {
			return resolvePrefixed(reg, header, header[1:end], header[end+1:])
		}
		// unclosed bracket: fall through as a literal bare header
	}
	return resolveBare(reg, header)
}

func resolvePrefixed(reg *schema.Registry, header, schemaName, attrName string) ([]Mapping, []Notice) {
	if attrName == "" {
		return nil, []Notice{{Severity: SeverityWarning, Attribute: header, Text: unknownHeaderText(header)}}
	}
	s, ok := reg.Get(schemaName)
	if !ok {
		return nil, []Notice{{Severity: SeverityWarning, Attribute: header, Text: unknownHeaderText(header)}}
	}
	attr, ok := s.Attribute(attrName)
	if !ok {
		return nil, []Notice{{Severity: SeverityWarning, Attribute: header, Text: unknownHeaderText(header)}}
	}
	return []Mapping{{
		SchemaName: s.Name,
		Attribute:  attr,
		RawHeader:  header,
		Prefixed:   true,
	}}, nil
}

func resolveBare(reg *schema.Registry, header string) ([]Mapping, []Notice) {
	var mappings []Mapping
	var matched []string
	for _, s := range reg.Schemas() {
		attr, ok := s.Attribute(header)
		if !ok {
			continue
		}
		mappings = append(mappings, Mapping{
			SchemaName: s.Name,
			Attribute:  attr,
			RawHeader:  header,
		})
		matched = append(matched, s.Name)
	}

	switch len(mappings) {
	case 0:
		notices := []Notice{{Severity: SeverityWarning, Attribute: header, Text: unknownHeaderText(header)}}
		if suggestion := closestAttribute(reg, header); suggestion != "" {
			notices = append(notices, Notice{
				Severity:  SeverityInformational,
				Attribute: header,
				Text:      fmt.Sprintf("Unknown attribute %q. Closest known attribute name is %q.", header, suggestion),
			})
		}
		return nil, notices
	case 1:
		return mappings, nil
	default:
		return mappings, []Notice{{
			Severity:  SeverityInformational,
			Attribute: header,
			Text: fmt.Sprintf(
				"Ambiguous attribute name provided. It is found in multiple schemas [%s]. Import will map data to schemas as required based on record types.",
				strings.Join(matched, ", "),
			),
		}}
	}
}

// closestAttribute returns the best fuzzy match for an unknown header, or ""
// when nothing comes close.
func closestAttribute(reg *schema.Registry, header string) string {
	ranks := fuzzy.RankFindNormalizedFold(header, reg.AttributeNames())
	if len(ranks) == 0 {
		return ""
	}
	best := ranks[0]
	for _, r := range ranks[1:] {
		if r.Distance < best.Distance {
			best = r
		}
	}
	return best.Target
}
