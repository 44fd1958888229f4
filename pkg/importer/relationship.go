package importer

import (
	"fmt"

	"github.com/openmigrate/mfdata/pkg/schema"
)

// PendingPlaceholder is the wire-form marker for a relationship whose target
// id is not known yet because the referenced record has not been created.
const PendingPlaceholder = "tbc"

// RefState distinguishes resolved ids from forward references.
type RefState int

const (
	// RefPending means the display name did not match any known record;
	// resolution is deferred until the referenced record is created.
	RefPending RefState = iota
	// RefResolved means ID holds the target record's key value.
	RefResolved
)

// Reference is one relationship value: either a resolved id or a pending
// display name. The sentinel string "tbc" only appears at the serialization
// boundary; inside the engine the state is explicit.
type Reference struct {
	State RefState
	ID    string
	Name  string
}

// Value returns the wire-form relationship value.
func (r Reference) Value() string {
	if r.State == RefResolved {
		return r.ID
	}
	return PendingPlaceholder
}

// valueType classifies a relationship cell as display names needing lookup
// ("name") or as pass-through identifiers ("id"). Prefixed headers and
// attributes whose display attribute differs from their own name always
// carry display names; a bare header whose display attribute equals the
// attribute name and which is not multi-select already holds ids.
func relationshipValueType(m Mapping) string {
	if m.Prefixed {
		return "name"
	}
	if m.Attribute.RelDisplayAttribute != m.Attribute.Name {
		return "name"
	}
	if m.Attribute.ListMultiSelect {
		return "name"
	}
	return "id"
}

// MismatchedItem inspects records whose display attribute equals displayValue
// and returns the first record whose key value conflicts with the first
// match. It returns nil when zero or one record matches, or when all matches
// agree on the key value.
func MismatchedItem(records []Record, displayAttr, displayValue, keyAttr string) Record {
	var firstKey any
	seenFirst := false
	for _, rec := range records {
		v, ok := rec[displayAttr]
		if !ok || fmt.Sprint(v) != displayValue {
			continue
		}
		if !seenFirst {
			firstKey = rec[keyAttr]
			seenFirst = true
			continue
		}
		if fmt.Sprint(rec[keyAttr]) != fmt.Sprint(firstKey) {
			return rec
		}
	}
	return nil
}

// ResolveRelationship maps the raw text of a relationship cell to one or
// more references, looking display names up against view (existing data plus
// records staged earlier in the batch). Unresolvable names become pending
// references; ambiguous display names are left pending and reported.
func ResolveRelationship(view DataView, m Mapping, raw string) ([]Reference, []Notice) {
	attr := m.Attribute

	if relationshipValueType(m) == "id" {
		var refs []Reference
		for _, id := range splitValues(attr, raw) {
			refs = append(refs, Reference{State: RefResolved, ID: id})
		}
		return refs, nil
	}

	displayAttr := attr.RelDisplayAttribute
	if displayAttr == "" {
		displayAttr = attr.Name
	}
	keyAttr := attr.RelKey
	records := view.Records(attr.RelEntity)

	var refs []Reference
	var notices []Notice
	for _, name := range splitValues(attr, raw) {
		if conflict := MismatchedItem(records, displayAttr, name, keyAttr); conflict != nil {
			refs = append(refs, Reference{State: RefPending, Name: name})
			notices = append(notices, Notice{
				Severity:  SeverityWarning,
				Attribute: attr.Name,
				Text: fmt.Sprintf(
					"Multiple %s records share the name %q with different %s values; reference left unresolved.",
					attr.RelEntity, name, keyAttr,
				),
			})
			continue
		}
		// records staged earlier in the batch may match by name while still
		// lacking an id; those stay pending until the id is assigned
		if rec, ok := findByDisplay(records, displayAttr, name); ok && rec[keyAttr] != nil {
			refs = append(refs, Reference{State: RefResolved, ID: fmt.Sprint(rec[keyAttr]), Name: name})
			continue
		}
		refs = append(refs, Reference{State: RefPending, Name: name})
	}
	return refs, notices
}

// splitValues splits multi-select cells on the list separator; single-select
// attributes keep the raw text whole.
func splitValues(attr schema.Attribute, raw string) []string {
	if attr.ListMultiSelect {
		return splitList(raw)
	}
	return []string{raw}
}

// findByDisplay performs a case-sensitive exact match on the display
// attribute.
func findByDisplay(records []Record, displayAttr, name string) (Record, bool) {
	for _, rec := range records {
		if v, ok := rec[displayAttr]; ok && fmt.Sprint(v) == name {
			return rec, true
		}
	}
	return nil, false
}

// applyReferences writes a resolved relationship onto a candidate record:
// the resolved value(s) under the attribute name and, for name-typed lookups,
// the original display text under the shadow __<attr> key so pending values
// can be back-filled or surfaced later. Multi-valued relationships stay
// positionally aligned with their shadow names.
func applyReferences(rec Record, m Mapping, refs []Reference, named bool) {
	attr := m.Attribute
	if attr.ListMultiSelect {
		values := make([]string, len(refs))
		names := make([]string, len(refs))
		for i, r := range refs {
			values[i] = r.Value()
			names[i] = r.Name
		}
		rec[attr.Name] = values
		if named {
			rec[shadowKey(attr.Name)] = names
		}
		return
	}
	if len(refs) == 0 {
		return
	}
	rec[attr.Name] = refs[0].Value()
	if named {
		rec[shadowKey(attr.Name)] = refs[0].Name
	}
}

func shadowKey(attr string) string { return "__" + attr }
