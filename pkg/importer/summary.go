package importer

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/wI2L/jsondiff"

	"github.com/openmigrate/mfdata/pkg/schema"
)

// Change is an Update bucket entry: the candidate record (carrying the
// existing record's key so commit can target it) plus the field-level diff
// against the stored record.
type Change struct {
	Record Record         `json:"record"`
	Diff   jsondiff.Patch `json:"diff,omitempty"`
}

// Bucket partitions one schema's candidate records against existing data.
type Bucket struct {
	Create   []Record `json:"Create"`
	Update   []Change `json:"Update"`
	NoChange []Record `json:"NoChange"`
}

// Summary is the reconciliation plan for one import. Every registry schema
// has an entry, empty buckets included, so consumers never need to probe for
// missing keys.
type Summary struct {
	Entities map[string]*Bucket `json:"entities"`
}

// stagedView layers candidates built earlier in the same batch over the
// existing snapshot, so later rows can reference records the import itself
// introduces.
type stagedView struct {
	existing DataView
	staged   map[string]*candidateSet
}

func (v stagedView) Records(schemaName string) []Record {
	out := v.existing.Records(schemaName)
	if set, ok := v.staged[schemaName]; ok {
		out = append(append([]Record{}, out...), set.records()...)
	}
	return out
}

type candidateSet struct {
	byKey map[string]Record
	order []string
}

func newCandidateSet() *candidateSet {
	return &candidateSet{byKey: map[string]Record{}}
}

func (c *candidateSet) get(key string) Record {
	if rec, ok := c.byKey[key]; ok {
		return rec
	}
	rec := Record{}
	c.byKey[key] = rec
	c.order = append(c.order, key)
	return rec
}

func (c *candidateSet) records() []Record {
	out := make([]Record, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.byKey[k])
	}
	return out
}

// BuildSummary turns validated rows into per-schema Create/Update/NoChange
// buckets. Rows with validation errors are excluded: they must never reach
// the commit stage. Relationship lookups see existing data plus candidates
// staged earlier in the same pass; lookups that cannot be satisfied leave an
// explicit pending reference to be back-filled once the referenced record
// gains an id.
//
// Mismatch findings discovered during relationship resolution are appended
// to the owning row's validation, mirroring how header findings attach.
func BuildSummary(reg *schema.Registry, result *ValidationResult, existing DataView) *Summary {
	staged := map[string]*candidateSet{}
	view := stagedView{existing: existing, staged: staged}

	for i := range result.Rows {
		row := &result.Rows[i]
		if row.Validation.Blocked() {
			continue
		}
		for _, schemaName := range reg.Names() {
			s, _ := reg.Get(schemaName)
			rowMappings := mappingsForSchema(result, *row, schemaName)
			if len(rowMappings) == 0 {
				continue
			}

			key, ok := naturalKey(*row, s, rowMappings)
			if !ok {
				row.Validation.Add(SeverityWarning, s.DisplayAttribute(), fmt.Sprintf(
					"Row provides %s values but no %s; no %s record can be formed.",
					schemaName, s.DisplayAttribute(), schemaName,
				))
				continue
			}

			set, exists := staged[schemaName]
			if !exists {
				set = newCandidateSet()
				staged[schemaName] = set
			}
			rec := set.get(key)

			for _, m := range rowMappings {
				raw, _ := row.Value(m.RawHeader)
				if m.Attribute.IsRelationship() {
					refs, notices := ResolveRelationship(view, m, raw)
					for _, n := range notices {
						addUnique(&row.Validation, n.Severity, Message{Attribute: n.Attribute, Error: n.Text})
					}
					applyReferences(rec, m, refs, relationshipValueType(m) == "name")
					continue
				}
				val, msg := Coerce(m.Attribute, raw)
				if msg != nil || val.IsEmpty() {
					continue
				}
				rec[m.Attribute.Name] = val.Interface()
			}
		}
	}

	summary := &Summary{Entities: map[string]*Bucket{}}
	for _, schemaName := range reg.Names() {
		s, _ := reg.Get(schemaName)
		bucket := &Bucket{Create: []Record{}, Update: []Change{}, NoChange: []Record{}}
		summary.Entities[schemaName] = bucket

		set, ok := staged[schemaName]
		if !ok {
			continue
		}
		for _, key := range set.order {
			classify(bucket, s, set.byKey[key], key, existing.Records(schemaName))
		}
	}
	return summary
}

// mappingsForSchema returns the row's mappings scoped to one schema, in
// header resolution order, considering only headers with values. System
// attributes (identifiers, audit fields) are never populated from cells;
// without this an ambiguous header like wave_id would write raw display text
// into the wave candidate's key attribute.
func mappingsForSchema(result *ValidationResult, row Row, schemaName string) []Mapping {
	var out []Mapping
	for _, h := range result.headerOrder {
		if _, ok := row.Value(h); !ok {
			continue
		}
		for _, m := range result.Mappings[h] {
			if m.SchemaName == schemaName && !m.Attribute.System {
				out = append(out, m)
			}
		}
	}
	return out
}

// naturalKey extracts the grouping key for the schema: the raw value under
// the schema's display attribute.
func naturalKey(row Row, s schema.Schema, rowMappings []Mapping) (string, bool) {
	for _, m := range rowMappings {
		if m.Attribute.Name != s.DisplayAttribute() {
			continue
		}
		if raw, ok := row.Value(m.RawHeader); ok {
			return raw, true
		}
	}
	return "", false
}

// classify diffs one candidate against the existing records and appends it
// to the right bucket. The lookup key is the schema's display attribute,
// matched case-sensitively.
func classify(bucket *Bucket, s schema.Schema, candidate Record, key string, existing []Record) {
	match, found := findByDisplay(existing, s.DisplayAttribute(), key)
	if !found {
		bucket.Create = append(bucket.Create, candidate)
		return
	}

	// carry the stored identifier so commit can address the record
	if id, ok := match[s.KeyAttribute()]; ok {
		candidate[s.KeyAttribute()] = id
	}

	cleaned := RemoveNullKeys(candidate)
	changed := false
	before := Record{}
	after := Record{}
	for k, v := range cleaned {
		if isShadowKey(k) {
			continue
		}
		if !valuesEqual(v, match[k]) {
			changed = true
		}
		before[k] = match[k]
		after[k] = v
	}

	if !changed {
		bucket.NoChange = append(bucket.NoChange, candidate)
		return
	}
	patch, err := jsondiff.Compare(before, after)
	if err != nil {
		patch = nil
	}
	bucket.Update = append(bucket.Update, Change{Record: candidate, Diff: patch})
}

func isShadowKey(k string) bool {
	return len(k) > 2 && k[0] == '_' && k[1] == '_'
}

// valuesEqual compares after JSON normalization so typed slices and structs
// compare equal to their decoded counterparts.
func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(normalizeJSON(a), normalizeJSON(b))
}

func normalizeJSON(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

// PropagateRelatedIDs back-fills pending relationship references after
// newItem (a record of newItemSchema) has been assigned its identifier:
// every Create or Update candidate whose shadow display text names newItem
// has its placeholder replaced with the real id. Unknown schema names make
// the call a no-op. Callers walk schemas in dependency order so parents gain
// ids before their dependents are committed.
func PropagateRelatedIDs(reg *schema.Registry, summary *Summary, newItemSchema string, newItem Record) {
	parent, ok := reg.Get(newItemSchema)
	if !ok || summary == nil {
		return
	}
	parentName := stringValue(newItem[parent.DisplayAttribute()])
	parentID := stringValue(newItem[parent.KeyAttribute()])
	if parentName == "" || parentID == "" {
		return
	}

	for _, childName := range reg.Names() {
		child, _ := reg.Get(childName)
		relAttrs := relationshipsTo(child, newItemSchema)
		if len(relAttrs) == 0 {
			continue
		}
		bucket := summary.Entities[childName]
		if bucket == nil {
			continue
		}
		for _, rec := range bucket.Create {
			backfill(rec, relAttrs, parentName, parentID)
		}
		for _, ch := range bucket.Update {
			backfill(ch.Record, relAttrs, parentName, parentID)
		}
	}
}

func relationshipsTo(s schema.Schema, target string) []schema.Attribute {
	var out []schema.Attribute
	for _, a := range s.Attributes {
		if a.IsRelationship() && a.RelEntity == target {
			out = append(out, a)
		}
	}
	return out
}

// backfill replaces "tbc" placeholders whose shadow name matches the parent.
func backfill(rec Record, relAttrs []schema.Attribute, parentName, parentID string) {
	for _, attr := range relAttrs {
		shadow, hasShadow := rec[shadowKey(attr.Name)]
		if !hasShadow {
			continue
		}
		switch value := rec[attr.Name].(type) {
		case string:
			if value == PendingPlaceholder && stringValue(shadow) == parentName {
				rec[attr.Name] = parentID
			}
		case []string:
			names := stringSlice(shadow)
			for i := range value {
				if value[i] == PendingPlaceholder && i < len(names) && names[i] == parentName {
					value[i] = parentID
				}
			}
		case []any:
			names := stringSlice(shadow)
			for i := range value {
				if sv, ok := value[i].(string); ok && sv == PendingPlaceholder && i < len(names) && names[i] == parentName {
					value[i] = parentID
				}
			}
		}
	}
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, len(vv))
		for i, e := range vv {
			out[i] = stringValue(e)
		}
		return out
	default:
		return nil
	}
}
