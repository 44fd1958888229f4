package importer

import (
	"sort"

	"github.com/openmigrate/mfdata/pkg/schema"
)

// ValidationResult is the outcome of the validation pass: the rows with
// their accumulated findings, the de-duplicated schemas the import touches,
// and the per-header mappings the summary pass reuses.
type ValidationResult struct {
	SchemaNames []string `json:"schema_names"`
	Rows        []Row    `json:"data"`

	Mappings map[string][]Mapping `json:"-"`

	headerOrder []string
}

// ValidateRows resolves every distinct header once, then coerces each cell
// against its mapped attribute definitions, accumulating errors, warnings
// and informational notes on the owning row. Malformed headers or cells
// never abort the pass; findings degrade to row-scoped messages.
//
// SchemaNames lists, in registry order, the schemas reached by at least one
// unambiguous mapping with data behind it. Schemas reached only through
// ambiguous headers are not counted.
func ValidateRows(reg *schema.Registry, rows []Row) ValidationResult {
	headers := distinctHeaders(rows)

	mappings := make(map[string][]Mapping, len(headers))
	notices := make(map[string][]Notice, len(headers))
	for _, h := range headers {
		m, n := ResolveHeader(reg, h)
		mappings[h] = m
		notices[h] = n
	}

	touched := map[string]bool{}
	for i := range rows {
		row := &rows[i]
		for _, h := range headers {
			raw, hasValue := row.Value(h)
			if !hasValue {
				continue
			}
			for _, n := range notices[h] {
				addUnique(&row.Validation, n.Severity, Message{Attribute: n.Attribute, Error: n.Text})
			}
			unambiguous := len(mappings[h]) == 1
			for _, m := range mappings[h] {
				if unambiguous {
					touched[m.SchemaName] = true
				}
				if _, msg := Coerce(m.Attribute, raw); msg != nil {
					addUnique(&row.Validation, SeverityError, *msg)
				}
			}
		}
	}

	var schemaNames []string
	for _, name := range reg.Names() {
		if touched[name] {
			schemaNames = append(schemaNames, name)
		}
	}

	return ValidationResult{
		SchemaNames: schemaNames,
		Rows:        rows,
		Mappings:    mappings,
		headerOrder: headers,
	}
}

// distinctHeaders returns every header present in any row, in first
// appearance order so notices and candidate building stay deterministic.
func distinctHeaders(rows []Row) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range rows {
		for _, h := range sortedKeys(r.Cells) {
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	// map iteration is random; sort for deterministic notice order
	sort.Strings(out)
	return out
}

// addUnique appends msg unless an identical message is already recorded at
// that severity. Ambiguous headers map to several schemas and would
// otherwise report the same coercion failure once per schema.
func addUnique(v *Validation, sev Severity, msg Message) {
	var bucket []Message
	switch sev {
	case SeverityError:
		bucket = v.Errors
	case SeverityWarning:
		bucket = v.Warnings
	default:
		bucket = v.Informational
	}
	for _, m := range bucket {
		if m == msg {
			return
		}
	}
	v.Add(sev, msg.Attribute, msg.Error)
}
