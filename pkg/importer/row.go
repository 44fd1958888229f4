// Package importer is the spreadsheet import reconciliation engine: it maps
// loosely-typed tabular rows onto entity schemas, validates and coerces cell
// values, resolves relationship references against existing inventory, and
// classifies every candidate record as Create, Update or NoChange.
//
// The engine is pure, synchronous and in-memory. Re-running the whole
// pipeline after every edit is the intended consistency strategy; no state
// survives between invocations.
package importer

import "encoding/json"

// Severity of a validation message. Errors block the row from being applied;
// warnings and informational notes do not.
type Severity string

const (
	SeverityError         Severity = "error"
	SeverityWarning       Severity = "warning"
	SeverityInformational Severity = "informational"
)

// Message is one row-scoped validation finding.
type Message struct {
	Attribute string `json:"attribute"`
	Error     string `json:"error"`
}

// Validation accumulates findings for a single row.
type Validation struct {
	Errors        []Message `json:"errors,omitempty"`
	Warnings      []Message `json:"warnings,omitempty"`
	Informational []Message `json:"informational,omitempty"`
}

// Add files a message under its severity.
func (v *Validation) Add(sev Severity, attribute, text string) {
	m := Message{Attribute: attribute, Error: text}
	switch sev {
	case SeverityError:
		v.Errors = append(v.Errors, m)
	case SeverityWarning:
		v.Warnings = append(v.Warnings, m)
	default:
		v.Informational = append(v.Informational, m)
	}
}

// Blocked reports whether the row must be excluded from commit.
func (v Validation) Blocked() bool {
	return len(v.Errors) > 0
}

// Row is one parsed spreadsheet line: raw header text to raw cell value.
// Index is the zero-based position assigned at ingestion and never changes.
// Cells are never mutated after parse; all derived state lives elsewhere.
type Row struct {
	Index      int
	Cells      map[string]string
	Validation Validation
}

// Value returns the trimmed-nothing raw cell under header, and whether the
// header is present with a non-empty value.
func (r Row) Value(header string) (string, bool) {
	v, ok := r.Cells[header]
	return v, ok && v != ""
}

// MarshalJSON flattens the row into the wire shape consumed by preview
// tables: every cell at top level plus __import_row and __validation.
func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Cells)+2)
	for k, v := range r.Cells {
		out[k] = v
	}
	out["__import_row"] = r.Index
	out["__validation"] = r.Validation
	return json.Marshal(out)
}

// Record is a loosely-typed entity record, either an existing inventory row
// or an import candidate under construction.
type Record map[string]any

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RemoveNullKeys returns a copy of rec without keys holding nil or "".
// Applying it twice yields the same result as applying it once.
func RemoveNullKeys(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// DataView is a read-only window over per-schema record sets: the existing
// inventory snapshot, optionally layered with records staged earlier in the
// same import batch.
type DataView interface {
	Records(schemaName string) []Record
}

// MapView adapts a plain map to a DataView.
type MapView map[string][]Record

func (m MapView) Records(schemaName string) []Record { return m[schemaName] }
