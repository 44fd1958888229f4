package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openmigrate/mfdata/pkg/importer"
)

const manifestSchemaVersion = 1

// Manifest records everything an applied run changed, with before-images
// for updates, so the run can be rolled back.
type Manifest struct {
	SchemaVersion int       `json:"schema_version"`
	RunID         uuid.UUID `json:"run_id"`
	Source        string    `json:"source,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`

	Created   []CreatedRecord `json:"created"`
	Updated   []UpdatedRecord `json:"updated"`
	Unchanged int             `json:"unchanged"`
}

type CreatedRecord struct {
	Schema string `json:"schema"`
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
}

type UpdatedRecord struct {
	Schema string          `json:"schema"`
	ID     string          `json:"id"`
	Before importer.Record `json:"before"`
}

// Apply commits a reconciliation summary to the snapshot. Schemas are
// processed in dependency order; every created record is assigned a UUID
// which is immediately propagated into dependents still holding a pending
// placeholder, so children are persisted with real parent ids. The caller
// is responsible for calling Save afterwards.
func (s *Store) Apply(summary *importer.Summary, runID uuid.UUID, source string) (*Manifest, error) {
	m := &Manifest{
		SchemaVersion: manifestSchemaVersion,
		RunID:         runID,
		Source:        source,
		StartedAt:     time.Now().UTC(),
		Created:       []CreatedRecord{},
		Updated:       []UpdatedRecord{},
	}

	for _, schemaName := range s.reg.DependencyOrder() {
		bucket := summary.Entities[schemaName]
		if bucket == nil {
			continue
		}
		sch, _ := s.reg.Get(schemaName)
		keyAttr := sch.KeyAttribute()

		for _, rec := range bucket.Create {
			id := uuid.NewString()
			rec[keyAttr] = id
			importer.PropagateRelatedIDs(s.reg, summary, schemaName, rec)

			s.data[schemaName] = append(s.data[schemaName], s.persistable(schemaName, rec))
			m.Created = append(m.Created, CreatedRecord{
				Schema: schemaName,
				ID:     id,
				Name:   stringValue(rec[sch.DisplayAttribute()]),
			})
		}

		for _, ch := range bucket.Update {
			rec := ch.Record
			id := stringValue(rec[keyAttr])
			idx, found := s.indexByKey(schemaName, keyAttr, id)
			if !found {
				return nil, fmt.Errorf("update target %s %s=%s not found in snapshot", schemaName, keyAttr, id)
			}
			importer.PropagateRelatedIDs(s.reg, summary, schemaName, rec)

			before := s.data[schemaName][idx].Clone()
			merged := before.Clone()
			for k, v := range s.persistable(schemaName, rec) {
				merged[k] = v
			}
			s.data[schemaName][idx] = merged
			m.Updated = append(m.Updated, UpdatedRecord{Schema: schemaName, ID: id, Before: before})
		}

		m.Unchanged += len(bucket.NoChange)
	}

	m.FinishedAt = time.Now().UTC()
	return m, nil
}

// persistable strips shadow fields and drops relationship values that are
// still pending after propagation; a placeholder must never be persisted.
func (s *Store) persistable(schemaName string, rec importer.Record) importer.Record {
	out := importer.Record{}
	for k, v := range importer.RemoveNullKeys(rec) {
		if isShadow(k) {
			continue
		}
		switch vv := v.(type) {
		case string:
			if vv == importer.PendingPlaceholder {
				s.warnDropped(schemaName, k)
				continue
			}
			out[k] = vv
		case []string:
			kept := make([]string, 0, len(vv))
			for _, e := range vv {
				if e == importer.PendingPlaceholder {
					s.warnDropped(schemaName, k)
					continue
				}
				kept = append(kept, e)
			}
			if len(kept) > 0 {
				out[k] = kept
			}
		default:
			out[k] = v
		}
	}
	return out
}

func (s *Store) warnDropped(schemaName, attr string) {
	if s.log != nil {
		s.log.WithFields(map[string]any{
			"schema":    schemaName,
			"attribute": attr,
		}).Warn("dropping unresolved relationship reference")
	}
}

func (s *Store) indexByKey(schemaName, keyAttr, id string) (int, bool) {
	for i, rec := range s.data[schemaName] {
		if stringValue(rec[keyAttr]) == id {
			return i, true
		}
	}
	return 0, false
}

func isShadow(k string) bool {
	return len(k) > 2 && k[0] == '_' && k[1] == '_'
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
