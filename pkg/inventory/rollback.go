package inventory

import "fmt"

// Rollback undoes an applied run: created records are removed and updated
// records restored from their before-images. Schemas are walked in reverse
// dependency order so dependents disappear before the records they point
// at. Returns how many records were removed and restored. The caller is
// responsible for calling Save afterwards.
func (s *Store) Rollback(m *Manifest) (removed, restored int, err error) {
	if m.SchemaVersion != manifestSchemaVersion {
		return 0, 0, fmt.Errorf("unsupported manifest schema_version %d", m.SchemaVersion)
	}

	order := s.reg.DependencyOrder()
	for i := len(order) - 1; i >= 0; i-- {
		schemaName := order[i]
		sch, _ := s.reg.Get(schemaName)
		keyAttr := sch.KeyAttribute()

		for _, cr := range m.Created {
			if cr.Schema != schemaName {
				continue
			}
			idx, found := s.indexByKey(schemaName, keyAttr, cr.ID)
			if !found {
				if s.log != nil {
					s.log.Warnf("rollback: created %s %s already absent", schemaName, cr.ID)
				}
				continue
			}
			s.data[schemaName] = append(s.data[schemaName][:idx], s.data[schemaName][idx+1:]...)
			removed++
		}

		for _, up := range m.Updated {
			if up.Schema != schemaName {
				continue
			}
			idx, found := s.indexByKey(schemaName, keyAttr, up.ID)
			if !found {
				return removed, restored, fmt.Errorf("rollback: updated %s %s not found in snapshot", schemaName, up.ID)
			}
			s.data[schemaName][idx] = up.Before.Clone()
			restored++
		}
	}
	return removed, restored, nil
}
