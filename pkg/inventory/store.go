// Package inventory is the local snapshot of migration entity records the
// import engine reconciles against: one JSON array per schema, read at open,
// written back after an applied run.
package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/openmigrate/mfdata/pkg/importer"
	"github.com/openmigrate/mfdata/pkg/schema"
)

type Store struct {
	dir string
	reg *schema.Registry
	log *logrus.Logger

	data map[string][]importer.Record
}

// Open loads the snapshot for every registry schema. Missing files mean an
// empty record set, not an error.
func Open(dir string, reg *schema.Registry, log *logrus.Logger) (*Store, error) {
	s := &Store{dir: dir, reg: reg, log: log, data: map[string][]importer.Record{}}
	for _, name := range reg.Names() {
		path := s.path(name)
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var records []importer.Record
		dec := json.NewDecoder(bytes.NewReader(b))
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		s.data[name] = records
	}
	return s, nil
}

// Records implements importer.DataView.
func (s *Store) Records(schemaName string) []importer.Record {
	return s.data[schemaName]
}

// Save writes every schema's record set back to disk.
func (s *Store) Save() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.dir, err)
	}
	for _, name := range s.reg.Names() {
		records, ok := s.data[name]
		if !ok {
			continue
		}
		b, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		if err := os.WriteFile(s.path(name), append(b, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", s.path(name), err)
		}
	}
	return nil
}

func (s *Store) path(schemaName string) string {
	return filepath.Join(s.dir, schemaName+".json")
}
