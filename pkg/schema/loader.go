package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadFile reads one schema definition from a JSON file. When the definition
// omits schema_name the file's base name is used.
func LoadFile(path string) (Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("read %s: %w", path, err)
	}
	var s Schema
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&s); err != nil {
		return Schema{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// LoadDir builds a registry from every *.json file in dir, in file name
// order. File name order is the registry order users see in ambiguity
// notices.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, e.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no schema files found in %s", dir)
	}
	sort.Strings(files)

	reg := &Registry{schemas: map[string]Schema{}}
	for _, name := range files {
		s, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if err := reg.Add(s); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
