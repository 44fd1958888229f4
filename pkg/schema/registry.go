package schema

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/go-playground/validator/v10"
)

// Registry is the ordered set of schemas for one import session. Iteration
// order is stable: it follows the order schemas were registered in, which
// callers observe in ambiguity notices and summary output.
type Registry struct {
	order   []string
	schemas map[string]Schema
}

var validate = validator.New()

// NewRegistry builds a registry, validating every definition. Duplicate
// schema names and duplicate attribute names within a schema are rejected.
func NewRegistry(schemas ...Schema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]Schema, len(schemas))}
	for _, s := range schemas {
		if err := r.Add(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers one schema definition.
func (r *Registry) Add(s Schema) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("schema %s: %w", s.Name, err)
	}
	if err := s.validateUniqueAttributes(); err != nil {
		return err
	}
	for _, a := range s.Attributes {
		if a.ValidationRegex == "" {
			continue
		}
		if _, err := regexp.Compile(a.ValidationRegex); err != nil {
			return fmt.Errorf("schema %s: attribute %s: invalid validation_regex: %w", s.Name, a.Name, err)
		}
	}
	if _, exists := r.schemas[s.Name]; exists {
		return fmt.Errorf("duplicate schema name %q", s.Name)
	}
	r.order = append(r.order, s.Name)
	r.schemas[s.Name] = s
	return nil
}

// Get returns the named schema.
func (r *Registry) Get(name string) (Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns schema names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Schemas returns definitions in registration order.
func (r *Registry) Schemas() []Schema {
	out := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.schemas[name])
	}
	return out
}

// AttributeNames returns every attribute name across all schemas, sorted and
// de-duplicated. Used for near-miss suggestions on unknown headers.
func (r *Registry) AttributeNames() []string {
	seen := map[string]struct{}{}
	for _, name := range r.order {
		for _, a := range r.schemas[name].Attributes {
			seen[a.Name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// DependencyOrder returns schema names sorted so that relationship targets
// come before the schemas referencing them (waves before applications before
// servers). Ties and cycles fall back to registration order, so the result is
// always a permutation of Names.
func (r *Registry) DependencyOrder() []string {
	indegree := make(map[string]int, len(r.order))
	dependents := make(map[string][]string, len(r.order))
	for _, name := range r.order {
		indegree[name] += 0
		for _, a := range r.schemas[name].Attributes {
			if !a.IsRelationship() {
				continue
			}
			target := a.RelEntity
			if target == "" || target == name {
				continue
			}
			if _, known := r.schemas[target]; !known {
				continue
			}
			indegree[name]++
			dependents[target] = append(dependents[target], name)
		}
	}

	var queue []string
	for _, name := range r.order {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	out := make([]string, 0, len(r.order))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		out = append(out, name)
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	// cycle leftovers keep registration order
	if len(out) < len(r.order) {
		emitted := make(map[string]struct{}, len(out))
		for _, n := range out {
			emitted[n] = struct{}{}
		}
		for _, n := range r.order {
			if _, ok := emitted[n]; !ok {
				out = append(out, n)
			}
		}
	}
	return out
}
