package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/goldenagents/gafed/internal/aql"
	"github.com/goldenagents/gafed/internal/rdf"
)

// AQLFile is a query written as the sequence of edits a user would make in
// the query builder:
//
//	prefixes:
//	  ex: http://example.org/
//	steps:
//	  - intersect: {type: ga:Author}
//	  - mark: author
//	  - cross: {property: ga:authorOf, label: authorOf}
//	  - intersect: {type: ga:Book}
//	  - focus: author
//	  - cross: {property: ga:hasName, label: hasName}
//
// A mark names the current focus so that a later focus step can return to
// it.
type AQLFile struct {
	Prefixes map[string]string `yaml:"prefixes,omitempty"`
	Steps    []AQLStep         `yaml:"steps"`
}

// AQLStep is one edit. Exactly one field is set.
type AQLStep struct {
	Intersect *FeatureStep `yaml:"intersect,omitempty"`
	Cross     *CrossStep   `yaml:"cross,omitempty"`
	Union     bool         `yaml:"union,omitempty"`
	Exclude   bool         `yaml:"exclude,omitempty"`
	Delete    bool         `yaml:"delete,omitempty"`
	Mark      string       `yaml:"mark,omitempty"`
	Focus     string       `yaml:"focus,omitempty"`
}

// FeatureStep intersects one feature. Exactly one of Type, Resource and
// Literal is set.
type FeatureStep struct {
	Type     string `yaml:"type,omitempty"`
	Resource string `yaml:"resource,omitempty"`
	Literal  string `yaml:"literal,omitempty"`
	Label    string `yaml:"label,omitempty"`
}

// CrossStep crosses a property. Forward crossings run from the value to the
// focus.
type CrossStep struct {
	Property string `yaml:"property"`
	Label    string `yaml:"label,omitempty"`
	Forward  bool   `yaml:"forward,omitempty"`
}

func (s AQLStep) kinds() int {
	n := 0
	for _, set := range []bool{s.Intersect != nil, s.Cross != nil, s.Union, s.Exclude, s.Delete, s.Mark != "", s.Focus != ""} {
		if set {
			n++
		}
	}
	return n
}

// LoadAQLFile reads and decodes an AQL file. Unknown keys are rejected.
func LoadAQLFile(path string) (*AQLFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read AQL file: %w", err)
	}
	var f AQLFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(f.Steps) == 0 {
		return nil, errors.New("steps list is required and must be non-empty")
	}
	return &f, nil
}

// Build replays the steps on a fresh query.
func (f *AQLFile) Build(opts ...aql.QueryOption) (*aql.Query, error) {
	prefixes := rdf.DefaultPrefixes()
	for p, ns := range f.Prefixes {
		prefixes[p] = ns
	}
	q := aql.NewQuery(prefixes, opts...)
	marks := make(map[string]aql.ID)
	for i, step := range f.Steps {
		if err := applyStep(q, prefixes, marks, step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return q, nil
}

func applyStep(q *aql.Query, prefixes rdf.PrefixMap, marks map[string]aql.ID, step AQLStep) error {
	if step.kinds() != 1 {
		return errors.New("exactly one edit is required per step")
	}
	switch {
	case step.Intersect != nil:
		f, err := step.Intersect.feature(prefixes)
		if err != nil {
			return err
		}
		return q.Intersect(f)
	case step.Cross != nil:
		property, err := prefixes.ParseTerm(step.Cross.Property)
		if err != nil {
			return fmt.Errorf("cross property: %w", err)
		}
		return q.Cross(property, step.Cross.Label, step.Cross.Forward)
	case step.Union:
		return q.Union()
	case step.Exclude:
		return q.Exclude()
	case step.Delete:
		return q.Delete()
	case step.Mark != "":
		marks[step.Mark] = q.Focus()
		return nil
	default:
		id, ok := marks[step.Focus]
		if !ok {
			return fmt.Errorf("unknown mark %q", step.Focus)
		}
		return q.SetFocus(id)
	}
}

func (s *FeatureStep) feature(prefixes rdf.PrefixMap) (aql.Feature, error) {
	set := 0
	for _, v := range []string{s.Type, s.Resource, s.Literal} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return aql.Feature{}, errors.New("intersect needs exactly one of type, resource or literal")
	}
	switch {
	case s.Type != "":
		class, err := prefixes.ParseTerm(s.Type)
		if err != nil {
			return aql.Feature{}, fmt.Errorf("intersect type: %w", err)
		}
		return aql.TypeFeature(class, s.Label), nil
	case s.Resource != "":
		res, err := prefixes.ParseTerm(s.Resource)
		if err != nil {
			return aql.Feature{}, fmt.Errorf("intersect resource: %w", err)
		}
		return aql.ResourceFeature(res, s.Label), nil
	default:
		return aql.LiteralFeature(rdf.Literal(s.Literal)), nil
	}
}
