// Package fedspec loads federation descriptions written in CUE.
//
// A description names the sources of a federation with the expertise they
// advertise, the owl:sameAs links between their entities, and optionally a
// detailed linkset:
//
//	federation: {
//		policy: "most-versatile"
//		source: books: concept: {
//			"ga:Book": {count: 4, class: true, combinations: "ga:title": 3}
//			"ga:title": count: 3
//		}
//		sameAs: [["http://books.example/a1", "http://people.example/p1"]]
//	}
//
// The description is validated against an embedded schema before it is
// compiled.
package fedspec

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/goldenagents/gafed/internal/decompose"
	"github.com/goldenagents/gafed/internal/expertise"
	"github.com/goldenagents/gafed/internal/linkset"
	"github.com/goldenagents/gafed/internal/rdf"
)

//go:embed schema.cue
var schemaCUE string

// Source is one member of a federation.
type Source struct {
	Name      string
	Endpoint  string
	Expertise *expertise.Expertise
}

// Spec is a compiled federation description.
type Spec struct {
	Name    string
	Policy  decompose.Policy
	Sources []Source
	SameAs  [][2]string
	Linkset linkset.Table
}

// LoadError is a problem in a federation description, with its position
// when known.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads and compiles a single CUE file.
func LoadFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read federation: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	return Compile(v)
}

// LoadDir loads the CUE package in dir and compiles it.
func LoadDir(dir string) (*Spec, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Field: "load", Message: "no CUE instances loaded"}
	}
	if err := instances[0].Err; err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(cuecontext.New().BuildInstance(instances[0]))
}

// Compile turns the "federation" field of v into a Spec.
func Compile(v cue.Value) (*Spec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	fv := v.LookupPath(cue.ParsePath("federation"))
	if !fv.Exists() {
		return nil, &LoadError{Field: "federation", Message: "federation is required", Pos: v.Pos()}
	}

	schema := v.Context().CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile federation schema: %w", err)
	}
	fv = fv.Unify(schema.LookupPath(cue.ParsePath("#Federation")))
	if err := fv.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &Spec{Policy: decompose.PolicyMostConnective}
	if nv := fv.LookupPath(cue.ParsePath("name")); nv.Exists() {
		spec.Name, _ = nv.String()
	}
	if pv := fv.LookupPath(cue.ParsePath("policy")); pv.Exists() {
		p, _ := pv.String()
		spec.Policy = decompose.Policy(p)
	}

	var err error
	if spec.Sources, err = parseSources(fv.LookupPath(cue.ParsePath("source"))); err != nil {
		return nil, err
	}
	if len(spec.Sources) == 0 {
		return nil, &LoadError{Field: "source", Message: "at least one source is required", Pos: fv.Pos()}
	}
	if sv := fv.LookupPath(cue.ParsePath("sameAs")); sv.Exists() {
		var pairs [][]string
		if err := sv.Decode(&pairs); err != nil {
			return nil, formatCUEError(err)
		}
		for _, p := range pairs {
			spec.SameAs = append(spec.SameAs, [2]string{p[0], p[1]})
		}
	}
	if lv := fv.LookupPath(cue.ParsePath("linkset")); lv.Exists() {
		if err := lv.Decode(&spec.Linkset.Entries); err != nil {
			return nil, formatCUEError(err)
		}
	}
	return spec, nil
}

func parseSources(v cue.Value) ([]Source, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []Source
	for iter.Next() {
		name := iter.Selector().Unquoted()
		src := Source{Name: name}
		if ev := iter.Value().LookupPath(cue.ParsePath("endpoint")); ev.Exists() {
			src.Endpoint, _ = ev.String()
		}
		src.Expertise, err = parseExpertise(iter.Value().LookupPath(cue.ParsePath("concept")))
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func parseExpertise(v cue.Value) (*expertise.Expertise, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	e := expertise.New()
	for iter.Next() {
		cv := iter.Value()
		info := expertise.ConceptInfo{Label: iter.Selector().Unquoted()}

		count, err := cv.LookupPath(cue.ParsePath("count")).Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		info.Count = int(count)
		if bv := cv.LookupPath(cue.ParsePath("class")); bv.Exists() {
			if info.IsClass, err = bv.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if mv := cv.LookupPath(cue.ParsePath("combinations")); mv.Exists() {
			if err := mv.Decode(&info.Combinations); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if lv := cv.LookupPath(cue.ParsePath("entities")); lv.Exists() {
			if err := lv.Decode(&info.Entities); err != nil {
				return nil, formatCUEError(err)
			}
		}
		e.Add(info)
	}
	return e, nil
}

// Federation is a loaded federation ready for decomposition.
type Federation struct {
	decompose.Federation
	// Links groups the identifiers of shared entities.
	Links *linkset.Links
	// SameAs holds the owl:sameAs statements merged into every session.
	SameAs    *rdf.Graph
	Endpoints map[string]string
}

// Build grows the expertise graph of the federation, adding the sources in
// name order.
func (s *Spec) Build(opts ...expertise.BuilderOption) (*Federation, error) {
	sameAs := rdf.NewGraph()
	for _, pair := range s.SameAs {
		t := rdf.NewTriple(rdf.IRI(pair[0]), linkset.OWLSameAs, rdf.IRI(pair[1]))
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("sameAs %s = %s: %w", pair[0], pair[1], err)
		}
		sameAs.Add(t)
	}
	links := linkset.NewLinks()
	links.AddGraph(sameAs)

	b := expertise.NewBuilder(append([]expertise.BuilderOption{expertise.WithLinks(links)}, opts...)...)
	endpoints := make(map[string]string, len(s.Sources))
	for _, src := range s.Sources {
		if err := b.AddSource(src.Name, src.Expertise); err != nil {
			return nil, err
		}
		if src.Endpoint != "" {
			endpoints[src.Name] = src.Endpoint
		}
	}
	return &Federation{
		Federation: decompose.Federation{
			Experts: b.Experts(),
			Graph:   b.Graph(),
			Linkset: s.Linkset,
			Policy:  s.Policy,
		},
		Links:     links,
		SameAs:    sameAs,
		Endpoints: endpoints,
	}, nil
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &LoadError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return &LoadError{Field: "cue", Message: first.Error()}
}
