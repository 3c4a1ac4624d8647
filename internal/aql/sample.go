package aql

import "github.com/goldenagents/gafed/internal/rdf"

// SampleQuery builds the demonstration query used by the tooling:
//
//	authors that wrote a book that has a publisher, and that have a name
//
// The focus ends on the wildcard at the far end of hasName.
func SampleQuery(opts ...QueryOption) (*Query, error) {
	ga := func(local string) rdf.Term { return rdf.IRI(rdf.GANamespace + local) }

	q := NewQuery(rdf.DefaultPrefixes(), opts...)
	if err := q.Intersect(TypeFeature(ga("Author"), "")); err != nil {
		return nil, err
	}
	start := q.Focus()

	steps := []func() error{
		func() error { return q.Cross(ga("authorOf"), "authorOf", false) },
		func() error { return q.Intersect(TypeFeature(ga("Book"), "")) },
		func() error { return q.Cross(ga("hasPublished"), "hasPublished", false) },
		func() error { return q.SetFocus(start) },
		func() error { return q.Cross(ga("hasName"), "hasName", false) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return q, nil
}
