package expertise

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookExpertise() *Expertise {
	return New(
		ConceptInfo{
			Label:        "ga:Book",
			Count:        4,
			IsClass:      true,
			Combinations: map[string]int{"ga:title": 3},
			Entities:     []string{"b1", "b2", "b3", "b4"},
		},
		ConceptInfo{
			Label:        "ga:title",
			Count:        3,
			Combinations: map[string]int{"ga:Book": 3},
			Entities:     []string{"b1", "b2", "b3"},
		},
	)
}

func TestExpertise_Lookups(t *testing.T) {
	e := bookExpertise()

	assert.Equal(t, []string{"ga:Book", "ga:title"}, e.Capabilities())
	assert.True(t, e.IsCapable("ga:Book"))
	assert.False(t, e.IsCapable("ga:Author"))
	assert.Equal(t, 4, e.Count("ga:Book"))
	assert.Equal(t, 0, e.Count("ga:Author"))
	assert.Equal(t, "Summary of expertise is ga:Book, ga:title", e.Summary())

	c, ok := e.Concept("ga:title")
	require.True(t, ok)
	assert.Equal(t, 3, c.Combination("ga:Book"))
	_, ok = e.Concept("ga:Author")
	assert.False(t, ok)
}

func TestExpertise_AddReplacesInPlace(t *testing.T) {
	e := bookExpertise()
	e.Add(ConceptInfo{Label: "ga:Book", Count: 10})
	assert.Equal(t, []string{"ga:Book", "ga:title"}, e.Capabilities())
	assert.Equal(t, 10, e.Count("ga:Book"))
}

func TestExpertise_ConceptIsACopy(t *testing.T) {
	e := bookExpertise()
	c, _ := e.Concept("ga:Book")
	c.Combinations["ga:title"] = 99
	c.Entities[0] = "changed"

	again, _ := e.Concept("ga:Book")
	assert.Equal(t, 3, again.Combinations["ga:title"])
	assert.Equal(t, "b1", again.Entities[0])
}

func TestExpertise_CombinationRatio(t *testing.T) {
	e := bookExpertise()

	tests := []struct {
		name        string
		base, other string
		want        float64
	}{
		{"partial", "ga:Book", "ga:title", 0.75},
		{"full", "ga:title", "ga:Book", 1},
		{"self", "ga:Book", "ga:Book", 1},
		{"unknown other", "ga:Book", "ga:Author", 0},
		{"unknown base", "ga:Author", "ga:Book", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, e.CombinationRatio(tt.base, tt.other), 1e-9)
		})
	}
}

func TestConceptInfo_RatioIsBounded(t *testing.T) {
	infos := []ConceptInfo{
		{Label: "x", Count: 0, Combinations: map[string]int{"y": 5}},
		{Label: "x", Count: 2, Combinations: map[string]int{"y": 5}},
		{Label: "x", Count: 2, Combinations: map[string]int{"y": -1}},
		{Label: "x", Count: 3, Combinations: map[string]int{"y": 1}},
	}
	for _, c := range infos {
		for _, other := range []string{"x", "y", "z"} {
			r := c.Ratio(other)
			assert.GreaterOrEqual(t, r, 0.0)
			assert.LessOrEqual(t, r, 1.0)
		}
	}
	assert.Equal(t, 1.0, infos[0].Ratio("x"), "a concept always combines with itself")
	assert.Equal(t, 0.0, infos[0].Ratio("y"), "an empty concept combines with nothing else")
}

func TestExpertise_FromCapabilities(t *testing.T) {
	e := FromCapabilities("ga:Book", "ga:title")
	assert.True(t, e.IsCapable("ga:title"))
	assert.Equal(t, 0, e.Count("ga:title"))
	assert.Equal(t, 1.0, e.CombinationRatio("ga:Book", "ga:Book"))
	assert.Equal(t, 0.0, e.CombinationRatio("ga:Book", "ga:title"))
}

func TestExpertise_NetModelRoundTrip(t *testing.T) {
	e := bookExpertise()
	models := e.NetModel()
	require.Len(t, models, 2)

	book := models[0]
	assert.Equal(t, "ga:Book", book.Label)
	require.Len(t, book.Combinations, 2)
	assert.Equal(t, ConceptModel{Label: "ga:Book", Count: 4, IsClass: true}, book.Combinations[0])
	assert.Equal(t, ConceptModel{Label: "ga:title", Count: 3}, book.Combinations[1])

	back := FromNetModel(models)
	assert.Equal(t, e.Capabilities(), back.Capabilities())
	for _, base := range e.Capabilities() {
		for _, other := range e.Capabilities() {
			assert.InDelta(t, e.CombinationRatio(base, other), back.CombinationRatio(base, other), 1e-9)
		}
	}
}

func TestExpertise_Table(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "expertise_table", []byte(bookExpertise().Table()))
}
