package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goldenagents/gafed/internal/expertise"
	"github.com/goldenagents/gafed/internal/fedspec"
)

// ExpertiseOptions holds flags for the expertise command.
type ExpertiseOptions struct {
	*RootOptions
	Concept string // concept whose best sources are reported
}

// SourceExpertise is the advertised expertise of one source.
type SourceExpertise struct {
	Source   string                   `json:"source"`
	Concepts []expertise.ConceptModel `json:"concepts"`
}

// ConceptChoice names the source each selector picks for a concept.
type ConceptChoice struct {
	Concept       string `json:"concept"`
	MaxCPT        string `json:"max_cpt,omitempty"`
	MaxVST        string `json:"max_vst,omitempty"`
	LeastSPT      string `json:"least_spt,omitempty"`
	HighestCount  string `json:"highest_count,omitempty"`
	CapableAgents int    `json:"capable"`
}

// ExpertiseResult describes a federation. Identities groups the entity URIs
// linked by owl:sameAs.
type ExpertiseResult struct {
	Sources    []SourceExpertise `json:"sources"`
	Nodes      int               `json:"nodes"`
	Edges      []expertise.Edge  `json:"edges"`
	Identities [][]string        `json:"identities,omitempty"`
	Choice     *ConceptChoice    `json:"choice,omitempty"`
}

// NewExpertiseCommand creates the expertise command.
func NewExpertiseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExpertiseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "expertise <federation>",
		Short: "Show the expertise of a federation",
		Long: `Print the expertise table of every source and the statistics of the
expertise graph grown from them. With --concept, also report which source
each selection policy would pick for that concept.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpertise(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Concept, "concept", "", "report the selected sources for a concept, e.g. ga:Book")

	return cmd
}

func runExpertise(opts *ExpertiseOptions, fedPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	fed, err := loadFederation(formatter, fedPath, opts.Logger(cmd))
	if err != nil {
		return err
	}

	result := describeFederation(fed)
	if opts.Concept != "" {
		result.Choice = chooseFor(fed.Graph, opts.Concept)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, src := range fed.Sources() {
		fmt.Fprintf(w, "%s:\n", src)
		fmt.Fprintln(w, fed.Experts[src].Table())
	}
	fmt.Fprintln(w, fed.Graph.Summary())
	fmt.Fprintln(w)
	fmt.Fprint(w, fed.Graph.Table())
	if len(result.Identities) > 0 {
		fmt.Fprintf(w, "\nLinked identities (%d):\n", len(result.Identities))
		for _, group := range result.Identities {
			fmt.Fprintf(w, "  %s\n", strings.Join(group, " = "))
		}
	}

	if c := result.Choice; c != nil {
		fmt.Fprintf(w, "\n%s (%d capable source(s)):\n", c.Concept, c.CapableAgents)
		fmt.Fprintf(w, "  max CPT:       %s\n", orNone(c.MaxCPT))
		fmt.Fprintf(w, "  max VST:       %s\n", orNone(c.MaxVST))
		fmt.Fprintf(w, "  least SPT:     %s\n", orNone(c.LeastSPT))
		fmt.Fprintf(w, "  highest count: %s\n", orNone(c.HighestCount))
	}
	return nil
}

func describeFederation(fed *fedspec.Federation) *ExpertiseResult {
	nodes, _ := fed.Graph.Len()
	result := &ExpertiseResult{Nodes: nodes, Edges: fed.Graph.Edges()}
	if fed.Links != nil {
		result.Identities = fed.Links.Groups()
	}
	for _, src := range fed.Sources() {
		result.Sources = append(result.Sources, SourceExpertise{
			Source:   src,
			Concepts: fed.Experts[src].NetModel(),
		})
	}
	return result
}

func chooseFor(g *expertise.Graph, concept string) *ConceptChoice {
	c := &ConceptChoice{Concept: concept, CapableAgents: len(g.Capables(concept))}
	pick := func(n *expertise.Node, ok bool) string {
		if !ok {
			return ""
		}
		return n.Source()
	}
	c.MaxCPT = pick(g.NodeOfMaxCPT(concept))
	c.MaxVST = pick(g.NodeOfMaxVST(concept))
	c.LeastSPT = pick(g.NodeOfLeastSPT(concept))
	c.HighestCount = pick(g.NodeOfHIP(concept))
	return c
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
