package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goldenagents/gafed/internal/decompose"
)

// DecomposeOptions holds flags for the decompose command.
type DecomposeOptions struct {
	*RootOptions
	Strategy string   // overrides broker.strategy
	Sources  []string // restricts the federation
	AQL      bool     // the query file is an AQL file
}

// SubQuery is the part of a query sent to one source.
type SubQuery struct {
	Source    string   `json:"source"`
	Triples   []string `json:"triples"`
	Construct string   `json:"construct"`
}

// DecompositionResult is the plan printed by the decompose command.
type DecompositionResult struct {
	Strategy string     `json:"strategy"`
	QueryID  string     `json:"query_id"`
	Queries  []SubQuery `json:"queries"`
}

// NewDecomposeCommand creates the decompose command.
func NewDecomposeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecomposeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decompose <federation> <query.yaml>",
		Short: "Split a query over the sources of a federation",
		Long: `Decompose a query with one of the source selection strategies and
print the CONSTRUCT sub-query each selected source would receive.

The federation is a CUE file or a CUE package directory. The query is a
triple pattern inventory, or an AQL file with --aql.

Examples:
  gafed decompose federation.cue query.yaml
  gafed decompose federation.cue query.yaml --strategy expertise
  gafed decompose federation.cue authors.yaml --aql --sources books,people`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecompose(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Strategy, "strategy", "s", "", "decomposition strategy (capabilities|expertise|graph|linkset)")
	cmd.Flags().StringSliceVar(&opts.Sources, "sources", nil, "only consider these sources")
	cmd.Flags().BoolVar(&opts.AQL, "aql", false, "read the query as an AQL file")

	return cmd
}

func runDecompose(opts *DecomposeOptions, fedPath, queryPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger(cmd)

	strategy := opts.Settings.Strategy()
	if opts.Strategy != "" {
		s, err := decompose.ParseStrategy(opts.Strategy)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, err.Error(), nil)
		}
		strategy = s
	}

	fed, err := loadFederation(formatter, fedPath, logger)
	if err != nil {
		return err
	}
	qi, err := loadQuery(formatter, queryPath, opts.AQL)
	if err != nil {
		return err
	}

	d := decompose.New(decompose.WithLogger(logger))
	plan, err := d.Decompose(qi, strategy, fed.Federation.Restrict(opts.Sources))
	if err != nil {
		return formatter.Fail(ExitFailure, codeForDecomposition(err), "decomposition failed", err)
	}

	result := DecompositionResult{
		Strategy: string(plan.Strategy),
		QueryID:  plan.Inventory.ID(),
		Queries:  make([]SubQuery, 0, len(plan.Queries)),
	}
	for _, q := range plan.Queries {
		sub := SubQuery{Source: q.Owner, Construct: q.Construct()}
		for _, t := range q.Triples {
			sub.Triples = append(sub.Triples, t.String())
		}
		result.Queries = append(result.Queries, sub)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Decomposed over %d source(s) with strategy %s\n\n", len(result.Queries), result.Strategy)
	for _, q := range result.Queries {
		fmt.Fprintf(w, "%s (%d triple patterns):\n", q.Source, len(q.Triples))
		fmt.Fprintln(w, q.Construct)
	}
	return nil
}

// loadQuery reads a query file as an inventory or, with asAQL, as an AQL
// file compiled through its SPARQL translation.
func loadQuery(formatter *OutputFormatter, path string, asAQL bool) (*decompose.QueryInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("query file not found: %s", path), nil)
	}

	if asAQL {
		f, err := LoadAQLFile(path)
		if err != nil {
			return nil, formatter.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid AQL file", err)
		}
		q, err := f.Build()
		if err != nil {
			return nil, formatter.Fail(ExitCommandError, ErrCodeInvalidQuery, "query edit rejected", err)
		}
		tr, err := q.Translate()
		if err != nil {
			return nil, formatter.Fail(ExitCommandError, ErrCodeInvalidQuery, "query not translatable", err)
		}
		qi, err := decompose.FromTranslation(tr)
		if err != nil {
			return nil, formatter.Fail(ExitCommandError, codeForDecomposition(err), "query not decomposable", err)
		}
		return qi, nil
	}

	spec, err := loadInventory(path)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid query file", err)
	}
	qi, err := spec.Build()
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, codeForDecomposition(err), "query rejected", err)
	}
	return qi, nil
}

func loadInventory(path string) (decompose.InventorySpec, error) {
	var spec decompose.InventorySpec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("failed to read query file: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return spec, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return spec, nil
}

