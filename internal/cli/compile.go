package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/goldenagents/gafed/internal/aql"
	"github.com/goldenagents/gafed/internal/decompose"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // file receiving the SPARQL text
}

// CompilationResult is the compiled form of an AQL query.
type CompilationResult struct {
	AQL         string   `json:"aql"`
	Description string   `json:"description"`
	FocusVar    string   `json:"focus_var"`
	SPARQL      string   `json:"sparql"`
	Triples     []string `json:"triples"`
	// Unsplittable explains why the broker could not decompose the query.
	Unsplittable string `json:"unsplittable,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [aql.yaml]",
		Short: "Compile an AQL query to SPARQL",
		Long: `Replay the edit steps of an AQL file and print the resulting query
tree, its SPARQL translation and the triple patterns the broker would
decompose. Without an argument the sample query is compiled.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runCompile(opts, path, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the SPARQL text to a file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger(cmd)

	var (
		q   *aql.Query
		err error
	)
	if path == "" {
		formatter.VerboseLog("Compiling the sample query")
		q, err = aql.SampleQuery(aql.WithLogger(logger))
	} else {
		if _, statErr := os.Stat(path); statErr != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("AQL file not found: %s", path), nil)
		}
		var f *AQLFile
		if f, err = LoadAQLFile(path); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid AQL file", err)
		}
		formatter.VerboseLog("Replaying %d step(s) from %s", len(f.Steps), path)
		q, err = f.Build(aql.WithLogger(logger))
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidQuery, "query edit rejected", err)
	}

	tr, err := q.Translate()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidQuery, "query not translatable", err)
	}
	result := &CompilationResult{
		AQL:         q.String(),
		Description: q.Tree().Describe(q.Root()),
		FocusVar:    tr.FocusVar,
		SPARQL:      tr.SPARQL(),
		Triples:     []string{},
	}
	if qi, err := decompose.FromTranslation(tr); err != nil {
		result.Unsplittable = err.Error()
	} else {
		for _, t := range qi.Triples {
			result.Triples = append(result.Triples, t.String())
		}
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(result.SPARQL), 0644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %s\n", result.AQL)
	fmt.Fprintf(w, "  (%s)\n\n", result.Description)
	fmt.Fprintf(w, "Focus: %s\n\n", result.FocusVar)
	fmt.Fprintln(w, result.SPARQL)
	fmt.Fprintln(w)
	if result.Unsplittable != "" {
		fmt.Fprintf(w, "Not decomposable: %s\n", result.Unsplittable)
	} else {
		fmt.Fprintf(w, "Triple patterns (%d):\n", len(result.Triples))
		for _, t := range result.Triples {
			fmt.Fprintf(w, "  %s\n", t)
		}
	}
	if opts.Output != "" {
		fmt.Fprintf(w, "\nWrote SPARQL to %s\n", opts.Output)
	}
	return nil
}

// codeForDecomposition maps a decomposition error to a CLI error code.
func codeForDecomposition(err error) string {
	var de *decompose.DecompositionError
	if !errors.As(err, &de) {
		return ErrCodeGeneric
	}
	switch de.Code {
	case decompose.ErrCodeMissingExpert:
		return ErrCodeMissingExpert
	case decompose.ErrCodeBadQuery:
		return ErrCodeBadQuery
	default:
		return ErrCodeGeneric
	}
}
