package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/goldenagents/gafed/internal/aql"
	"github.com/goldenagents/gafed/internal/harness"
	"github.com/goldenagents/gafed/internal/metrics"
	"github.com/goldenagents/gafed/internal/store"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Filter  string // scenario filter (glob pattern)
	Metrics bool   // print the collected metrics after the run
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name         string   `json:"name"`
	Conversation string   `json:"conversation"`
	Pass         bool     `json:"pass"`
	Errors       []string `json:"errors,omitempty"`
}

// SimulateResult holds the overall simulation result.
type SimulateResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml|scenarios-dir>",
		Short: "Run federation scenarios",
		Long: `Run scenario files against simulated sources.

Each scenario decomposes a query over a federation, replays the scripted
source replies through the broker and checks the assertions on the
progress trace and the final result. When the config names a store, the
sessions and their progress are recorded in it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  gafed simulate ./scenarios
  gafed simulate ./scenarios --filter "join_*"
  gafed simulate ./scenarios/unreachable_source.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print the collected metrics")

	return cmd
}

func runSimulate(opts *SimulateOptions, target string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	files, err := findScenarioFiles(target, opts.Filter)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}

	reg := prometheus.NewRegistry()
	runOpts := []harness.Option{
		harness.WithLogger(opts.Logger(cmd)),
		harness.WithMetrics(metrics.New(opts.Settings.Metrics.Namespace, reg)),
	}
	if path := opts.Settings.Store.Path; path != "" {
		st, err := store.Open(path)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open store", err)
		}
		defer st.Close()
		formatter.VerboseLog("Recording sessions in %s", path)
		runOpts = append(runOpts, harness.WithStore(st), harness.WithIDGenerator(aql.UUIDv7Generator{}))
	}

	result := SimulateResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		sr := runScenarioFile(file, runOpts, formatter)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		writeSimulateText(formatter.Writer, result)
	}

	if opts.Metrics {
		if err := writeMetrics(formatter.GetErrWriter(), reg); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to write metrics", err)
		}
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func runScenarioFile(file string, runOpts []harness.Option, formatter *OutputFormatter) ScenarioResult {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{Name: name, Errors: []string{err.Error()}}
	}
	name = scenario.Name
	formatter.VerboseLog("Running scenario %s", name)

	res, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return ScenarioResult{Name: name, Errors: []string{err.Error()}}
	}
	return ScenarioResult{
		Name:         name,
		Conversation: res.Conversation,
		Pass:         res.Pass,
		Errors:       res.Errors,
	}
}

// findScenarioFiles returns target itself when it is a file, otherwise the
// YAML files in the directory matching filter, sorted.
func findScenarioFiles(target, filter string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("scenario path not found: %s", target)
	}
	if !info.IsDir() {
		return []string{target}, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		ext := filepath.Ext(name)
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(name, ext))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}
		files = append(files, filepath.Join(target, name))
	}
	sort.Strings(files)
	return files, nil
}

func writeSimulateText(w io.Writer, result SimulateResult) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, s := range result.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}

// writeMetrics writes every gathered family in the text exposition format.
func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
