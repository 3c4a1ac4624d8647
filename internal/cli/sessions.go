package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goldenagents/gafed/internal/session"
	"github.com/goldenagents/gafed/internal/store"
)

// SessionsOptions holds flags for the sessions command.
type SessionsOptions struct {
	*RootOptions
	Database string // overrides store.path
}

// SessionSummary is one recorded session.
type SessionSummary struct {
	Conversation string   `json:"conversation"`
	QueryID      string   `json:"query_id"`
	Strategy     string   `json:"strategy"`
	Sources      []string `json:"sources"`
	State        string   `json:"state"`
	Complete     bool     `json:"complete"`
	Failed       []string `json:"failed,omitempty"`
	Rows         int      `json:"rows"`
	Size         int      `json:"size"`
}

// ProgressEvent is one event of a session trace.
type ProgressEvent struct {
	Seq        int64               `json:"seq"`
	Type       string              `json:"type"`
	Value      json.RawMessage     `json:"value,omitempty"`
	Finished   bool                `json:"finished"`
	Subresults []session.SubResult `json:"subresults,omitempty"`
}

// SessionTrace is a session with its progress events.
type SessionTrace struct {
	Session  SessionSummary  `json:"session"`
	Progress []ProgressEvent `json:"progress"`
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sessions [conversation]",
		Short: "Inspect recorded sessions",
		Long: `List the sessions recorded in the progress store, or print the
progress trace of one conversation.

Examples:
  gafed sessions --db ./gafed.db
  gafed sessions --db ./gafed.db 0192f0c4-5b6e-7c3d-9a1b-2c3d4e5f6a7b
  gafed sessions --config broker.toml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			conversation := ""
			if len(args) == 1 {
				conversation = args[0]
			}
			return runSessions(opts, conversation, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the progress store (defaults to store.path)")

	return cmd
}

func runSessions(opts *SessionsOptions, conversation string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	path := opts.Database
	if path == "" {
		path = opts.Settings.Store.Path
	}
	if path == "" {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "no store configured: pass --db or set store.path", nil)
	}
	st, err := store.Open(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open store", err)
	}
	defer st.Close()

	if conversation == "" {
		records, err := st.Sessions(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list sessions", err)
		}
		summaries := make([]SessionSummary, len(records))
		for i, r := range records {
			summaries[i] = summarize(r)
		}
		if formatter.Format == "json" {
			return formatter.Success(summaries)
		}
		writeSessionList(formatter.Writer, summaries)
		return nil
	}

	rec, ok, err := st.Session(ctx, conversation)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read session", err)
	}
	if !ok {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no session recorded for conversation %s", conversation), nil)
	}
	events, err := st.ProgressFor(ctx, conversation)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read progress", err)
	}

	trace := SessionTrace{Session: summarize(rec), Progress: make([]ProgressEvent, 0, len(events))}
	for _, e := range events {
		trace.Progress = append(trace.Progress, ProgressEvent{
			Seq:        e.Seq,
			Type:       e.Type.String(),
			Value:      e.Value,
			Finished:   e.Finished,
			Subresults: e.Subresults,
		})
	}
	if formatter.Format == "json" {
		return formatter.Success(trace)
	}
	writeSessionTrace(formatter.Writer, trace, opts.Verbose)
	return nil
}

func summarize(r store.SessionRecord) SessionSummary {
	return SessionSummary{
		Conversation: r.Conversation,
		QueryID:      r.QueryID,
		Strategy:     r.Strategy,
		Sources:      r.Sources,
		State:        r.State,
		Complete:     r.Complete,
		Failed:       r.Failed,
		Rows:         r.Rows,
		Size:         r.Size,
	}
}

func writeSessionList(w io.Writer, sessions []SessionSummary) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  %-9s %-12s rows=%d %s\n",
			truncateID(s.Conversation), s.State, s.Strategy, s.Rows, completeStatus(s))
	}
}

func writeSessionTrace(w io.Writer, trace SessionTrace, verbose bool) {
	s := trace.Session
	fmt.Fprintf(w, "Session: %s\n", s.Conversation)
	fmt.Fprintf(w, "Status: %s (%s)\n", s.State, completeStatus(s))
	fmt.Fprintf(w, "Sources: %s\n", strings.Join(s.Sources, ", "))
	if verbose {
		fmt.Fprintf(w, "Query: %s\n", s.QueryID)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Progress ===")
	if len(trace.Progress) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, e := range trace.Progress {
		fmt.Fprintf(w, "  [%d] %s", e.Seq, e.Type)
		if v := string(e.Value); v != "" && v != "null" {
			fmt.Fprintf(w, " %s", v)
		}
		if e.Finished {
			fmt.Fprint(w, " (finished)")
		}
		fmt.Fprintln(w)
		if verbose {
			for _, sr := range e.Subresults {
				fmt.Fprintf(w, "       %s +%d finished=%t\n", sr.Source, sr.Items, sr.Finished)
			}
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Result ===")
	fmt.Fprintf(w, "  Rows:  %d\n", s.Rows)
	fmt.Fprintf(w, "  Size:  %d\n", s.Size)
	if len(s.Failed) > 0 {
		fmt.Fprintf(w, "  Failed: %s\n", strings.Join(s.Failed, ", "))
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

// completeStatus returns a human-readable completion status.
func completeStatus(s SessionSummary) string {
	switch {
	case s.State != session.StateFinalized.String():
		return "pending"
	case s.Complete:
		return "complete"
	default:
		return "incomplete"
	}
}
