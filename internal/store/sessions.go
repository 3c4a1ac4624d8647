package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goldenagents/gafed/internal/session"
)

// SessionRecord is the stored summary of a session.
type SessionRecord struct {
	Conversation string
	QueryID      string
	Strategy     string
	Sources      []string
	State        string
	Complete     bool
	Failed       []string
	Rows         int
	Size         int
}

// RecordSession inserts or replaces the summary of rec.Conversation.
func (s *Store) RecordSession(ctx context.Context, rec SessionRecord) error {
	sources, err := marshalList(rec.Sources)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	failed, err := marshalList(rec.Failed)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(conversation, query_id, strategy, sources, state, complete, failed, row_count, size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation) DO UPDATE SET
			query_id = excluded.query_id,
			strategy = excluded.strategy,
			sources = excluded.sources,
			state = excluded.state,
			complete = excluded.complete,
			failed = excluded.failed,
			row_count = excluded.row_count,
			size = excluded.size
	`,
		rec.Conversation,
		rec.QueryID,
		rec.Strategy,
		sources,
		rec.State,
		boolToInt(rec.Complete),
		failed,
		rec.Rows,
		rec.Size,
	)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// RecordResult marks the session of res finalized. The query and sources
// recorded when the session opened are kept.
func (s *Store) RecordResult(ctx context.Context, res *session.Result) error {
	failed, err := marshalList(res.Failed)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(conversation, query_id, state, complete, failed, row_count, size)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation) DO UPDATE SET
			state = excluded.state,
			complete = excluded.complete,
			failed = excluded.failed,
			row_count = excluded.row_count,
			size = excluded.size
	`,
		res.Conversation,
		res.QueryID,
		session.StateFinalized.String(),
		boolToInt(res.Complete),
		failed,
		res.Len(),
		res.Size,
	)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// Session returns the summary of conversation.
// Returns (SessionRecord{}, false, nil) if it was never recorded.
func (s *Store) Session(ctx context.Context, conversation string) (SessionRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT conversation, query_id, strategy, sources, state, complete, failed, row_count, size
		FROM sessions WHERE conversation = ?
	`, conversation)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, false, nil
	}
	if err != nil {
		return SessionRecord{}, false, err
	}
	return rec, true, nil
}

// Sessions returns every recorded session ordered by conversation.
func (s *Store) Sessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation, query_id, strategy, sources, state, complete, failed, row_count, size
		FROM sessions ORDER BY conversation COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []SessionRecord{}
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (SessionRecord, error) {
	var (
		rec      SessionRecord
		sources  string
		failed   string
		complete int
	)
	err := row.Scan(&rec.Conversation, &rec.QueryID, &rec.Strategy, &sources, &rec.State, &complete, &failed, &rec.Rows, &rec.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, err
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("scan session: %w", err)
	}
	rec.Complete = complete != 0
	if rec.Sources, err = unmarshalList[string](sources); err != nil {
		return SessionRecord{}, fmt.Errorf("scan session sources: %w", err)
	}
	if rec.Failed, err = unmarshalList[string](failed); err != nil {
		return SessionRecord{}, fmt.Errorf("scan session failed: %w", err)
	}
	return rec, nil
}
