package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goldenagents/gafed/internal/session"
)

// ProgressRecord is a stored progress event.
type ProgressRecord struct {
	Conversation string
	Seq          int64
	QueryID      string
	Type         session.ProgressType
	// Value is the JSON encoding of the event value.
	Value      json.RawMessage
	Finished   bool
	Subresults []session.SubResult
}

// Publish records p. It makes a Store a session.ProgressSink.
func (s *Store) Publish(ctx context.Context, conversation string, p session.Progress) error {
	_, err := s.RecordProgress(ctx, conversation, p)
	return err
}

// RecordProgress appends p to the log of conversation and returns its
// sequence number, starting at 1.
func (s *Store) RecordProgress(ctx context.Context, conversation string, p session.Progress) (int64, error) {
	value, err := marshalJSON(p.Value)
	if err != nil {
		return 0, fmt.Errorf("record progress: %w", err)
	}
	subresults, err := marshalList(p.Subresults)
	if err != nil {
		return 0, fmt.Errorf("record progress: %w", err)
	}

	var seq int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO progress_events
		(conversation, seq, query_id, type, value, finished, subresults)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?
		FROM progress_events WHERE conversation = ?
		RETURNING seq
	`,
		conversation,
		p.QueryID,
		int(p.Type),
		value,
		boolToInt(p.Finished),
		subresults,
		conversation,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("record progress: %w", err)
	}
	return seq, nil
}

// ProgressFor returns the progress events of conversation in publication
// order. Returns an empty slice (not nil) if none were recorded.
func (s *Store) ProgressFor(ctx context.Context, conversation string) ([]ProgressRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation, seq, query_id, type, value, finished, subresults
		FROM progress_events
		WHERE conversation = ?
		ORDER BY seq ASC
	`, conversation)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	out := []ProgressRecord{}
	for rows.Next() {
		var (
			rec        ProgressRecord
			typ        int
			value      string
			finished   int
			subresults string
		)
		if err := rows.Scan(&rec.Conversation, &rec.Seq, &rec.QueryID, &typ, &value, &finished, &subresults); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		rec.Type = session.ProgressType(typ)
		rec.Value = json.RawMessage(value)
		rec.Finished = finished != 0
		if rec.Subresults, err = unmarshalList[session.SubResult](subresults); err != nil {
			return nil, fmt.Errorf("scan progress subresults: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return out, nil
}

// CountProgress returns the number of recorded events of type t over all
// conversations.
func (s *Store) CountProgress(ctx context.Context, t session.ProgressType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM progress_events WHERE type = ?`, int(t)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count progress: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
