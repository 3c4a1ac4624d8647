// Package store keeps a SQLite audit log of federated query sessions.
//
// Two tables are kept:
//   - sessions: one row per conversation, updated as the session moves on
//   - progress_events: every published progress event, in order
//
// Progress events are numbered per conversation with a logical sequence,
// never with timestamps, so reading a conversation back always yields the
// events in the order they were published.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// A Store is a session.ProgressSink, so it can be handed to the session
// manager and the broker directly.
package store
