// Package harness replays aggregation scenarios against a real broker and
// session manager.
//
// A scenario names a federation description, a query, and the replies the
// sources send back. The harness decomposes the query, records what was
// dispatched, feeds the replies through the broker's Run loop and reads the
// progress trace back from an in-memory store.
//
// # Scenario Format
//
//	name: join_two_sources
//	description: "Book titles come from two sources"
//	federation: federation.cue
//	strategy: capabilities
//	query:
//	  triples:
//	    - ?b a ga:Book
//	    - ?b ga:title ?t
//	  select: [?b, ?t]
//	unreachable: [catalog]
//	flow:
//	  - source: books
//	    partial:
//	      - <http://books.example/b1> a ga:Book
//	  - source: books
//	    end: true
//	assertions:
//	  - type: progress_order
//	    progress: [QUERY_SENT, RESULTS_RETURNED]
//	  - type: result
//	    complete: false
//	    failed: [catalog]
//
// Every flow step sends exactly one message: partial, end, error or
// suggestions.
//
// # Assertion Types
//
//   - progress_order: the listed event types appear in that order
//   - progress_count: an event type appears exactly count times
//   - result: completeness, row count and failed sources of the result
//   - row: some result row binds the listed variables to the listed values
//   - dispatched: the sources that were sent a sub-query, in order
//   - rejected: the number of replies the manager refused
//
// Traces are deterministic for a given scenario, so they can be compared
// against golden files with RunWithGolden.
package harness
