// Package sync reconciles the local mirror with the remote calendar account.
//
// # Architecture
//
// SyncAll runs one attempt per selected calendar, bounded by
// Config.Concurrency. Each attempt is an explicit state machine:
//
//	Idle --start--> FetchPage --page_fetched--> UpsertBatch --last_page--> Finalize --done--> Idle
//	                    |  ^                        |
//	                    |  +------more_pages--------+
//	                    +--token_expired--> FullResyncFetch --page_fetched--> UpsertBatch
//
// Any error signal leads to Failed. The full table lives in state.go.
//
// # Window and token
//
// The stored SyncState carries the incremental token and the query window.
// A fresh window [now-LookBehind, now+horizon) and a full query are used
// when there is no token, when now-windowStart exceeds MaxWindowAge, or
// when the window has elapsed. An expired token triggers at most one full
// resync of the same calendar per pass; a second expiry fails it.
//
// # Writes
//
// Every page is applied in its own transaction (db.ApplyEventPage): events
// are upserted by their composite key and auto annotations re-categorised.
// User-locked annotations are never touched. Pages committed before a
// failure stay committed, and SyncState only advances on Finalize, so the
// next pass replays from the previous cursor.
//
// # Failure scope
//
// A failure in one calendar is reported as a *CalendarError and the batch
// continues. provider.ErrNotConnected cancels the batch, since no other
// calendar can succeed without credentials.
package sync
