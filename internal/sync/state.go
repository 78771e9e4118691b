package sync

import "fmt"

// State is a step of one calendar's sync attempt.
type State int

const (
	// StateIdle is both the start and the successful end of an attempt.
	StateIdle State = iota
	// StateFetchPage requests the next page, using the incremental token if any.
	StateFetchPage
	// StateFullResyncFetch requests a page without a token after the provider
	// rejected the token as expired.
	StateFullResyncFetch
	// StateUpsertBatch writes the fetched page.
	StateUpsertBatch
	// StateFinalize persists the new sync state.
	StateFinalize
	// StateFailed ends the attempt for this pass.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchPage:
		return "fetch_page"
	case StateFullResyncFetch:
		return "full_resync_fetch"
	case StateUpsertBatch:
		return "upsert_batch"
	case StateFinalize:
		return "finalize"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Signal is the outcome of running a state.
type Signal int

const (
	SignalStart Signal = iota
	SignalPageFetched
	SignalTokenExpired
	SignalError
	SignalMorePages
	SignalLastPage
	SignalDone
)

func (s Signal) String() string {
	switch s {
	case SignalStart:
		return "start"
	case SignalPageFetched:
		return "page_fetched"
	case SignalTokenExpired:
		return "token_expired"
	case SignalError:
		return "error"
	case SignalMorePages:
		return "more_pages"
	case SignalLastPage:
		return "last_page"
	case SignalDone:
		return "done"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

type edge struct {
	from State
	on   Signal
}

// transitions is the complete table; any pair not listed is invalid.
// A second expiry inside FullResyncFetch is an error, not another fallback.
var transitions = map[edge]State{
	{StateIdle, SignalStart}: StateFetchPage,

	{StateFetchPage, SignalPageFetched}:  StateUpsertBatch,
	{StateFetchPage, SignalTokenExpired}: StateFullResyncFetch,
	{StateFetchPage, SignalError}:        StateFailed,

	{StateFullResyncFetch, SignalPageFetched}:  StateUpsertBatch,
	{StateFullResyncFetch, SignalTokenExpired}: StateFailed,
	{StateFullResyncFetch, SignalError}:        StateFailed,

	{StateUpsertBatch, SignalMorePages}: StateFetchPage,
	{StateUpsertBatch, SignalLastPage}:  StateFinalize,
	{StateUpsertBatch, SignalError}:     StateFailed,

	{StateFinalize, SignalDone}:  StateIdle,
	{StateFinalize, SignalError}: StateFailed,
}

// Transition returns the state reached from s on sig.
func Transition(s State, sig Signal) (State, error) {
	next, ok := transitions[edge{s, sig}]
	if !ok {
		return StateFailed, fmt.Errorf("invalid transition from %s on %s", s, sig)
	}
	return next, nil
}
