// Package schema defines the records mirrored and owned by personal-dash.
//
// # Overview
//
// Two kinds of data live side by side in the local store:
//
//   - Remote truth: calendars and events copied from the provider. The
//     provider is authoritative for every field of these records and a sync
//     pass overwrites them freely.
//   - Local annotations: per-event metadata (category, major flag, linked
//     project, notes link) that the user owns. Reconciliation may only write
//     an annotation while its provenance is AutoClassified.
//
// # Event Identity
//
// Events are keyed by a composite of calendar id and provider event id:
//
//	primary:7kq3n0v2b1
//
// The key is stable across reschedules of the same remote item, so an
// annotation stays attached when the event moves.
//
// # Annotation Provenance
//
// Provenance is a three-state enum rather than a boolean:
//
//   - Unset: no annotation row exists yet
//   - AutoClassified: the classifier wrote the category; sync may rewrite it
//   - UserLocked: a person edited it; sync never touches it again
//
// # Time Values
//
// Event start/end keep the provider's raw value: either a date
// ("2026-12-25") for all-day items or an RFC3339 date-time
// ("2026-12-25T09:00:00Z"). Bookkeeping timestamps are stored as RFC3339 UTC.
package schema
