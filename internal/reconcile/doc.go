// Package reconcile merges the local and remote Person collections.
//
// Overview
//
// Reconciliation is last-writer-wins per record, keyed by id and decided by
// updatedAt. Fields are never blended: the merged collection holds, for each id,
// exactly one of the two versions.
//
//	Local store ──GetAll──┐
//	                      ├──► Merge ──► merged ──► remote (replace or diff)
//	Remote ─────FetchAll──┘                 │
//	                                        └──► Report.Merged (adopted locally by the caller)
//
// Merge rules
//
//   - Records on only one side are kept.
//   - A local record replaces the remote one only when its updatedAt is strictly later.
//     Equal timestamps keep the remote version.
//   - Every id present on both sides with differing timestamps or content is reported
//     as a Conflict naming the winner.
//
// Strategies
//
// StrategyReplace deletes the user's remote rows and inserts the merged set. If the
// insert fails after the delete succeeded, the remote is left empty for that user;
// the error satisfies IsRemoteDegraded and the Report says RemoteEmptied.
//
// StrategyDiff upserts the merged set and then deletes remote rows that are not in
// it, so a failed write never empties the remote.
//
// Error Handling
//
// Failures carry the phase they happened in:
//
//	report, err := engine.Reconcile(ctx, userID)
//	switch {
//	case errors.Is(err, reconcile.ErrFetch):
//	    // nothing was written anywhere
//	case reconcile.IsRemoteDegraded(err):
//	    // remote is empty; local still has everything
//	}
//
// The engine never writes the local store. Adopting Report.Merged locally is the
// caller's decision.
package reconcile
