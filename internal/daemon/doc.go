// Package daemon coordinates the local store, the remote store and the signed-in
// user.
//
// # Architecture
//
//   - Session: who is signed in and whether data is mirrored to the cloud (Mode)
//   - Orchestrator: login decisions, full syncs, silent refreshes, mirrored writes
//   - StoreWatcher: fsnotify on the local store file, used as a "focus" signal
//   - Run: the background loop that refreshes on an interval and on focus
//
// # Modes
//
// In local mode every operation touches only the local store. In cloud mode writes
// go to the local store first and are then mirrored to the remote; a failed mirror
// leaves the local write in place, is published as a notice and is returned as a
// *MirrorError the caller may treat as a warning.
//
// # Login
//
//	decision, err := orch.Login(ctx)
//	switch decision {
//	case daemon.DecisionAdoptCloud:
//	    // ask, then orch.AdoptCloud(ctx)
//	case daemon.DecisionPushLocal:
//	    // ask, then orch.PushLocal(ctx)
//	}
//
// A stored cloud mode skips the question and fetches the remote collection. If
// that first fetch fails the orchestrator falls back to local mode.
//
// # Refresh
//
// Refreshes re-fetch the remote collection and adopt it locally. They run only in
// cloud mode, and overlapping refreshes share one fetch.
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	if err := orch.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package daemon
