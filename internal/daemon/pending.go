package daemon

import (
	"encoding/json"
	"sort"

	"github.com/datememo/datememo/internal/observability"
	"github.com/datememo/datememo/internal/person"
)

// Pending returns the ids whose latest local write has not reached the remote,
// sorted. A refresh keeps the local state of these ids; the next RequestSync
// reconciles them and clears the set.
func (o *Orchestrator) Pending() []string {
	o.pendingMu.Lock()
	defer o.pendingMu.Unlock()
	return sortedIDs(o.loadPending())
}

func (o *Orchestrator) loadPending() map[string]bool {
	set := map[string]bool{}
	raw, ok := o.modes.Get(pendingPref)
	if !ok || raw == "" {
		return set
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		o.config.Logger.Printf("Warning: ignoring unreadable pending set: %v", err)
		return set
	}
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (o *Orchestrator) storePending(set map[string]bool) {
	observability.PendingMirrors.Set(float64(len(set)))

	var err error
	if len(set) == 0 {
		err = o.modes.Unset(pendingPref)
	} else {
		data, _ := json.Marshal(sortedIDs(set))
		err = o.modes.Set(pendingPref, string(data))
	}
	if err != nil {
		o.config.Logger.Printf("Error persisting pending set: %v", err)
	}
}

// markPending adds ids to the pending set.
func (o *Orchestrator) markPending(ids ...string) {
	if len(ids) == 0 {
		return
	}
	o.pendingMu.Lock()
	defer o.pendingMu.Unlock()

	set := o.loadPending()
	n := len(set)
	for _, id := range ids {
		set[id] = true
	}
	if len(set) != n {
		o.storePending(set)
	}
}

// clearPending removes ids from the pending set.
func (o *Orchestrator) clearPending(ids ...string) {
	if len(ids) == 0 {
		return
	}
	o.pendingMu.Lock()
	defer o.pendingMu.Unlock()

	set := o.loadPending()
	if len(set) == 0 {
		return
	}
	n := len(set)
	for _, id := range ids {
		delete(set, id)
	}
	if len(set) != n {
		o.storePending(set)
	}
}

// resetPending empties the pending set, after the remote has been made to match
// the local collection or the local collection was replaced by the remote one.
func (o *Orchestrator) resetPending() {
	o.pendingMu.Lock()
	defer o.pendingMu.Unlock()
	if len(o.loadPending()) > 0 {
		o.storePending(map[string]bool{})
	}
}

// keepPending overlays the local state of pending ids onto a fetched remote
// collection. A pending id present locally keeps its local version; a pending id
// absent locally was deleted here and stays deleted.
func keepPending(remote, local []person.Person, pending map[string]bool) []person.Person {
	if len(pending) == 0 {
		return remote
	}

	byID := make(map[string]person.Person, len(local))
	for _, p := range local {
		byID[p.ID] = p
	}

	out := make([]person.Person, 0, len(remote))
	seen := make(map[string]bool, len(pending))
	for _, p := range remote {
		if !pending[p.ID] {
			out = append(out, p)
			continue
		}
		seen[p.ID] = true
		if lp, ok := byID[p.ID]; ok {
			out = append(out, lp)
		}
	}
	for _, p := range local {
		if pending[p.ID] && !seen[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

func sortedIDs(set map[string]bool) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
