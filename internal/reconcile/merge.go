package reconcile

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/datememo/datememo/internal/person"
)

// Winner names the side whose version was kept.
type Winner string

const (
	WinnerLocal  Winner = "local"
	WinnerRemote Winner = "remote"
)

// ResolutionLastWriteWins is the only resolution the engine applies.
const ResolutionLastWriteWins = "last_write_wins"

// Conflict records an id present on both sides whose versions differ.
type Conflict struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	LocalUpdatedAt  time.Time `json:"localUpdatedAt"`
	RemoteUpdatedAt time.Time `json:"remoteUpdatedAt"`
	Winner          Winner    `json:"winner"`
	Resolution      string    `json:"resolution"`
}

// Merge combines local and remote by id. A local record wins only when its
// UpdatedAt is strictly later than the remote one. The result is sorted by id.
// Inputs are not modified.
func Merge(local, remote []person.Person) ([]person.Person, []Conflict) {
	byID := make(map[string]person.Person, len(local)+len(remote))
	for _, r := range remote {
		byID[r.ID] = r.Clone()
	}

	var conflicts []Conflict
	for _, l := range local {
		r, ok := byID[l.ID]
		if !ok {
			byID[l.ID] = l.Clone()
			continue
		}

		winner := WinnerRemote
		if l.UpdatedAt.After(r.UpdatedAt) {
			winner = WinnerLocal
			byID[l.ID] = l.Clone()
		}

		if !l.UpdatedAt.Equal(r.UpdatedAt) || !sameContent(l, r) {
			kept := r
			if winner == WinnerLocal {
				kept = l
			}
			conflicts = append(conflicts, Conflict{
				ID:              l.ID,
				Name:            kept.Name,
				LocalUpdatedAt:  l.UpdatedAt,
				RemoteUpdatedAt: r.UpdatedAt,
				Winner:          winner,
				Resolution:      ResolutionLastWriteWins,
			})
		}
	}

	merged := make([]person.Person, 0, len(byID))
	for _, p := range byID {
		merged = append(merged, p)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].ID < conflicts[j].ID })
	return merged, conflicts
}

// sameContent compares the stored form of two records.
func sameContent(a, b person.Person) bool {
	a, b = a.Clone(), b.Clone()
	a.SetDefaults()
	b.SetDefaults()
	ja, errA := json.Marshal(utc(a))
	jb, errB := json.Marshal(utc(b))
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

func utc(p person.Person) person.Person {
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if p.FirstDateAt != nil {
		t := p.FirstDateAt.UTC()
		p.FirstDateAt = &t
	}
	return p
}

// partition returns the ids present on only one side.
func partition(local, remote []person.Person) (localOnly, remoteOnly []string) {
	inLocal := make(map[string]struct{}, len(local))
	for _, p := range local {
		inLocal[p.ID] = struct{}{}
	}
	inRemote := make(map[string]struct{}, len(remote))
	for _, p := range remote {
		inRemote[p.ID] = struct{}{}
		if _, ok := inLocal[p.ID]; !ok {
			remoteOnly = append(remoteOnly, p.ID)
		}
	}
	for _, p := range local {
		if _, ok := inRemote[p.ID]; !ok {
			localOnly = append(localOnly, p.ID)
		}
	}
	sort.Strings(localOnly)
	sort.Strings(remoteOnly)
	return localOnly, remoteOnly
}
