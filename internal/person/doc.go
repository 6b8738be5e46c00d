// Package person defines the Person record kept by datememo.
//
// # Overview
//
// A Person is one remembered dating contact. Records live in two places:
//
//	Local store (one JSON array under a single key)
//	     └── []Person
//	                 ↕  reconcile (last writer wins on updatedAt)
//	Remote table dating_persons (rows scoped by user_id)
//
// The JSON field names are camelCase and match both the local blob format and the
// remote column names, so a record round-trips between the two stores unchanged.
//
// # Lifecycle
//
//   - Created by the local store from a Profile: the store assigns ID, CreatedAt and
//     UpdatedAt.
//   - Mutated only through a Patch applied by the local store, which always refreshes
//     UpdatedAt.
//   - Deleted by ID.
//
// # Validation
//
// Field rules are expressed as validator struct tags (name required, rating 1..5, age at
// least 18, enum membership, tag length). Invariants that span fields, like
// UpdatedAt >= CreatedAt, are checked in Person.Validate. All validation failures wrap
// ErrInvalid:
//
//	if errors.Is(err, person.ErrInvalid) {
//	    // reject before touching any store
//	}
//
// # Tags
//
// Three tag sets (positive, negative, personality) draw from preset vocabularies plus
// free-form custom entries. Insertion order is preserved for display; duplicates are
// dropped by Normalize.
package person
