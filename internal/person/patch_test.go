package person

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func strPtr(v string) *string { return &v }

func TestPatch_Apply(t *testing.T) {
	base := func() Person {
		return Person{
			ID: "p-1",
			Profile: Profile{
				Name:               "Alice",
				Occupation:         "engineer",
				RelationshipStatus: StatusObserving,
				PositiveTags:       []string{"kind"},
				NegativeTags:       []string{},
				PersonalityTags:    []string{},
				Rating:             intPtr(4),
			},
			CreatedAt: time.Unix(100, 0),
			UpdatedAt: time.Unix(200, 0),
		}
	}

	t.Run("only targeted field changes", func(t *testing.T) {
		p := base()
		want := base()
		want.Name = "X"

		if err := (Patch{Name: strPtr("X")}).Apply(&p); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if diff := cmp.Diff(want, p); diff != "" {
			t.Errorf("unexpected change (-want +got):\n%s", diff)
		}
	})

	t.Run("replace tags and status", func(t *testing.T) {
		p := base()
		tags := []string{"fun", "smart"}
		status := StatusOfficiallyDating
		if err := (Patch{PositiveTags: &tags, RelationshipStatus: &status}).Apply(&p); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		tags[0] = "mutated"
		if p.PositiveTags[0] != "fun" {
			t.Errorf("patch aliased caller slice: got %q", p.PositiveTags[0])
		}
		if p.RelationshipStatus != StatusOfficiallyDating {
			t.Errorf("RelationshipStatus = %q", p.RelationshipStatus)
		}
	})

	t.Run("clear optional fields", func(t *testing.T) {
		p := base()
		if err := (Patch{Clear: []string{"rating", "occupation", "positiveTags"}}).Apply(&p); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if p.Rating != nil || p.Occupation != "" || len(p.PositiveTags) != 0 || p.PositiveTags == nil {
			t.Errorf("fields not cleared: %+v", p.Profile)
		}
	})

	t.Run("clear unknown field", func(t *testing.T) {
		p := base()
		err := (Patch{Clear: []string{"name"}}).Apply(&p)
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid, got %v", err)
		}
	})

	t.Run("timestamps untouched", func(t *testing.T) {
		p := base()
		if err := (Patch{Notes: strPtr("met at a cafe")}).Apply(&p); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if !p.UpdatedAt.Equal(time.Unix(200, 0)) || !p.CreatedAt.Equal(time.Unix(100, 0)) {
			t.Errorf("timestamps changed: created=%v updated=%v", p.CreatedAt, p.UpdatedAt)
		}
	})
}

func TestPatch_IsEmpty(t *testing.T) {
	if !(Patch{}).IsEmpty() {
		t.Error("zero patch should be empty")
	}
	if (Patch{Clear: []string{"age"}}).IsEmpty() {
		t.Error("patch with Clear should not be empty")
	}
	if (Patch{Name: strPtr("a")}).IsEmpty() {
		t.Error("patch with Name should not be empty")
	}
}
