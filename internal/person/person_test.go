package person

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func intPtr(v int) *int { return &v }

func TestPerson_Validate(t *testing.T) {
	now := time.Now()

	valid := func() Person {
		return Person{
			ID: "p-1",
			Profile: Profile{
				Name:               "Alice",
				RelationshipStatus: StatusObserving,
				PositiveTags:       []string{},
				NegativeTags:       []string{},
				PersonalityTags:    []string{},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	tests := []struct {
		name    string
		mutate  func(p *Person)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid person",
			mutate:  func(p *Person) {},
			wantErr: false,
		},
		{
			name:    "missing id",
			mutate:  func(p *Person) { p.ID = "" },
			wantErr: true,
			errMsg:  "id is required",
		},
		{
			name:    "empty name",
			mutate:  func(p *Person) { p.Name = "" },
			wantErr: true,
			errMsg:  "name is required",
		},
		{
			name:    "whitespace name",
			mutate:  func(p *Person) { p.Name = "   " },
			wantErr: true,
			errMsg:  "name is required",
		},
		{
			name:    "name too long",
			mutate:  func(p *Person) { p.Name = strings.Repeat("a", 101) },
			wantErr: true,
			errMsg:  "name must be 100 characters or less",
		},
		{
			name:    "rating too low",
			mutate:  func(p *Person) { p.Rating = intPtr(0) },
			wantErr: true,
			errMsg:  "rating must be at least 1",
		},
		{
			name:    "rating too high",
			mutate:  func(p *Person) { p.Rating = intPtr(6) },
			wantErr: true,
			errMsg:  "rating must be at most 5",
		},
		{
			name:    "rating in range",
			mutate:  func(p *Person) { p.Rating = intPtr(5) },
			wantErr: false,
		},
		{
			name:    "underage",
			mutate:  func(p *Person) { p.Age = intPtr(17) },
			wantErr: true,
			errMsg:  "age must be at least 18",
		},
		{
			name:    "unknown status",
			mutate:  func(p *Person) { p.RelationshipStatus = "married" },
			wantErr: true,
			errMsg:  "relationshipStatus must be one of",
		},
		{
			name:    "unknown gender",
			mutate:  func(p *Person) { p.Gender = "robot" },
			wantErr: true,
			errMsg:  "gender must be one of",
		},
		{
			name:    "empty tag",
			mutate:  func(p *Person) { p.PositiveTags = []string{""} },
			wantErr: true,
			errMsg:  "positiveTags[0] is required",
		},
		{
			name:    "updatedAt before createdAt",
			mutate:  func(p *Person) { p.UpdatedAt = p.CreatedAt.Add(-time.Second) },
			wantErr: true,
			errMsg:  "is before createdAt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected error to wrap ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want substring %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestProfile_Normalize(t *testing.T) {
	p := Profile{
		Name:         "  Bob ",
		PositiveTags: []string{"kind", " kind", "", "fun", "kind"},
	}
	p.Normalize()

	if p.Name != "Bob" {
		t.Errorf("Name = %q, want %q", p.Name, "Bob")
	}
	if diff := cmp.Diff([]string{"kind", "fun"}, p.PositiveTags); diff != "" {
		t.Errorf("PositiveTags mismatch (-want +got):\n%s", diff)
	}
	if p.NegativeTags == nil || len(p.NegativeTags) != 0 {
		t.Errorf("NegativeTags = %#v, want empty non-nil slice", p.NegativeTags)
	}
	if p.RelationshipStatus != StatusObserving {
		t.Errorf("RelationshipStatus = %q, want default %q", p.RelationshipStatus, StatusObserving)
	}
}

func TestPerson_SetDefaults(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Person{ID: "x", Profile: Profile{Name: "Carol"}, CreatedAt: created}
	p.SetDefaults()

	if p.PositiveTags == nil || p.NegativeTags == nil || p.PersonalityTags == nil {
		t.Fatal("expected tag slices to be non-nil after SetDefaults")
	}
	if !p.UpdatedAt.Equal(created) {
		t.Errorf("UpdatedAt = %v, want %v", p.UpdatedAt, created)
	}
	if p.RelationshipStatus != StatusObserving {
		t.Errorf("RelationshipStatus = %q, want %q", p.RelationshipStatus, StatusObserving)
	}
}

func TestPerson_Clone(t *testing.T) {
	p := Person{ID: "x", Profile: Profile{Name: "Dee", Rating: intPtr(3), PositiveTags: []string{"fun"}}}
	c := p.Clone()
	*c.Rating = 5
	c.PositiveTags[0] = "kind"

	if *p.Rating != 3 {
		t.Errorf("clone aliased rating: original now %d", *p.Rating)
	}
	if p.PositiveTags[0] != "fun" {
		t.Errorf("clone aliased tags: original now %q", p.PositiveTags[0])
	}
}

func TestStatus_IsValid(t *testing.T) {
	for _, s := range Statuses {
		if !s.IsValid() {
			t.Errorf("%q should be valid", s)
		}
		if s.Label() == string(s) {
			t.Errorf("%q has no label", s)
		}
	}
	if Status("nope").IsValid() {
		t.Error("unknown status reported valid")
	}
}
