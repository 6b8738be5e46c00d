package person

import (
	"testing"
	"time"
)

func TestFilter(t *testing.T) {
	persons := []Person{
		{ID: "1", Profile: Profile{Name: "Alice", Occupation: "Designer"}},
		{ID: "2", Profile: Profile{Name: "Bob", MeetChannel: "other:climbing gym"}},
		{ID: "3", Profile: Profile{Name: "Carol", PersonalityTags: []string{"Adventurous"}}},
	}

	tests := []struct {
		term string
		want []string
	}{
		{"", []string{"1", "2", "3"}},
		{"ali", []string{"1"}},
		{"DESIGN", []string{"1"}},
		{"climbing", []string{"2"}},
		{"advent", []string{"3"}},
		{"zzz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			got := Filter(persons, tt.term)
			if len(got) != len(tt.want) {
				t.Fatalf("Filter(%q) returned %d persons, want %d", tt.term, len(got), len(tt.want))
			}
			for i, p := range got {
				if p.ID != tt.want[i] {
					t.Errorf("Filter(%q)[%d] = %s, want %s", tt.term, i, p.ID, tt.want[i])
				}
			}
		})
	}
}

func TestSortByUpdated(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	persons := []Person{
		{ID: "b", UpdatedAt: base.Add(time.Hour)},
		{ID: "a", UpdatedAt: base},
		{ID: "c", UpdatedAt: base.Add(2 * time.Hour)},
	}

	SortByUpdated(persons, true)
	if persons[0].ID != "c" || persons[2].ID != "a" {
		t.Errorf("desc order = %s,%s,%s", persons[0].ID, persons[1].ID, persons[2].ID)
	}

	SortByUpdated(persons, false)
	if persons[0].ID != "a" || persons[2].ID != "c" {
		t.Errorf("asc order = %s,%s,%s", persons[0].ID, persons[1].ID, persons[2].ID)
	}
}

func TestMeetChannel(t *testing.T) {
	tests := []struct {
		category, detail string
		stored           string
		label            string
	}{
		{"dating app", "", "dating app", "dating app"},
		{"work", "ignored", "work", "work"},
		{"other", "climbing gym", "other:climbing gym", "other: climbing gym"},
		{"other", "", "other", "other"},
	}

	for _, tt := range tests {
		stored := FormatMeetChannel(tt.category, tt.detail)
		if stored != tt.stored {
			t.Errorf("FormatMeetChannel(%q, %q) = %q, want %q", tt.category, tt.detail, stored, tt.stored)
		}
		p := Person{Profile: Profile{MeetChannel: stored}}
		if got := p.MeetChannelLabel(); got != tt.label {
			t.Errorf("MeetChannelLabel(%q) = %q, want %q", stored, got, tt.label)
		}
	}

	if (&Person{}).MeetChannelLabel() != "" {
		t.Error("empty channel should have empty label")
	}
}

func TestIsPresetTag(t *testing.T) {
	if !IsPresetTag(TagPositive, "kind") {
		t.Error("kind should be a positive preset")
	}
	if IsPresetTag(TagNegative, "kind") {
		t.Error("kind should not be a negative preset")
	}
	p := Person{Profile: Profile{PersonalityTags: []string{"introverted", "loves jazz"}}}
	custom := p.CustomTags(TagPersonality)
	if len(custom) != 1 || custom[0] != "loves jazz" {
		t.Errorf("CustomTags = %v, want [loves jazz]", custom)
	}
}
