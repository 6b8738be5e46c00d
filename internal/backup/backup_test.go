package backup

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/datememo/datememo/internal/person"
)

func intPtr(v int) *int { return &v }

func samplePersons() []person.Person {
	created := time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC)
	first := time.Date(2025, 2, 14, 19, 0, 0, 0, time.UTC)
	return []person.Person{
		{
			ID: "a1",
			Profile: person.Profile{
				Name:               "Alice",
				Age:                intPtr(29),
				Gender:             person.GenderFemale,
				Occupation:         "pilot",
				RelationshipStatus: person.StatusMetInPerson,
				MeetChannel:        "other:climbing gym",
				PositiveTags:       []string{"funny"},
				NegativeTags:       []string{},
				PersonalityTags:    []string{"outgoing", "curious"},
				Rating:             intPtr(4),
				Notes:              "likes \"quotes\"\nand newlines",
				FirstDateAt:        &first,
			},
			CreatedAt: created,
			UpdatedAt: created.Add(48 * time.Hour),
		},
		{
			ID: "b2",
			Profile: person.Profile{
				Name:               "Bob",
				RelationshipStatus: person.StatusObserving,
				PositiveTags:       []string{},
				NegativeTags:       []string{"late"},
				PersonalityTags:    []string{},
			},
			CreatedAt: created,
			UpdatedAt: created,
		},
	}
}

func TestEncodeDecode_PreservesRecords(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatJSONL, FormatYAML, FormatTOML} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, f, samplePersons()); err != nil {
				t.Fatalf("Encode() failed: %v", err)
			}

			res, err := Decode(&buf, f)
			if err != nil {
				t.Fatalf("Decode() failed: %v", err)
			}
			if len(res.Skipped) != 0 {
				t.Errorf("unexpected skips: %v", res.Skipped)
			}
			if diff := cmp.Diff(samplePersons(), res.Persons); diff != "" {
				t.Errorf("records changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncode_OmitsAbsentOptionals(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, FormatYAML, samplePersons()[1:]); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, field := range []string{"rating:", "age:", "firstDateAt:"} {
		if strings.Contains(out, field) {
			t.Errorf("absent %s written:\n%s", field, out)
		}
	}
	if !strings.Contains(out, "version: 1") {
		t.Errorf("missing version:\n%s", out)
	}
}

func TestDecode_SkipsInvalidRecords(t *testing.T) {
	input := `{"id":"ok","name":"Fine","createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z"}
{"id":"","name":"No id","createdAt":"2025-01-01T00:00:00Z"}
{"id":"bad-rating","name":"X","rating":9,"createdAt":"2025-01-01T00:00:00Z"}
{"id":"ok","name":"Dup","createdAt":"2025-01-01T00:00:00Z"}

{"id":"no-times","name":"Y"}
`
	res, err := Decode(strings.NewReader(input), FormatJSONL)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if len(res.Persons) != 1 || res.Persons[0].ID != "ok" {
		t.Errorf("persons = %+v, want only ok", res.Persons)
	}
	if len(res.Skipped) != 4 {
		t.Errorf("skipped = %v, want 4 entries", res.Skipped)
	}
	if p := res.Persons[0]; p.PositiveTags == nil || p.RelationshipStatus != person.StatusObserving {
		t.Errorf("defaults not applied: %+v", p)
	}
}

func TestDecode_BareJSONArray(t *testing.T) {
	input := `[{"id":"1","name":"Alice","createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-02T00:00:00Z"}]`
	res, err := Decode(strings.NewReader(input), FormatJSON)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if len(res.Persons) != 1 {
		t.Fatalf("expected 1 person, got %d", len(res.Persons))
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		format Format
		input  string
	}{
		{FormatJSON, "{not json"},
		{FormatJSONL, "{\"id\":\"1\"}\n{broken"},
		{FormatYAML, "persons: [unclosed"},
		{FormatTOML, "persons = ["},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if _, err := Decode(strings.NewReader(tt.input), tt.format); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"json": FormatJSON, ".JSONL": FormatJSONL, "ndjson": FormatJSONL,
		"yml": FormatYAML, ".yaml": FormatYAML, "toml": FormatTOML,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("csv"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestWriteFileReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "memo.toml")

	if err := WriteFile(path, samplePersons()); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	res, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if len(res.Persons) != 2 {
		t.Errorf("read %d persons, want 2", len(res.Persons))
	}

	if err := WriteFile(filepath.Join(dir, "memo.csv"), nil); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat for .csv, got %v", err)
	}
}
