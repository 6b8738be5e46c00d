// Package backup exports and imports the memo collection as JSON, JSONL, YAML or TOML.
package backup

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/datememo/datememo/internal/person"
)

// Format is a backup file format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	FormatTOML  Format = "toml"
)

// Version is written into every document format.
const Version = 1

// ErrUnknownFormat is returned for unsupported formats and extensions.
var ErrUnknownFormat = errors.New("unknown backup format")

// ParseFormat maps a name to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(s, "."))); f {
	case FormatJSON, FormatJSONL, FormatYAML, FormatTOML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "ndjson":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatFor picks a format from a file extension.
func FormatFor(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Record is the file representation of one person.
type Record struct {
	ID                 string     `json:"id" yaml:"id" toml:"id"`
	Name               string     `json:"name" yaml:"name" toml:"name"`
	Age                *int       `json:"age,omitempty" yaml:"age,omitempty" toml:"age,omitempty"`
	Gender             string     `json:"gender,omitempty" yaml:"gender,omitempty" toml:"gender,omitempty"`
	Occupation         string     `json:"occupation,omitempty" yaml:"occupation,omitempty" toml:"occupation,omitempty"`
	ContactInfo        string     `json:"contactInfo,omitempty" yaml:"contactInfo,omitempty" toml:"contactInfo,omitempty"`
	InstagramAccount   string     `json:"instagramAccount,omitempty" yaml:"instagramAccount,omitempty" toml:"instagramAccount,omitempty"`
	RelationshipStatus string     `json:"relationshipStatus" yaml:"relationshipStatus" toml:"relationshipStatus"`
	MeetChannel        string     `json:"meetChannel,omitempty" yaml:"meetChannel,omitempty" toml:"meetChannel,omitempty"`
	PositiveTags       []string   `json:"positiveTags" yaml:"positiveTags" toml:"positiveTags"`
	NegativeTags       []string   `json:"negativeTags" yaml:"negativeTags" toml:"negativeTags"`
	PersonalityTags    []string   `json:"personalityTags" yaml:"personalityTags" toml:"personalityTags"`
	Rating             *int       `json:"rating,omitempty" yaml:"rating,omitempty" toml:"rating,omitempty"`
	Notes              string     `json:"notes,omitempty" yaml:"notes,omitempty" toml:"notes,omitempty"`
	FirstDateAt        *time.Time `json:"firstDateAt,omitempty" yaml:"firstDateAt,omitempty" toml:"firstDateAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt" yaml:"createdAt" toml:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt" yaml:"updatedAt" toml:"updatedAt"`
}

// document wraps records in the json, yaml and toml formats.
type document struct {
	Version int      `json:"version" yaml:"version" toml:"version"`
	Persons []Record `json:"persons" yaml:"persons" toml:"persons"`
}

// ToRecord converts a Person to its file representation.
func ToRecord(p person.Person) Record {
	p = p.Clone()
	return Record{
		ID:                 p.ID,
		Name:               p.Name,
		Age:                p.Age,
		Gender:             string(p.Gender),
		Occupation:         p.Occupation,
		ContactInfo:        p.ContactInfo,
		InstagramAccount:   p.InstagramAccount,
		RelationshipStatus: string(p.RelationshipStatus),
		MeetChannel:        p.MeetChannel,
		PositiveTags:       p.PositiveTags,
		NegativeTags:       p.NegativeTags,
		PersonalityTags:    p.PersonalityTags,
		Rating:             p.Rating,
		Notes:              p.Notes,
		FirstDateAt:        utcPtr(p.FirstDateAt),
		CreatedAt:          p.CreatedAt.UTC(),
		UpdatedAt:          p.UpdatedAt.UTC(),
	}
}

// ToPerson converts a record back, applying defaults.
func (r Record) ToPerson() person.Person {
	p := person.Person{
		ID: r.ID,
		Profile: person.Profile{
			Name:               r.Name,
			Age:                r.Age,
			Gender:             person.Gender(r.Gender),
			Occupation:         r.Occupation,
			ContactInfo:        r.ContactInfo,
			InstagramAccount:   r.InstagramAccount,
			RelationshipStatus: person.Status(r.RelationshipStatus),
			MeetChannel:        r.MeetChannel,
			PositiveTags:       r.PositiveTags,
			NegativeTags:       r.NegativeTags,
			PersonalityTags:    r.PersonalityTags,
			Rating:             r.Rating,
			Notes:              r.Notes,
			FirstDateAt:        r.FirstDateAt,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	p.SetDefaults()
	return p
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// Encode writes persons to w in format f.
func Encode(w io.Writer, f Format, persons []person.Person) error {
	records := make([]Record, 0, len(persons))
	for _, p := range persons {
		records = append(records, ToRecord(p))
	}
	doc := document{Version: Version, Persons: records}

	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)

	case FormatJSONL:
		enc := json.NewEncoder(w)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("failed to encode %s: %w", r.ID, err)
			}
		}
		return nil

	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()

	case FormatTOML:
		return toml.NewEncoder(w).Encode(doc)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// Result is the outcome of decoding a backup.
type Result struct {
	Persons []person.Person
	// Skipped lists records that failed validation, with the reason.
	Skipped []string
}

// Decode reads a backup in format f. Invalid records are skipped and reported;
// a malformed file is an error.
func Decode(r io.Reader, f Format) (*Result, error) {
	var records []Record

	switch f {
	case FormatJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		data = bytes.TrimSpace(data)
		// Bare arrays are what the local store used to write.
		if len(data) > 0 && data[0] == '[' {
			if err := json.Unmarshal(data, &records); err != nil {
				return nil, fmt.Errorf("invalid JSON: %w", err)
			}
			break
		}
		var doc document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		records = doc.Persons

	case FormatJSONL:
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var rec Record
			if err := json.Unmarshal(line, &rec); err != nil {
				return nil, fmt.Errorf("invalid JSON at line %d: %w", lineNum, err)
			}
			records = append(records, rec)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read JSONL: %w", err)
		}

	case FormatYAML:
		var doc document
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		records = doc.Persons

	case FormatTOML:
		var doc document
		if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("invalid TOML: %w", err)
		}
		records = doc.Persons

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}

	res := &Result{Persons: make([]person.Person, 0, len(records))}
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		p := rec.ToPerson()
		if p.ID == "" {
			res.Skipped = append(res.Skipped, fmt.Sprintf("record %d: missing id", i+1))
			continue
		}
		if seen[p.ID] {
			res.Skipped = append(res.Skipped, fmt.Sprintf("record %d (%s): duplicate id", i+1, p.ID))
			continue
		}
		if err := p.Validate(); err != nil {
			res.Skipped = append(res.Skipped, fmt.Sprintf("record %d (%s): %v", i+1, p.ID, err))
			continue
		}
		seen[p.ID] = true
		res.Persons = append(res.Persons, p)
	}
	return res, nil
}

// WriteFile exports persons to path, choosing the format from its extension.
// The file is replaced atomically.
func WriteFile(path string, persons []person.Person) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := Encode(&buf, f, persons); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// ReadFile imports a backup, choosing the format from the extension.
func ReadFile(path string) (*Result, error) {
	f, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	// #nosec G304 - path comes from the command line
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	defer file.Close()
	return Decode(file, f)
}
