// Package local implements durable on-device CRUD for Person records.
//
// The whole collection lives under one namespaced key of a KV as a JSON array with
// RFC3339 timestamps, the same shape the records have everywhere else:
//
//	KV["dating-memo-data"] = [{"id": "...", "name": "...", "createdAt": "...", ...}, ...]
//
// Reads never fail: an absent, unreadable or malformed value reads as an empty
// collection. Writes are verified by reading the value back, and every successful
// write is published on the notify bus so other views can refresh.
package local

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datememo/datememo/internal/notify"
	"github.com/datememo/datememo/internal/person"
)

// DefaultKey is the namespaced key holding the collection.
const DefaultKey = "dating-memo-data"

var (
	// ErrPersistence is returned when a write cannot be verified.
	ErrPersistence = errors.New("failed to persist local data")

	// ErrNotFound is returned by Update when no record has the given id.
	ErrNotFound = errors.New("person not found")
)

// envelope is the versioned blob shape; the bare array is also accepted.
type envelope struct {
	Version int             `json:"version"`
	Persons []person.Person `json:"persons"`
}

// Store is the local store adapter.
type Store struct {
	kv     KV
	key    string
	pub    notify.Publisher
	logger *log.Logger
	now    func() time.Time
	newID  func() string

	// mu serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithPublisher sets where change notifications go.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Store) { s.pub = p }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides UUID generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// New creates a Store over kv.
func New(kv KV, opts ...Option) *Store {
	s := &Store{
		kv:    kv,
		key:   DefaultKey,
		pub:   notify.Nop{},
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(os.Stderr, "[local] ", log.LstdFlags)
	}
	return s
}

// Key returns the KV key holding the collection.
func (s *Store) Key() string { return s.key }

// GetAll returns every record. It never fails; problems are logged and read as empty.
func (s *Store) GetAll() []person.Person {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the record with id.
func (s *Store) Get(id string) (person.Person, bool) {
	for _, p := range s.GetAll() {
		if p.ID == id {
			return p, true
		}
	}
	return person.Person{}, false
}

// Add validates profile, assigns a fresh id and timestamps, and persists it.
func (s *Store) Add(profile person.Profile) (person.Person, error) {
	profile.Normalize()
	if err := profile.Validate(); err != nil {
		return person.Person{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.stamp()
	p := person.Person{
		ID:        s.newID(),
		Profile:   profile,
		CreatedAt: now,
		UpdatedAt: now,
	}

	all := s.load()
	all = append(all, p)
	if err := s.save(all); err != nil {
		return person.Person{}, err
	}

	s.logger.Printf("Added person: %s (%s)", p.ID, p.Name)
	s.pub.Publish(notify.Event{Kind: notify.KindPersonAdded, PersonID: p.ID, Count: len(all)})
	return p, nil
}

// Update merges patch over the record with id and refreshes UpdatedAt.
// Returns ErrNotFound if id is absent.
func (s *Store) Update(id string, patch person.Patch) (person.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.load()
	idx := indexOf(all, id)
	if idx < 0 {
		return person.Person{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	updated := all[idx].Clone()
	if err := patch.Apply(&updated); err != nil {
		return person.Person{}, err
	}
	updated.Profile.Normalize()

	// UpdatedAt never moves backwards, even if the wall clock does.
	now := s.stamp()
	if now.Before(updated.UpdatedAt) {
		now = updated.UpdatedAt
	}
	updated.UpdatedAt = now

	if err := updated.Validate(); err != nil {
		return person.Person{}, err
	}

	all[idx] = updated
	if err := s.save(all); err != nil {
		return person.Person{}, err
	}

	s.logger.Printf("Updated person: %s (%s)", updated.ID, updated.Name)
	s.pub.Publish(notify.Event{Kind: notify.KindPersonUpdated, PersonID: id, Count: len(all)})
	return updated, nil
}

// Delete removes the record with id. It reports whether a record was removed; a
// missing id leaves the collection untouched and is not an error.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.load()
	idx := indexOf(all, id)
	if idx < 0 {
		return false, nil
	}

	remaining := append(all[:idx:idx], all[idx+1:]...)
	if err := s.save(remaining); err != nil {
		return false, err
	}

	s.logger.Printf("Deleted person: %s", id)
	s.pub.Publish(notify.Event{Kind: notify.KindPersonDeleted, PersonID: id, Count: len(remaining)})
	return true, nil
}

// ReplaceAll overwrites the collection, e.g. with a reconciled or freshly fetched set.
// Nothing is written or published when the stored value would not change.
func (s *Store) ReplaceAll(persons []person.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]person.Person, 0, len(persons))
	for _, p := range persons {
		p = p.Clone()
		p.SetDefaults()
		all = append(all, p)
	}

	if current, err := s.kv.Get(s.key); err == nil {
		if next, err := json.Marshal(all); err == nil && bytes.Equal(current, next) {
			return nil
		}
	}

	if err := s.save(all); err != nil {
		return err
	}

	s.logger.Printf("Replaced local collection: %d persons", len(all))
	s.pub.Publish(notify.Event{Kind: notify.KindLocalReplaced, Count: len(all)})
	return nil
}

// load reads and decodes the collection. Caller holds mu.
func (s *Store) load() []person.Person {
	data, err := s.kv.Get(s.key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.logger.Printf("WARNING: failed to read local data: %v", err)
		}
		return []person.Person{}
	}

	persons, err := decode(data)
	if err != nil {
		s.logger.Printf("WARNING: ignoring unreadable local data: %v", err)
		return []person.Person{}
	}
	return persons
}

// save encodes, writes and reads back the collection. Caller holds mu.
func (s *Store) save(persons []person.Person) error {
	data, err := json.Marshal(persons)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := s.kv.Set(s.key, data); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	stored, err := s.kv.Get(s.key)
	if err != nil {
		return fmt.Errorf("%w: read back failed: %v", ErrPersistence, err)
	}
	if !bytes.Equal(stored, data) {
		return fmt.Errorf("%w: read back %d bytes, wrote %d", ErrPersistence, len(stored), len(data))
	}
	return nil
}

func (s *Store) stamp() time.Time {
	// Round(0) drops the monotonic reading so values compare equal after a JSON round trip.
	return s.now().UTC().Round(0)
}

func decode(data []byte) ([]person.Person, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []person.Person{}, nil
	}

	var persons []person.Person
	if data[0] == '{' {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("failed to parse local data: %w", err)
		}
		persons = env.Persons
	} else if err := json.Unmarshal(data, &persons); err != nil {
		return nil, fmt.Errorf("failed to parse local data: %w", err)
	}

	out := make([]person.Person, 0, len(persons))
	for _, p := range persons {
		p.SetDefaults()
		out = append(out, p)
	}
	return out, nil
}

func indexOf(persons []person.Person, id string) int {
	for i, p := range persons {
		if p.ID == id {
			return i
		}
	}
	return -1
}
