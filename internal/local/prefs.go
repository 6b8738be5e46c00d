package local

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// PrefsKey is the KV key holding small user preferences.
const PrefsKey = "dating-memo-prefs"

// Prefs stores string preferences (such as the sync mode) in a KV.
type Prefs struct {
	kv KV
	mu sync.Mutex
}

// NewPrefs creates a Prefs over kv.
func NewPrefs(kv KV) *Prefs {
	return &Prefs{kv: kv}
}

// Get returns the value for name and whether it was set.
func (p *Prefs) Get(name string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, err := p.load()
	if err != nil {
		return "", false
	}
	v, ok := m[name]
	return v, ok
}

// Set stores value under name.
func (p *Prefs) Set(name, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, err := p.load()
	if err != nil {
		// Unreadable prefs are replaced rather than blocking the write.
		m = map[string]string{}
	}
	m[name] = value
	return p.store(m)
}

// Unset removes name.
func (p *Prefs) Unset(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, err := p.load()
	if err != nil {
		return nil
	}
	delete(m, name)
	return p.store(m)
}

func (p *Prefs) load() (map[string]string, error) {
	data, err := p.kv.Get(PrefsKey)
	if errors.Is(err, ErrKeyNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string]string{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse prefs: %w", err)
	}
	if m == nil {
		// A stored JSON null decodes to a nil map.
		m = map[string]string{}
	}
	return m, nil
}

func (p *Prefs) store(m map[string]string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal prefs: %w", err)
	}
	if err := p.kv.Set(PrefsKey, data); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
