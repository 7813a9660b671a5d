package store

import (
	"sort"
	"sync"

	"fabricview/pkg/domain"
)

// MemoryStore keeps all records in-process. It mirrors the relational
// store's semantics (unique email, unique slug, owner-scoped reads) and is
// used by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	email    map[string]string // email -> user ID
	patterns map[string]domain.Pattern
	presets  map[string]domain.Preset
	slugs    map[string]string // slug -> preset ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		email:    make(map[string]string),
		patterns: make(map[string]domain.Pattern),
		presets:  make(map[string]domain.Preset),
		slugs:    make(map[string]string),
	}
}

// SaveUser registers a user, enforcing email uniqueness.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.email[u.Email]; taken {
		return ErrDuplicateKey
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// SavePattern records pattern metadata.
func (m *MemoryStore) SavePattern(p domain.Pattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns[p.ID] = p
	return nil
}

// GetPattern retrieves a pattern by ID.
func (m *MemoryStore) GetPattern(id string) (domain.Pattern, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patterns[id]
	return p, ok, nil
}

// ListPatternsByOwner returns the owner's patterns, newest first.
func (m *MemoryStore) ListPatternsByOwner(ownerID string) ([]domain.Pattern, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Pattern, 0)
	for _, p := range m.patterns {
		if p.OwnerID == ownerID {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].UploadedAt.After(res[j].UploadedAt)
	})
	return res, nil
}

// SavePreset creates a preset record.
func (m *MemoryStore) SavePreset(p domain.Preset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ShareSlug != "" {
		if _, taken := m.slugs[p.ShareSlug]; taken {
			return ErrDuplicateKey
		}
		m.slugs[p.ShareSlug] = p.ID
	}
	m.presets[p.ID] = p
	return nil
}

// GetPresetByOwner retrieves a preset scoped to its owner.
func (m *MemoryStore) GetPresetByOwner(ownerID, id string) (domain.Preset, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.presets[id]
	if !ok || p.OwnerID != ownerID {
		return domain.Preset{}, false, nil
	}
	return p, true, nil
}

// ListPresetsByOwner returns the owner's presets, newest first.
func (m *MemoryStore) ListPresetsByOwner(ownerID string) ([]domain.Preset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Preset, 0)
	for _, p := range m.presets {
		if p.OwnerID == ownerID {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// DeletePresetByOwner removes a preset when owned by the caller.
func (m *MemoryStore) DeletePresetByOwner(ownerID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.presets[id]
	if !ok || p.OwnerID != ownerID {
		return false, nil
	}
	if p.ShareSlug != "" {
		delete(m.slugs, p.ShareSlug)
	}
	delete(m.presets, id)
	return true, nil
}

// SetPresetVisibility flips is_public; the slug is left untouched.
func (m *MemoryStore) SetPresetVisibility(ownerID, id string, isPublic bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.presets[id]
	if !ok || p.OwnerID != ownerID {
		return false, nil
	}
	p.IsPublic = isPublic
	m.presets[id] = p
	return true, nil
}

// AssignShareSlug sets the slug and marks the preset public.
func (m *MemoryStore) AssignShareSlug(ownerID, id, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.presets[id]
	if !ok || p.OwnerID != ownerID {
		return false, nil
	}
	if owner, taken := m.slugs[slug]; taken && owner != id {
		return false, ErrDuplicateKey
	}
	if p.ShareSlug != "" {
		delete(m.slugs, p.ShareSlug)
	}
	p.ShareSlug = slug
	p.IsPublic = true
	m.presets[id] = p
	m.slugs[slug] = id
	return true, nil
}

// GetPresetBySlug resolves a preset by its public slug.
func (m *MemoryStore) GetPresetBySlug(slug string) (domain.Preset, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.slugs[slug]
	if !ok {
		return domain.Preset{}, false, nil
	}
	p, exists := m.presets[id]
	return p, exists, nil
}
