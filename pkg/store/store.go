package store

import (
	"errors"

	"fabricview/pkg/domain"
)

// ErrDuplicateKey is returned when a unique constraint is violated
// (registered email, share slug).
var ErrDuplicateKey = errors.New("duplicate key")

// Store abstracts persistence for users, patterns and presets.
//
// All preset lookups and mutations are keyed by (owner, id): a row owned by
// another user behaves exactly like a missing row. Mutations that report a
// bool return false when no row matched.
type Store interface {
	SaveUser(u domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	SavePattern(p domain.Pattern) error
	GetPattern(id string) (domain.Pattern, bool, error)
	ListPatternsByOwner(ownerID string) ([]domain.Pattern, error)

	SavePreset(p domain.Preset) error
	GetPresetByOwner(ownerID, id string) (domain.Preset, bool, error)
	ListPresetsByOwner(ownerID string) ([]domain.Preset, error)
	DeletePresetByOwner(ownerID, id string) (bool, error)

	// SetPresetVisibility flips is_public without touching the slug, so an
	// unshared preset keeps its slug for stable re-sharing.
	SetPresetVisibility(ownerID, id string, isPublic bool) (bool, error)

	// AssignShareSlug sets the slug and marks the preset public in one
	// conditional update. Returns ErrDuplicateKey when the slug is taken.
	AssignShareSlug(ownerID, id, slug string) (bool, error)

	GetPresetBySlug(slug string) (domain.Preset, bool, error)
}
