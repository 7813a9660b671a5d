package app

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fabricview/pkg/domain"
	"fabricview/pkg/store"
)

const slugAttempts = 5

// CreatePreset persists a new private preset. The pattern reference resolves
// to an uploaded pattern when the id matches a pattern owned by the caller,
// and to a built-in pattern otherwise.
func (a *App) CreatePreset(userID, name, patternID string, settings json.RawMessage) (domain.Preset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Preset{}, ErrNameRequired
	}
	patternID = strings.TrimSpace(patternID)
	if patternID == "" {
		return domain.Preset{}, ErrPatternRequired
	}
	if !isJSONObject(settings) {
		return domain.Preset{}, ErrSettingsNotObject
	}

	ref, err := a.resolvePatternRef(userID, patternID)
	if err != nil {
		return domain.Preset{}, err
	}

	now := time.Now().UTC()
	preset := domain.Preset{
		ID:         uuid.NewString(),
		OwnerID:    userID,
		Name:       name,
		PatternRef: ref,
		Settings:   settings,
		IsPublic:   false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.store.SavePreset(preset); err != nil {
		return domain.Preset{}, fmt.Errorf("save preset: %w", err)
	}
	return preset, nil
}

// ListPresets returns the caller's presets, newest first.
func (a *App) ListPresets(userID string) ([]domain.Preset, error) {
	presets, err := a.store.ListPresetsByOwner(userID)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	return presets, nil
}

// GetPreset fetches one preset owned by the caller.
func (a *App) GetPreset(userID, id string) (domain.Preset, error) {
	preset, found, err := a.store.GetPresetByOwner(userID, id)
	if err != nil {
		return domain.Preset{}, fmt.Errorf("fetch preset: %w", err)
	}
	if !found {
		return domain.Preset{}, ErrNotFound
	}
	return preset, nil
}

// DeletePreset removes a preset owned by the caller. A retry observes
// NotFound.
func (a *App) DeletePreset(userID, id string) error {
	deleted, err := a.store.DeletePresetByOwner(userID, id)
	if err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// SharePreset makes a preset publicly resolvable and returns its slug and
// fully qualified share URL. Sharing an already-shared preset reuses the
// existing slug.
func (a *App) SharePreset(userID, id string) (slug, shareURL string, err error) {
	preset, found, err := a.store.GetPresetByOwner(userID, id)
	if err != nil {
		return "", "", fmt.Errorf("fetch preset: %w", err)
	}
	if !found {
		return "", "", ErrNotFound
	}

	if preset.ShareSlug != "" {
		ok, err := a.store.SetPresetVisibility(userID, id, true)
		if err != nil {
			return "", "", fmt.Errorf("publish preset: %w", err)
		}
		if !ok {
			return "", "", ErrNotFound
		}
		return preset.ShareSlug, a.shareURL(preset.ShareSlug), nil
	}

	for attempt := 0; attempt < slugAttempts; attempt++ {
		candidate := newShareSlug()
		ok, err := a.store.AssignShareSlug(userID, id, candidate)
		if errors.Is(err, store.ErrDuplicateKey) {
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("assign share slug: %w", err)
		}
		if !ok {
			return "", "", ErrNotFound
		}
		return candidate, a.shareURL(candidate), nil
	}
	return "", "", fmt.Errorf("assign share slug: exhausted %d attempts", slugAttempts)
}

// UnsharePreset makes a preset private again. The slug is retained so a
// later re-share hands out the same URL.
func (a *App) UnsharePreset(userID, id string) error {
	ok, err := a.store.SetPresetVisibility(userID, id, false)
	if err != nil {
		return fmt.Errorf("unpublish preset: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (a *App) resolvePatternRef(userID, patternID string) (domain.PatternRef, error) {
	pattern, found, err := a.store.GetPattern(patternID)
	if err != nil {
		return domain.PatternRef{}, fmt.Errorf("resolve pattern: %w", err)
	}
	if found && pattern.OwnerID == userID {
		return domain.Uploaded(patternID), nil
	}
	return domain.Builtin(patternID), nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	// json "null" also unmarshals into a map, so check the leading token.
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal(trimmed, &obj) == nil
}

func newShareSlug() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
