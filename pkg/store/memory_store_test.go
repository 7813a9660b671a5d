package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fabricview/pkg/domain"
)

func testPreset(id, owner string, createdAt time.Time) domain.Preset {
	return domain.Preset{
		ID:         id,
		OwnerID:    owner,
		Name:       "Preset " + id,
		PatternRef: domain.Builtin("cheetah"),
		Settings:   json.RawMessage(`{"scale":1.5}`),
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestMemoryStoreUserEmailUnique(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SaveUser(domain.User{ID: "u1", Email: "a@example.com"}))
	err := s.SaveUser(domain.User{ID: "u2", Email: "a@example.com"})
	require.ErrorIs(t, err, ErrDuplicateKey)

	exists, err := s.HasUserEmail("a@example.com")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestMemoryStorePresetOwnerScoping(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	require.NoError(t, s.SavePreset(testPreset("p1", "alice", now)))

	_, found, err := s.GetPresetByOwner("bob", "p1")
	require.NoError(t, err)
	require.False(t, found, "foreign preset must look absent")

	deleted, err := s.DeletePresetByOwner("bob", "p1")
	require.NoError(t, err)
	require.False(t, deleted)

	deleted, err = s.DeletePresetByOwner("alice", "p1")
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = s.DeletePresetByOwner("alice", "p1")
	require.NoError(t, err)
	require.False(t, deleted, "second delete must see a missing row")
}

func TestMemoryStoreListPresetsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now().UTC()
	require.NoError(t, s.SavePreset(testPreset("old", "alice", base.Add(-time.Hour))))
	require.NoError(t, s.SavePreset(testPreset("new", "alice", base)))
	require.NoError(t, s.SavePreset(testPreset("other", "bob", base)))

	presets, err := s.ListPresetsByOwner("alice")
	require.NoError(t, err)
	require.Len(t, presets, 2)
	require.Equal(t, "new", presets[0].ID)
	require.Equal(t, "old", presets[1].ID)
}

func TestMemoryStoreShareSlugLifecycle(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	require.NoError(t, s.SavePreset(testPreset("p1", "alice", now)))
	require.NoError(t, s.SavePreset(testPreset("p2", "alice", now)))

	ok, err := s.AssignShareSlug("alice", "p1", "slug-1")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.AssignShareSlug("alice", "p2", "slug-1")
	require.ErrorIs(t, err, ErrDuplicateKey)

	p, found, err := s.GetPresetBySlug("slug-1")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, p.IsPublic)

	ok, err = s.SetPresetVisibility("alice", "p1", false)
	require.NoError(t, err)
	require.True(t, ok)

	p, found, err = s.GetPresetBySlug("slug-1")
	require.NoError(t, err)
	require.True(t, found, "slug survives unshare")
	require.False(t, p.IsPublic)
}

func TestMemoryStorePatternsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now().UTC()
	require.NoError(t, s.SavePattern(domain.Pattern{ID: "a", OwnerID: "alice", UploadedAt: base.Add(-time.Minute)}))
	require.NoError(t, s.SavePattern(domain.Pattern{ID: "b", OwnerID: "alice", UploadedAt: base}))

	patterns, err := s.ListPatternsByOwner("alice")
	require.NoError(t, err)
	require.Len(t, patterns, 2)
	require.Equal(t, "b", patterns[0].ID)
}
