package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fabricview/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &PatternModel{}, &PresetModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return err
}

// SaveUser registers a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	if err := s.db.Create(&model).Error; err != nil {
		return translateErr(err)
	}
	return nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SavePattern records uploaded pattern metadata.
func (s *GormStore) SavePattern(p domain.Pattern) error {
	model := patternToModel(p)
	if err := s.db.Create(&model).Error; err != nil {
		return translateErr(err)
	}
	return nil
}

// GetPattern retrieves a pattern by ID.
func (s *GormStore) GetPattern(id string) (domain.Pattern, bool, error) {
	var model PatternModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Pattern{}, false, nil
		}
		return domain.Pattern{}, false, err
	}
	return patternFromModel(model), true, nil
}

// ListPatternsByOwner returns the owner's patterns, newest first.
func (s *GormStore) ListPatternsByOwner(ownerID string) ([]domain.Pattern, error) {
	var models []PatternModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Pattern, 0, len(models))
	for _, m := range models {
		res = append(res, patternFromModel(m))
	}
	return res, nil
}

// SavePreset creates a preset record.
func (s *GormStore) SavePreset(p domain.Preset) error {
	model := presetToModel(p)
	if err := s.db.Create(&model).Error; err != nil {
		return translateErr(err)
	}
	return nil
}

// GetPresetByOwner retrieves a preset scoped to its owner.
func (s *GormStore) GetPresetByOwner(ownerID, id string) (domain.Preset, bool, error) {
	var model PresetModel
	if err := s.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Preset{}, false, nil
		}
		return domain.Preset{}, false, err
	}
	return presetFromModel(model), true, nil
}

// ListPresetsByOwner returns the owner's presets, newest first.
func (s *GormStore) ListPresetsByOwner(ownerID string) ([]domain.Preset, error) {
	var models []PresetModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Preset, 0, len(models))
	for _, m := range models {
		res = append(res, presetFromModel(m))
	}
	return res, nil
}

// DeletePresetByOwner removes a preset in one conditional delete.
func (s *GormStore) DeletePresetByOwner(ownerID, id string) (bool, error) {
	res := s.db.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&PresetModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetPresetVisibility flips is_public; the slug is left untouched.
func (s *GormStore) SetPresetVisibility(ownerID, id string, isPublic bool) (bool, error) {
	res := s.db.Model(&PresetModel{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(map[string]any{
			"is_public":  isPublic,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AssignShareSlug sets the slug and marks the preset public in one update.
// The slug's unique index surfaces collisions as ErrDuplicateKey.
func (s *GormStore) AssignShareSlug(ownerID, id, slug string) (bool, error) {
	res := s.db.Model(&PresetModel{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(map[string]any{
			"share_slug": slug,
			"is_public":  true,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, translateErr(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// GetPresetBySlug resolves a preset by its public slug, owner-agnostic.
func (s *GormStore) GetPresetBySlug(slug string) (domain.Preset, bool, error) {
	var model PresetModel
	if err := s.db.Where("share_slug = ?", slug).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Preset{}, false, nil
		}
		return domain.Preset{}, false, err
	}
	return presetFromModel(model), true, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func patternToModel(p domain.Pattern) PatternModel {
	return PatternModel{
		ID:               p.ID,
		OwnerID:          p.OwnerID,
		Filename:         p.Filename,
		OriginalFilename: p.OriginalFilename,
		ContentType:      p.ContentType,
		SizeBytes:        p.SizeBytes,
		CreatedAt:        p.UploadedAt,
	}
}

func patternFromModel(m PatternModel) domain.Pattern {
	return domain.Pattern{
		ID:               m.ID,
		OwnerID:          m.OwnerID,
		Filename:         m.Filename,
		OriginalFilename: m.OriginalFilename,
		ContentType:      m.ContentType,
		SizeBytes:        m.SizeBytes,
		UploadedAt:       m.CreatedAt,
	}
}

func presetToModel(p domain.Preset) PresetModel {
	var slug *string
	if strings.TrimSpace(p.ShareSlug) != "" {
		value := strings.TrimSpace(p.ShareSlug)
		slug = &value
	}
	return PresetModel{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		PatternKind: string(p.Kind),
		PatternID:   p.PatternRef.ID,
		Settings:    datatypes.JSON(p.Settings),
		IsPublic:    p.IsPublic,
		ShareSlug:   slug,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func presetFromModel(m PresetModel) domain.Preset {
	slug := ""
	if m.ShareSlug != nil {
		slug = strings.TrimSpace(*m.ShareSlug)
	}
	return domain.Preset{
		ID:      m.ID,
		OwnerID: m.OwnerID,
		Name:    m.Name,
		PatternRef: domain.PatternRef{
			Kind: domain.PatternKind(m.PatternKind),
			ID:   m.PatternID,
		},
		Settings:  json.RawMessage(m.Settings),
		IsPublic:  m.IsPublic,
		ShareSlug: slug,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
