package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type PatternModel struct {
	ID               string    `gorm:"primaryKey"`
	OwnerID          string    `gorm:"not null;index"`
	Owner            UserModel `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Filename         string    `gorm:"uniqueIndex;not null"`
	OriginalFilename string    `gorm:"not null"`
	ContentType      string
	SizeBytes        int64     `gorm:"not null"`
	CreatedAt        time.Time `gorm:"not null;index"`
}

type PresetModel struct {
	ID          string         `gorm:"primaryKey"`
	OwnerID     string         `gorm:"not null;index"`
	Owner       UserModel      `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Name        string         `gorm:"not null"`
	PatternKind string         `gorm:"not null"`
	PatternID   string         `gorm:"not null"`
	Settings    datatypes.JSON `gorm:"type:jsonb"`
	IsPublic    bool           `gorm:"not null"`
	ShareSlug   *string        `gorm:"uniqueIndex"`
	CreatedAt   time.Time      `gorm:"not null;index"`
	UpdatedAt   time.Time
}
