package domain

import (
	"encoding/json"
	"time"
)

// PatternKind discriminates where a pattern's image bytes live.
type PatternKind string

const (
	// PatternBuiltin identifies patterns shipped with the client; the server
	// stores no bytes for them.
	PatternBuiltin PatternKind = "builtin"
	// PatternUploaded identifies patterns whose image is held in object storage.
	PatternUploaded PatternKind = "uploaded"
)

// PatternRef is a tagged reference to either a built-in or an uploaded pattern.
type PatternRef struct {
	Kind PatternKind `json:"patternKind"`
	ID   string      `json:"patternId"`
}

// Builtin returns a reference to a client-side pattern.
func Builtin(id string) PatternRef {
	return PatternRef{Kind: PatternBuiltin, ID: id}
}

// Uploaded returns a reference to a server-stored pattern record.
func Uploaded(id string) PatternRef {
	return PatternRef{Kind: PatternUploaded, ID: id}
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Pattern is metadata for one uploaded image. The image bytes live in the
// object store under Filename; URL is filled in by the application layer.
type Pattern struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"-"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"-"`
	ContentType      string    `json:"-"`
	SizeBytes        int64     `json:"sizeBytes"`
	URL              string    `json:"url"`
	UploadedAt       time.Time `json:"uploadedAt"`
}

// Preset is a named, user-owned snapshot of visualization configuration.
// Settings is opaque below the API boundary.
type Preset struct {
	ID      string `json:"id"`
	OwnerID string `json:"-"`
	Name    string `json:"name"`
	PatternRef
	Settings  json.RawMessage `json:"settings"`
	IsPublic  bool            `json:"isPublic"`
	ShareSlug string          `json:"shareSlug,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ShareView is the read-only projection served for a public share slug.
// PatternURL is nil for built-in patterns.
type ShareView struct {
	Name       string
	Pattern    PatternRef
	Settings   json.RawMessage
	PatternURL *string
}

// MarshalJSON flattens the pattern reference into the share payload.
func (v ShareView) MarshalJSON() ([]byte, error) {
	type alias struct {
		Name        string          `json:"name"`
		PatternID   string          `json:"patternId"`
		PatternKind PatternKind     `json:"patternKind"`
		Settings    json.RawMessage `json:"settings"`
		PatternURL  *string         `json:"patternUrl"`
	}
	return json.Marshal(alias{
		Name:        v.Name,
		PatternID:   v.Pattern.ID,
		PatternKind: v.Pattern.Kind,
		Settings:    v.Settings,
		PatternURL:  v.PatternURL,
	})
}

// Identity is the verified caller attached to a request context by the
// authentication middleware.
type Identity struct {
	UserID string
	Email  string
}
