package app

import "errors"

var (
	// ErrInvalidCredentials is returned for unknown email and wrong password
	// alike, so responses cannot be used for account enumeration.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	ErrEmailAndPasswordRequired = errors.New("email and password are required")
	ErrEmailAlreadyExists       = errors.New("email already registered")

	ErrFileRequired = errors.New("pattern file is required")
	ErrNotAnImage   = errors.New("uploaded file is not an image")

	ErrNameRequired      = errors.New("name is required")
	ErrPatternRequired   = errors.New("patternId is required")
	ErrSettingsNotObject = errors.New("settings must be a JSON object")

	// ErrNotFound covers both absent records and records owned by someone
	// else; callers cannot tell the two apart.
	ErrNotFound = errors.New("not found")
)
