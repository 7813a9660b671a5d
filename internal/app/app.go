package app

import (
	"fmt"
	"strings"
	"time"

	"fabricview/internal/usertoken"
	"fabricview/pkg/store"
	"fabricview/pkg/storage"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	PublicBaseURL string

	JWTSecret  string
	SessionTTL time.Duration

	StorageDriver  string
	StorageDir     string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Injectable for tests; built from the fields above when nil.
	Store   store.Store
	Objects storage.ObjectStore
	Tokens  *usertoken.Manager
}

// App is the core application service wiring storage, blobs and tokens.
type App struct {
	store   store.Store
	objects storage.ObjectStore
	tokens  *usertoken.Manager
	baseURL string
}

// New constructs the application with database and blob storage.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	objects := cfg.Objects
	if objects == nil {
		var err error
		switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
		case "minio":
			objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
			if err != nil {
				return nil, fmt.Errorf("init minio store: %w", err)
			}
		case "", "disk":
			objects, err = storage.NewDiskStore(cfg.StorageDir)
			if err != nil {
				return nil, fmt.Errorf("init disk store: %w", err)
			}
		default:
			return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
		}
	}

	tokens := cfg.Tokens
	if tokens == nil {
		var err error
		tokens, err = usertoken.NewManager(usertoken.Config{
			Secret: cfg.JWTSecret,
			TTL:    cfg.SessionTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("init token manager: %w", err)
		}
	}

	return &App{
		store:   dataStore,
		objects: objects,
		tokens:  tokens,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
	}, nil
}

func (a *App) patternURL(filename string) string {
	return a.baseURL + "/uploads/" + filename
}

func (a *App) shareURL(slug string) string {
	return a.baseURL + "/share/" + slug
}
