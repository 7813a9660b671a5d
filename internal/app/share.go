package app

import (
	"fmt"
	"strings"

	"fabricview/pkg/domain"
)

// ResolveShare returns the public view of a shared preset. Unknown slugs and
// private presets produce the same NotFound so existence never leaks.
func (a *App) ResolveShare(slug string) (domain.ShareView, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return domain.ShareView{}, ErrNotFound
	}
	preset, found, err := a.store.GetPresetBySlug(slug)
	if err != nil {
		return domain.ShareView{}, fmt.Errorf("resolve slug: %w", err)
	}
	if !found || !preset.IsPublic {
		return domain.ShareView{}, ErrNotFound
	}

	view := domain.ShareView{
		Name:     preset.Name,
		Pattern:  preset.PatternRef,
		Settings: preset.Settings,
	}
	if preset.Kind == domain.PatternUploaded {
		pattern, found, err := a.store.GetPattern(preset.PatternRef.ID)
		if err != nil {
			return domain.ShareView{}, fmt.Errorf("resolve pattern: %w", err)
		}
		if found {
			url := a.patternURL(pattern.Filename)
			view.PatternURL = &url
		}
	}
	return view, nil
}
