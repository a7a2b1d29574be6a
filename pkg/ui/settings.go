package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/starcourier/starcourier/pkg/apperr"
	"github.com/starcourier/starcourier/pkg/models"
	"github.com/starcourier/starcourier/pkg/storage"
)

// Settings is the persisted UI settings blob.
type Settings struct {
	store storage.Store

	mu  sync.Mutex
	cur models.UISettings

	subMu   sync.Mutex
	subs    map[int]func(models.UISettings)
	nextSub int
}

// NewSettings returns factory settings backed by store. Call Load to read
// the stored blob.
func NewSettings(store storage.Store) *Settings {
	return &Settings{
		store: store,
		cur:   models.DefaultUISettings(),
		subs:  make(map[int]func(models.UISettings)),
	}
}

// Subscribe registers fn for every change.
func (s *Settings) Subscribe(fn func(models.UISettings)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Settings) publish(v models.UISettings) {
	s.subMu.Lock()
	fns := make([]func(models.UISettings), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

// Get returns the current settings.
func (s *Settings) Get() models.UISettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Load reads the stored blob. Fields missing from it keep their defaults.
func (s *Settings) Load(ctx context.Context) error {
	data, ok, err := s.store.Get(ctx, storage.KeyUISettings)
	if err != nil {
		return fmt.Errorf("load ui settings: %w", err)
	}
	if !ok {
		return nil
	}

	merged := models.DefaultUISettings()
	if err := json.Unmarshal(data, &merged); err != nil {
		return apperr.Wrap(apperr.KindFormat, err, "stored ui settings are corrupted")
	}
	s.mu.Lock()
	s.cur = merged
	s.mu.Unlock()
	s.publish(merged)
	return nil
}

// update applies fn and persists the result.
func (s *Settings) update(ctx context.Context, fn func(*models.UISettings)) error {
	s.mu.Lock()
	fn(&s.cur)
	v := s.cur
	s.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode ui settings: %w", err)
	}
	if err := s.store.Put(ctx, storage.KeyUISettings, data); err != nil {
		return fmt.Errorf("save ui settings: %w", err)
	}
	s.publish(v)
	return nil
}

// Reset restores factory settings and persists them.
func (s *Settings) Reset(ctx context.Context) error {
	log.Printf("ui: settings reset")
	return s.update(ctx, func(v *models.UISettings) { *v = models.DefaultUISettings() })
}

// ToggleDarkMode flips the theme.
func (s *Settings) ToggleDarkMode(ctx context.Context) error {
	return s.update(ctx, func(v *models.UISettings) { v.IsDarkMode = !v.IsDarkMode })
}

// ToggleSidebar flips the sidebar.
func (s *Settings) ToggleSidebar(ctx context.Context) error {
	return s.update(ctx, func(v *models.UISettings) { v.SidebarOpen = !v.SidebarOpen })
}

// ToggleSound flips sound effects.
func (s *Settings) ToggleSound(ctx context.Context) error {
	return s.update(ctx, func(v *models.UISettings) { v.SoundEnabled = !v.SoundEnabled })
}

// ToggleMusic flips background music.
func (s *Settings) ToggleMusic(ctx context.Context) error {
	return s.update(ctx, func(v *models.UISettings) { v.MusicEnabled = !v.MusicEnabled })
}

// SetTextSize accepts small, medium or large.
func (s *Settings) SetTextSize(ctx context.Context, size string) error {
	switch size {
	case models.TextSmall, models.TextMedium, models.TextLarge:
	default:
		return apperr.Validation("unknown text size %q", size)
	}
	return s.update(ctx, func(v *models.UISettings) { v.Settings.TextSize = size })
}

// SetAutoSave switches auto-save and, when interval is positive, changes
// its period.
func (s *Settings) SetAutoSave(ctx context.Context, enabled bool, interval time.Duration) error {
	return s.update(ctx, func(v *models.UISettings) {
		v.Settings.AutoSaveEnabled = enabled
		if interval > 0 {
			v.Settings.AutoSaveInterval = interval.Milliseconds()
		}
	})
}

// UpdatePreferences applies fn to the nested preferences and persists them.
func (s *Settings) UpdatePreferences(ctx context.Context, fn func(*models.Preferences)) error {
	return s.update(ctx, func(v *models.UISettings) { fn(&v.Settings) })
}
