package main

import (
	"context"
	"fmt"
	"log"

	"github.com/starcourier/starcourier/pkg/achievements"
	"github.com/starcourier/starcourier/pkg/api"
	"github.com/starcourier/starcourier/pkg/cache"
	"github.com/starcourier/starcourier/pkg/config"
	"github.com/starcourier/starcourier/pkg/game"
	"github.com/starcourier/starcourier/pkg/models"
	"github.com/starcourier/starcourier/pkg/persistence"
	"github.com/starcourier/starcourier/pkg/storage"
	"github.com/starcourier/starcourier/pkg/ui"
)

// app is the wired client used by every command.
type app struct {
	cfg          *config.Config
	client       *api.Client
	store        storage.Store
	session      *game.Session
	saves        *persistence.Manager
	autosave     *persistence.AutoSaver
	game         *game.Store
	notes        *ui.Notifications
	settings     *ui.Settings
	modals       *ui.Modals
	achievements *achievements.Tracker

	detach []func()
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}

	driver, opts := cfg.StorageOptions()
	store, err := storage.Open(driver, opts...)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	client := api.New(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetry(cfg.RetryPolicy()),
		api.WithCache(cache.New[string, []byte](cfg.Cache.MaxEntries, cfg.Cache.TTL)),
	)

	a := &app{
		cfg:      cfg,
		client:   client,
		store:    store,
		session:  game.NewSession(),
		notes:    ui.NewNotifications(),
		settings: ui.NewSettings(store),
		modals:   ui.NewModals(),
	}

	var mopts []persistence.Option
	if cfg.Cloud.Enabled {
		mopts = append(mopts, persistence.WithRemote(client))
	}
	a.saves = persistence.New(a.session, store, mopts...)
	a.autosave = persistence.NewAutoSaver(a.saves, cfg.AutoSave.Interval)
	a.autosave.OnSave = func(err error) {
		if err == nil {
			a.notes.Info("Auto-saved")
		}
	}
	a.game = game.NewStore(a.session, client, a.saves,
		game.WithAutoSaver(a.autosave),
		game.WithNotifier(a.notes),
	)

	a.achievements = achievements.NewTracker(func(ach achievements.Achievement) {
		a.notes.Achievement(ach.Title, ach.Description)
	})
	a.detach = append(a.detach, a.achievements.Attach(a.session))

	if err := a.settings.Load(ctx); err != nil {
		log.Printf("starcourier: %v; using default ui settings", err)
	}
	a.applyAutoSave(a.settings.Get())
	a.detach = append(a.detach, a.settings.Subscribe(a.applyAutoSave))
	return a, nil
}

// applyAutoSave follows the persisted preferences. The config file can only
// switch auto-save off; its interval applies while the preferences carry none.
func (a *app) applyAutoSave(s models.UISettings) {
	a.autosave.SetEnabled(a.cfg.AutoSave.Enabled && s.Settings.AutoSaveEnabled)
	if d := s.Settings.AutoSavePeriod(); d > 0 {
		a.autosave.SetInterval(d)
	}
}

func (a *app) playView() *playView {
	return &playView{game: a.game, modals: a.modals, achievements: a.achievements}
}

func (a *app) Close() {
	for _, fn := range a.detach {
		fn()
	}
	a.autosave.Stop()
	a.saves.Close()
	a.notes.Clear()
	if err := a.store.Close(); err != nil {
		log.Printf("starcourier: close storage: %v", err)
	}
}
