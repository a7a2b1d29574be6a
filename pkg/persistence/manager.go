// Package persistence saves and restores play-throughs: a local save
// collection in a storage.Store, optional mirroring to the game service, JSON
// export bundles and the periodic auto-saver.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starcourier/starcourier/pkg/apperr"
	"github.com/starcourier/starcourier/pkg/models"
	"github.com/starcourier/starcourier/pkg/storage"
)

// Session is the live game state the manager snapshots and restores.
type Session interface {
	Snapshot() models.Snapshot
	Restore(rec models.SaveRecord)
	Summary() models.GameSummary
	IsActive() bool
	IsOver() bool
	SetError(msg string)
}

// Remote mirrors saves to the game service.
type Remote interface {
	SaveCloud(ctx context.Context, playerID string, rec models.SaveRecord) error
	LoadCloud(ctx context.Context, playerID, saveID string) (*models.SaveRecord, error)
	ListCloud(ctx context.Context, playerID string) ([]models.SaveRecord, error)
	DeleteCloud(ctx context.Context, playerID, saveID string) error
}

// Manager owns the local save collection.
type Manager struct {
	session Session
	store   storage.Store
	remote  Remote

	// mu serializes the load-modify-persist unit of work on the collection.
	mu sync.Mutex

	cloudMu      sync.Mutex
	cloudEnabled bool
	lastRemote   error

	uploads sync.WaitGroup
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithRemote enables mirroring to r.
func WithRemote(r Remote) Option {
	return func(m *Manager) {
		m.remote = r
		m.cloudEnabled = r != nil
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager over session and store.
func New(session Session, store storage.Store, opts ...Option) *Manager {
	m := &Manager{session: session, store: store, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetCloudEnabled toggles mirroring. It has no effect without a Remote.
func (m *Manager) SetCloudEnabled(enabled bool) {
	m.cloudMu.Lock()
	m.cloudEnabled = enabled && m.remote != nil
	m.cloudMu.Unlock()
}

// CloudEnabled reports whether saves are mirrored.
func (m *Manager) CloudEnabled() bool {
	m.cloudMu.Lock()
	defer m.cloudMu.Unlock()
	return m.cloudEnabled
}

// LastRemoteError returns the most recent mirroring failure, or nil.
func (m *Manager) LastRemoteError() error {
	m.cloudMu.Lock()
	defer m.cloudMu.Unlock()
	return m.lastRemote
}

func (m *Manager) recordRemote(err error) {
	m.cloudMu.Lock()
	m.lastRemote = err
	m.cloudMu.Unlock()
}

// Save snapshots the session into a new record and appends it to the
// collection. An empty name becomes "Save #N".
func (m *Manager) Save(ctx context.Context, name string) (models.SaveRecord, error) {
	snap := m.session.Snapshot()

	id, err := uuid.NewV7()
	if err != nil {
		return models.SaveRecord{}, fmt.Errorf("generate save id: %w", err)
	}

	m.mu.Lock()
	saves, err := m.readLocked(ctx)
	if err != nil {
		m.mu.Unlock()
		return models.SaveRecord{}, err
	}
	if name == "" {
		name = fmt.Sprintf("Save #%d", len(saves)+1)
	}
	rec := models.SaveRecord{
		ID:              id.String(),
		Name:            name,
		CreatedAt:       m.now().UTC(),
		PlayerID:        snap.PlayerID,
		CurrentSceneID:  snap.CurrentSceneID,
		ChoicesMade:     snap.ChoicesMade,
		Stats:           snap.Stats,
		Relationships:   snap.Relationships.Clone(),
		Inventory:       append([]string(nil), snap.Inventory...),
		VisitedScenes:   append([]string(nil), snap.VisitedScenes...),
		ChoiceHistory:   append([]models.ChoiceRecord(nil), snap.ChoiceHistory...),
		StartedAt:       snap.StartedAt,
		PlaytimeSeconds: snap.PlaytimeSeconds,
	}
	saves = append(saves, rec)
	err = m.writeLocked(ctx, saves)
	m.mu.Unlock()
	if err != nil {
		return models.SaveRecord{}, err
	}

	log.Printf("persistence: saved %q (%s)", rec.Name, rec.ID)
	if m.CloudEnabled() && rec.PlayerID != "" {
		m.upload(rec)
	}
	return rec, nil
}

// upload mirrors rec in the background. Close waits for it.
func (m *Manager) upload(rec models.SaveRecord) {
	m.uploads.Add(1)
	go func() {
		defer m.uploads.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.remote.SaveCloud(ctx, rec.PlayerID, rec); err != nil {
			log.Printf("persistence: cloud upload %s failed: %v", rec.ID, err)
			m.recordRemote(err)
			return
		}
		m.recordRemote(nil)
	}()
}

// Load restores the session from the local save id.
func (m *Manager) Load(ctx context.Context, id string) (models.SaveRecord, error) {
	m.mu.Lock()
	saves, err := m.readLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		return models.SaveRecord{}, err
	}

	for _, rec := range saves {
		if rec.ID == id {
			m.session.Restore(rec)
			log.Printf("persistence: loaded %q (%s)", rec.Name, rec.ID)
			return rec, nil
		}
	}
	return models.SaveRecord{}, apperr.NotFound("save %q not found", id)
}

// LoadRemote restores the session from a mirrored save.
func (m *Manager) LoadRemote(ctx context.Context, playerID, id string) (models.SaveRecord, error) {
	if m.remote == nil {
		return models.SaveRecord{}, apperr.New(apperr.KindState, "cloud saves are not configured")
	}
	rec, err := m.remote.LoadCloud(ctx, playerID, id)
	if err != nil {
		m.recordRemote(err)
		return models.SaveRecord{}, err
	}
	m.session.Restore(*rec)
	log.Printf("persistence: loaded cloud save %s", rec.ID)
	return *rec, nil
}

// Delete removes a local save. With mirroring on, the remote copy is deleted
// too; a remote failure is returned but the local deletion stands.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	saves, err := m.readLocked(ctx)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	idx := -1
	for i := range saves {
		if saves[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return apperr.NotFound("save %q not found", id)
	}
	rec := saves[idx]
	saves = append(saves[:idx], saves[idx+1:]...)
	err = m.writeLocked(ctx, saves)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	log.Printf("persistence: deleted %s", id)

	if m.CloudEnabled() && rec.PlayerID != "" {
		if err := m.remote.DeleteCloud(ctx, rec.PlayerID, id); err != nil {
			m.recordRemote(err)
			return fmt.Errorf("delete cloud save: %w", err)
		}
	}
	return nil
}

// ListLocal returns the local collection in save order.
func (m *Manager) ListLocal(ctx context.Context) ([]models.SaveRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readLocked(ctx)
}

// ListRemote returns the mirrored saves of playerID. Failures yield an empty
// list; the error is available from LastRemoteError.
func (m *Manager) ListRemote(ctx context.Context, playerID string) []models.SaveRecord {
	if m.remote == nil {
		return nil
	}
	saves, err := m.remote.ListCloud(ctx, playerID)
	if err != nil {
		log.Printf("persistence: list cloud saves: %v", err)
		m.recordRemote(err)
		return nil
	}
	m.recordRemote(nil)
	return saves
}

// ClearAll removes the whole local collection.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Delete(ctx, storage.KeySavedGames); err != nil {
		return fmt.Errorf("clear saves: %w", err)
	}
	log.Printf("persistence: cleared all saves")
	return nil
}

// ExportAll serializes the live session summary and every local save.
func (m *Manager) ExportAll(ctx context.Context) ([]byte, error) {
	saves, err := m.ListLocal(ctx)
	if err != nil {
		return nil, err
	}
	if saves == nil {
		saves = []models.SaveRecord{}
	}
	bundle := models.ExportBundle{
		Version:     models.ExportVersion,
		ExportDate:  m.now().UTC(),
		CurrentGame: m.session.Summary(),
		SavedGames:  saves,
	}
	return json.MarshalIndent(bundle, "", "  ")
}

// ImportAll replaces the local collection with the bundle's saves. Only the
// presence of a version tag is checked.
func (m *Manager) ImportAll(ctx context.Context, data []byte) (*models.ExportBundle, error) {
	var probe struct {
		Version *string `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, err, "invalid format")
	}
	if probe.Version == nil || *probe.Version == "" {
		return nil, apperr.New(apperr.KindFormat, "invalid format: missing version")
	}

	var bundle models.ExportBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, err, "invalid format")
	}
	if bundle.Version != models.ExportVersion {
		log.Printf("persistence: importing bundle version %s", bundle.Version)
	}
	saves := bundle.SavedGames
	if saves == nil {
		saves = []models.SaveRecord{}
	}

	m.mu.Lock()
	err := m.writeLocked(ctx, saves)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	log.Printf("persistence: imported %d saves", len(saves))
	return &bundle, nil
}

// Close waits for background uploads to finish.
func (m *Manager) Close() {
	m.uploads.Wait()
}

func (m *Manager) readLocked(ctx context.Context) ([]models.SaveRecord, error) {
	data, ok, err := m.store.Get(ctx, storage.KeySavedGames)
	if err != nil {
		return nil, fmt.Errorf("read saves: %w", err)
	}
	if !ok || len(data) == 0 {
		return nil, nil
	}
	var saves []models.SaveRecord
	if err := json.Unmarshal(data, &saves); err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, err, "stored save collection is corrupted")
	}
	return saves, nil
}

func (m *Manager) writeLocked(ctx context.Context, saves []models.SaveRecord) error {
	data, err := json.Marshal(saves)
	if err != nil {
		return fmt.Errorf("encode saves: %w", err)
	}
	if err := m.store.Put(ctx, storage.KeySavedGames, data); err != nil {
		return fmt.Errorf("write saves: %w", err)
	}
	return nil
}
