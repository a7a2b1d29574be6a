package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/starcourier/starcourier/pkg/api"
	"github.com/starcourier/starcourier/pkg/apperr"
	"github.com/starcourier/starcourier/pkg/models"
	"github.com/starcourier/starcourier/pkg/storage"
	"github.com/starcourier/starcourier/pkg/storage/memory"
	"github.com/starcourier/starcourier/pkg/storage/sqlite"
	"github.com/starcourier/starcourier/testutil"
)

type fakeSession struct {
	mu       sync.Mutex
	snap     models.Snapshot
	active   bool
	over     bool
	errMsg   string
	restored []models.SaveRecord
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		active: true,
		snap: models.Snapshot{
			PlayerID:       "player_12345",
			CurrentSceneID: "scene_2",
			ChoicesMade:    3,
			Stats:          models.DefaultStats(),
			Relationships:  models.DefaultRelationships(),
			Inventory:      models.DefaultInventory(),
			VisitedScenes:  []string{"scene_2", "start"},
		},
	}
}

func (f *fakeSession) Snapshot() models.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSession) Restore(rec models.SaveRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = append(f.restored, rec)
	f.snap.CurrentSceneID = rec.CurrentSceneID
	f.snap.Stats = rec.Stats
	f.active = true
}

func (f *fakeSession) Summary() models.GameSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.GameSummary{PlayerID: f.snap.PlayerID, CurrentScene: f.snap.CurrentSceneID, Stats: f.snap.Stats}
}

func (f *fakeSession) IsActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeSession) IsOver() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.over
}

func (f *fakeSession) SetError(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errMsg = msg
}

func (f *fakeSession) setStats(s models.Stats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap.Stats = s
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *fakeSession) {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "saves.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	sess := newFakeSession()
	return New(sess, s, opts...), sess
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	m, sess := newTestManager(t)
	ctx := context.Background()

	before := sess.Snapshot()
	rec, err := m.Save(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Name != "Save #1" {
		t.Errorf("name = %q, want Save #1", rec.Name)
	}
	if rec.ID == "" {
		t.Error("expected an id")
	}

	sess.setStats(models.DefaultStats().Apply(models.StatChanges{models.StatHealth: -90}))

	got, err := m.Load(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Stats != before.Stats {
		t.Errorf("stats = %+v, want %+v", got.Stats, before.Stats)
	}
	if !reflect.DeepEqual(got.Relationships, before.Relationships) {
		t.Errorf("relationships = %v", got.Relationships)
	}
	if !reflect.DeepEqual(got.Inventory, before.Inventory) {
		t.Errorf("inventory = %v", got.Inventory)
	}
	if got.CurrentSceneID != before.CurrentSceneID || got.ChoicesMade != before.ChoicesMade {
		t.Errorf("scene/choices = %s/%d", got.CurrentSceneID, got.ChoicesMade)
	}
	if sess.Snapshot().Stats.Health != 100 {
		t.Errorf("session not restored: %+v", sess.Snapshot().Stats)
	}
}

func TestSaveIDsAreUniqueAndOrdered(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	a, _ := m.Save(ctx, "a")
	b, _ := m.Save(ctx, "")
	if a.ID == b.ID {
		t.Fatal("duplicate ids")
	}
	if b.Name != "Save #2" {
		t.Errorf("name = %q, want Save #2", b.Name)
	}
	saves, err := m.ListLocal(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(saves) != 2 || saves[0].ID != a.ID || saves[1].ID != b.ID {
		t.Errorf("unexpected order: %+v", saves)
	}
}

func TestLoadMissing(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Load(context.Background(), "nope")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestDelete(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	rec, _ := m.Save(ctx, "x")
	if err := m.Delete(ctx, rec.ID); err != nil {
		t.Fatal(err)
	}
	saves, _ := m.ListLocal(ctx)
	if len(saves) != 0 {
		t.Errorf("expected empty collection, got %d", len(saves))
	}
	if err := m.Delete(ctx, rec.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestExportImport(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, _ = m.Save(ctx, "one")
	_, _ = m.Save(ctx, "two")

	data, err := m.ExportAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var bundle models.ExportBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		t.Fatal(err)
	}
	if bundle.Version != "1.0.0" || len(bundle.SavedGames) != 2 {
		t.Errorf("unexpected bundle: version=%s saves=%d", bundle.Version, len(bundle.SavedGames))
	}
	if bundle.CurrentGame.PlayerID != "player_12345" {
		t.Errorf("current game = %+v", bundle.CurrentGame)
	}

	if err := m.ClearAll(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ImportAll(ctx, data); err != nil {
		t.Fatal(err)
	}
	saves, _ := m.ListLocal(ctx)
	if len(saves) != 2 || saves[1].Name != "two" {
		t.Errorf("unexpected saves after import: %+v", saves)
	}
}

func TestImportReplacesCollection(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, _ = m.Save(ctx, "local")
	if _, err := m.ImportAll(ctx, []byte(`{"version":"9.9.9","savedGames":[{"id":"x","name":"imported"}]}`)); err != nil {
		t.Fatalf("unknown version should be accepted: %v", err)
	}
	saves, _ := m.ListLocal(ctx)
	if len(saves) != 1 || saves[0].Name != "imported" {
		t.Errorf("expected wholesale replace, got %+v", saves)
	}
}

func TestImportRejectsBadBundles(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for _, in := range []string{`{"savedGames":[]}`, `{"version":""}`, `not json`} {
		if _, err := m.ImportAll(ctx, []byte(in)); !apperr.IsKind(err, apperr.KindFormat) {
			t.Errorf("ImportAll(%s) err = %v, want format", in, err)
		}
	}
}

func TestCorruptedCollection(t *testing.T) {
	store := memory.New()
	_ = store.Put(context.Background(), storage.KeySavedGames, []byte(`{broken`))
	m := New(newFakeSession(), store)

	if _, err := m.ListLocal(context.Background()); !apperr.IsKind(err, apperr.KindFormat) {
		t.Errorf("err = %v, want format", err)
	}
}

func TestConcurrentSavesKeepEveryRecord(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Save(ctx, "concurrent"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	saves, _ := m.ListLocal(ctx)
	if len(saves) != 10 {
		t.Errorf("saves = %d, want 10", len(saves))
	}
}

func TestCloudMirroring(t *testing.T) {
	gs := testutil.NewGameServer()
	defer gs.Close()
	client := api.New(gs.BaseURL(), api.WithoutLogging())
	m, _ := newTestManager(t, WithRemote(client))
	ctx := context.Background()

	rec, err := m.Save(ctx, "mirrored")
	if err != nil {
		t.Fatal(err)
	}
	m.Close()

	remote := m.ListRemote(ctx, "player_12345")
	if len(remote) != 1 || remote[0].ID != rec.ID {
		t.Fatalf("remote = %+v", remote)
	}

	got, err := m.LoadRemote(ctx, "player_12345", rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "mirrored" {
		t.Errorf("name = %q", got.Name)
	}

	if err := m.Delete(ctx, rec.ID); err != nil {
		t.Fatal(err)
	}
	if len(gs.CloudSaves("player_12345")) != 0 {
		t.Error("expected remote deletion")
	}
}

type failingRemote struct{}

var errRemote = errors.New("remote down")

func (failingRemote) SaveCloud(context.Context, string, models.SaveRecord) error { return errRemote }
func (failingRemote) LoadCloud(context.Context, string, string) (*models.SaveRecord, error) {
	return nil, errRemote
}
func (failingRemote) ListCloud(context.Context, string) ([]models.SaveRecord, error) {
	return nil, errRemote
}
func (failingRemote) DeleteCloud(context.Context, string, string) error { return errRemote }

func TestRemoteFailuresAreRecorded(t *testing.T) {
	m, _ := newTestManager(t, WithRemote(failingRemote{}))
	ctx := context.Background()

	rec, err := m.Save(ctx, "local wins")
	if err != nil {
		t.Fatalf("local save must succeed despite remote failure: %v", err)
	}
	m.Close()
	if !errors.Is(m.LastRemoteError(), errRemote) {
		t.Errorf("last remote error = %v", m.LastRemoteError())
	}

	if saves := m.ListRemote(ctx, "player_12345"); len(saves) != 0 {
		t.Errorf("expected empty remote list, got %d", len(saves))
	}

	err = m.Delete(ctx, rec.ID)
	if !errors.Is(err, errRemote) {
		t.Errorf("err = %v, want remote error", err)
	}
	saves, _ := m.ListLocal(ctx)
	if len(saves) != 0 {
		t.Error("local deletion must not be rolled back")
	}
}

func TestCloudToggle(t *testing.T) {
	m, _ := newTestManager(t)
	m.SetCloudEnabled(true)
	if m.CloudEnabled() {
		t.Error("cloud cannot be enabled without a remote")
	}

	m2, _ := newTestManager(t, WithRemote(failingRemote{}))
	m2.SetCloudEnabled(false)
	if _, err := m2.Save(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	m2.Close()
	if m2.LastRemoteError() != nil {
		t.Error("disabled mirroring should not upload")
	}
}

func TestSaveUsesClock(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m, _ := newTestManager(t, WithClock(func() time.Time { return at }))
	rec, err := m.Save(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.CreatedAt.Equal(at) {
		t.Errorf("created = %v, want %v", rec.CreatedAt, at)
	}
}
