package game

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/starcourier/starcourier/pkg/api"
	"github.com/starcourier/starcourier/pkg/apperr"
	"github.com/starcourier/starcourier/pkg/models"
	"github.com/starcourier/starcourier/pkg/persistence"
)

// Gateway is the part of the API client the store drives.
type Gateway interface {
	StartGame(ctx context.Context, playerID string) (*models.StartResponse, error)
	MakeChoice(ctx context.Context, playerID, nextSceneID string, changes models.StatChanges) (*models.ChoiceResponse, error)
	GetScene(ctx context.Context, sceneID string) (*models.Scene, error)
	GetPlayerStats(ctx context.Context, playerID string) (*models.PlayerStatsResponse, error)
}

// Notifier surfaces messages to the player.
type Notifier interface {
	Success(message string) string
	Warning(message string) string
	Error(message string) string
}

// Store runs game actions against the session.
type Store struct {
	session  *Session
	gateway  Gateway
	saves    *persistence.Manager
	autosave *persistence.AutoSaver
	notify   Notifier
}

// Option configures a Store.
type Option func(*Store)

// WithAutoSaver attaches the periodic saver started and stopped with play.
func WithAutoSaver(a *persistence.AutoSaver) Option {
	return func(s *Store) { s.autosave = a }
}

// WithNotifier routes user-facing messages to n.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notify = n }
}

// NewStore wires a session to the gateway and the save manager.
func NewStore(session *Session, gw Gateway, saves *persistence.Manager, opts ...Option) *Store {
	s := &Store{session: session, gateway: gw, saves: saves}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session returns the underlying session.
func (s *Store) Session() *Session {
	return s.session
}

// NewPlayerID returns a fresh player id.
func NewPlayerID() string {
	return "player_" + uuid.NewString()
}

func (s *Store) fail(err error, action string) error {
	msg := api.UserMessage(err, action)
	log.Printf("game: %s: %v", action, err)
	s.session.SetError(msg)
	if s.notify != nil {
		s.notify.Error(msg)
	}
	return err
}

func (s *Store) startAutoSave() {
	if s.autosave != nil {
		s.autosave.Start()
	}
}

func (s *Store) stopAutoSave() {
	if s.autosave != nil {
		s.autosave.Stop()
	}
}

// StartGame begins a play-through. An empty playerID gets a generated one.
// A session already in progress must be reset first.
func (s *Store) StartGame(ctx context.Context, playerID string) (State, error) {
	if s.session.IsActive() {
		return State{}, apperr.New(apperr.KindState, "a game is already in progress; reset it first")
	}
	if playerID == "" {
		playerID = NewPlayerID()
	}
	s.session.ClearError()

	gen := s.session.Generation()
	resp, err := s.gateway.StartGame(ctx, playerID)
	if err != nil {
		return State{}, s.fail(err, "start game")
	}
	st, err := s.session.begin(gen, playerID, resp)
	if err != nil {
		return State{}, err
	}
	s.startAutoSave()
	log.Printf("game: started for %s", playerID)
	return st, nil
}

// MakeChoice moves to nextSceneID applying the stat delta.
func (s *Store) MakeChoice(ctx context.Context, nextSceneID string, changes models.StatChanges) (State, error) {
	cur := s.session.State()
	if !cur.Active {
		return State{}, apperr.New(apperr.KindState, "no game in progress")
	}
	if cur.IsGameOver() {
		return State{}, apperr.New(apperr.KindState, "the game is over")
	}
	s.session.ClearError()

	gen := s.session.Generation()
	resp, err := s.gateway.MakeChoice(ctx, cur.PlayerID, nextSceneID, changes)
	if err != nil {
		if apperr.IsKind(err, apperr.KindValidation) {
			return State{}, err
		}
		return State{}, s.fail(err, "make choice")
	}
	st, err := s.session.applyChoice(gen, nextSceneID, changes, resp)
	if err != nil {
		return State{}, err
	}
	if st.IsGameOver() {
		s.stopAutoSave()
		log.Printf("game: over for %s after %d choices", st.PlayerID, st.ChoicesMade)
	}
	return st, nil
}

// Choose takes option i of the current scene.
func (s *Store) Choose(ctx context.Context, i int) (State, error) {
	cur := s.session.State()
	if cur.CurrentScene == nil || i < 0 || i >= len(cur.CurrentScene.Choices) {
		return State{}, apperr.Validation("choice %d is not available", i+1)
	}
	c := cur.CurrentScene.Choices[i]
	return s.MakeChoice(ctx, c.Next, c.Changes())
}

// ResetGame returns to NotStarted from any state.
func (s *Store) ResetGame() {
	s.stopAutoSave()
	s.session.Reset()
	log.Printf("game: reset")
}

// FetchScene loads a scene, storing it when it is the current one.
func (s *Store) FetchScene(ctx context.Context, sceneID string) (*models.Scene, error) {
	gen := s.session.Generation()
	scene, err := s.gateway.GetScene(ctx, sceneID)
	if err != nil {
		return nil, s.fail(err, "load scene")
	}
	s.session.setScene(gen, scene)
	return scene, nil
}

// RefreshStats pulls the service's view of the player into the session.
func (s *Store) RefreshStats(ctx context.Context) (State, error) {
	cur := s.session.State()
	if !cur.Active {
		return State{}, apperr.New(apperr.KindState, "no game in progress")
	}
	gen := s.session.Generation()
	resp, err := s.gateway.GetPlayerStats(ctx, cur.PlayerID)
	if err != nil {
		return State{}, s.fail(err, "refresh stats")
	}
	return s.session.mergeServerStats(gen, resp), nil
}

// Save stores the current play-through under name.
func (s *Store) Save(ctx context.Context, name string) (models.SaveRecord, error) {
	s.session.ClearError()
	rec, err := s.saves.Save(ctx, name)
	if err != nil {
		return rec, s.fail(err, "save game")
	}
	if s.notify != nil {
		s.notify.Success("Game saved: " + rec.Name)
	}
	return rec, nil
}

// Load restores a local save, refetches its scene and resumes auto-save.
// A failed load leaves the current game and its auto-save untouched.
func (s *Store) Load(ctx context.Context, id string) (models.SaveRecord, error) {
	s.session.ClearError()
	rec, err := s.saves.Load(ctx, id)
	if err != nil {
		return rec, s.fail(err, "load game")
	}
	s.resumeAfterLoad(ctx)
	return rec, nil
}

// LoadCloud restores a mirrored save of the current player.
func (s *Store) LoadCloud(ctx context.Context, id string) (models.SaveRecord, error) {
	playerID := s.session.State().PlayerID
	if playerID == "" {
		return models.SaveRecord{}, apperr.New(apperr.KindState, "no player to load cloud saves for")
	}
	s.session.ClearError()
	rec, err := s.saves.LoadRemote(ctx, playerID, id)
	if err != nil {
		return rec, s.fail(err, "load cloud save")
	}
	s.resumeAfterLoad(ctx)
	return rec, nil
}

// resumeAfterLoad restarts auto-save for the restored game and fetches its
// current scene. A scene fetch failure is reported but keeps the load.
func (s *Store) resumeAfterLoad(ctx context.Context) {
	if s.session.IsOver() {
		s.stopAutoSave()
	} else {
		s.startAutoSave()
	}
	if s.notify != nil {
		s.notify.Success("Game loaded")
	}
	st := s.session.State()
	if !st.IsGameOver() && st.CurrentSceneID != "" {
		_, _ = s.FetchScene(ctx, st.CurrentSceneID)
	}
}

// Delete removes a save. A failed remote deletion is reported as a warning.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.saves.Delete(ctx, id)
	switch {
	case err == nil:
		return nil
	case apperr.IsKind(err, apperr.KindNotFound):
		return s.fail(err, "delete save")
	default:
		if s.notify != nil {
			s.notify.Warning(api.UserMessage(err, "delete save"))
		}
		return err
	}
}

// ListSaves returns the local save collection.
func (s *Store) ListSaves(ctx context.Context) ([]models.SaveRecord, error) {
	return s.saves.ListLocal(ctx)
}

// ListCloudSaves returns the current player's mirrored saves.
func (s *Store) ListCloudSaves(ctx context.Context) []models.SaveRecord {
	return s.saves.ListRemote(ctx, s.session.State().PlayerID)
}

// Export serializes the session and every local save.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	return s.saves.ExportAll(ctx)
}

// Import replaces the local saves with a bundle's.
func (s *Store) Import(ctx context.Context, data []byte) (*models.ExportBundle, error) {
	b, err := s.saves.ImportAll(ctx, data)
	if err != nil {
		return nil, s.fail(err, "import saves")
	}
	return b, nil
}
