// Package game holds the live play-through: a mutex-guarded Session with an
// observer registry, and the Store that drives it through the API gateway
// and the persistence manager.
package game

import (
	"math"
	"sync"
	"time"

	"github.com/starcourier/starcourier/pkg/apperr"
	"github.com/starcourier/starcourier/pkg/models"
)

// EventType names a session change.
type EventType string

const (
	EventStarted  EventType = "started"
	EventChoice   EventType = "choice"
	EventGameOver EventType = "game_over"
	EventLoaded   EventType = "loaded"
	EventReset    EventType = "reset"
	EventError    EventType = "error"
)

// Event is delivered to subscribers after the session changed.
type Event struct {
	Type  EventType
	State State
}

// State is a copy of the session at one point in time.
type State struct {
	PlayerID       string
	Active         bool
	CurrentSceneID string
	CurrentScene   *models.Scene
	VisitedScenes  []string
	Stats          models.Stats
	Relationships  models.Relationships
	Inventory      []string
	ChoicesMade    int
	ChoiceHistory  []models.ChoiceRecord
	StartedAt      time.Time
	// EndReason is set when the service ended the play-through.
	EndReason string
	Error     string

	serverOver bool
}

// IsGameOver reports whether health or morale ran out, or the service
// declared the game over.
func (s State) IsGameOver() bool {
	if !s.Active {
		return false
	}
	return s.serverOver || s.Stats.Health <= 0 || s.Stats.Morale <= 0
}

// Progress is the share of the story completed, 0 to 100.
func (s State) Progress() int {
	p := int(math.Round(float64(s.ChoicesMade) / float64(models.TotalScenes) * 100))
	if p > 100 {
		return 100
	}
	return p
}

// Playtime returns the time since the play-through started.
func (s State) Playtime(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}

// Session is the single owned game state. All access goes through its
// methods; subscribers are notified after each change.
type Session struct {
	mu  sync.RWMutex
	st  State
	vis map[string]struct{}
	// gen advances on start, load and reset so results of calls issued
	// against an earlier play-through can be discarded.
	gen uint64
	now func() time.Time

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// NewSession returns a session in the NotStarted state.
func NewSession() *Session {
	s := &Session{now: time.Now, subs: make(map[int]func(Event))}
	s.resetLocked()
	return s
}

// SetClock overrides time.Now.
func (s *Session) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Subscribe registers fn for every event and returns a function removing it.
// Callbacks run synchronously on the goroutine that changed the session.
func (s *Session) Subscribe(fn func(Event)) func() {
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

func (s *Session) emit(t EventType, st State) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	ev := Event{Type: t, State: st}
	for _, fn := range fns {
		fn(ev)
	}
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *Session) copyLocked() State {
	out := s.st
	out.Relationships = s.st.Relationships.Clone()
	out.Inventory = append([]string(nil), s.st.Inventory...)
	out.ChoiceHistory = append([]models.ChoiceRecord(nil), s.st.ChoiceHistory...)
	out.VisitedScenes = models.SortedScenes(s.vis)
	if s.st.CurrentScene != nil {
		sc := *s.st.CurrentScene
		out.CurrentScene = &sc
	}
	return out
}

// Generation identifies the current play-through.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// IsActive reports whether a play-through is in progress (possibly over).
func (s *Session) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Active
}

// IsOver reports the derived game-over predicate.
func (s *Session) IsOver() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.IsGameOver()
}

// SetError records a session-level error and notifies subscribers.
func (s *Session) SetError(msg string) {
	s.mu.Lock()
	s.st.Error = msg
	st := s.copyLocked()
	s.mu.Unlock()
	s.emit(EventError, st)
}

// ClearError drops the session-level error.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.st.Error = ""
	s.mu.Unlock()
}

func (s *Session) resetLocked() {
	s.st = State{
		CurrentSceneID: models.StartSceneID,
		Stats:          models.DefaultStats(),
		Relationships:  models.DefaultRelationships(),
		Inventory:      models.DefaultInventory(),
	}
	s.vis = map[string]struct{}{models.StartSceneID: {}}
	s.gen++
}

// Reset returns the session to NotStarted with every default restored.
func (s *Session) Reset() {
	s.mu.Lock()
	s.resetLocked()
	st := s.copyLocked()
	s.mu.Unlock()
	s.emit(EventReset, st)
}

// begin moves NotStarted to Active using the service's start response.
// It fails when the session changed since gen was read.
func (s *Session) begin(gen uint64, playerID string, resp *models.StartResponse) (State, error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return State{}, apperr.New(apperr.KindState, "session changed while the game was starting")
	}
	if s.st.Active {
		s.mu.Unlock()
		return State{}, apperr.New(apperr.KindState, "a game is already in progress")
	}

	s.resetLocked()
	s.st.Active = true
	s.st.PlayerID = playerID
	s.st.StartedAt = s.now().UTC()
	s.st.Stats = s.st.Stats.Merge(resp.Stats)
	s.st.Relationships = s.st.Relationships.Merge(resp.Relationships)
	scene := resp.Scene
	if scene.ID != "" {
		s.st.CurrentSceneID = scene.ID
		s.vis = map[string]struct{}{scene.ID: {}}
	}
	s.st.CurrentScene = &scene
	st := s.copyLocked()
	s.mu.Unlock()

	s.emit(EventStarted, st)
	return st, nil
}

// applyChoice records a choice the service accepted. It reports whether the
// play-through is now over.
func (s *Session) applyChoice(gen uint64, next string, changes models.StatChanges, resp *models.ChoiceResponse) (State, error) {
	s.mu.Lock()
	if s.gen != gen || !s.st.Active {
		s.mu.Unlock()
		return State{}, apperr.New(apperr.KindState, "session changed while the choice was in flight")
	}

	from := s.st.CurrentSceneID
	s.st.Stats = s.st.Stats.Apply(changes)
	if len(resp.Relationships) > 0 {
		s.st.Relationships = s.st.Relationships.Merge(resp.Relationships)
	}

	to := next
	if resp.Scene != nil {
		if resp.Scene.ID != "" {
			to = resp.Scene.ID
		}
		sc := *resp.Scene
		s.st.CurrentScene = &sc
	} else {
		s.st.CurrentScene = nil
	}

	recorded := make(models.StatChanges, len(changes))
	for k, v := range changes {
		recorded[k] = v
	}
	s.st.ChoiceHistory = append(s.st.ChoiceHistory, models.ChoiceRecord{
		FromScene:   from,
		ToScene:     to,
		StatChanges: recorded,
		Timestamp:   s.now().UTC(),
	})
	s.st.CurrentSceneID = to
	s.st.ChoicesMade++
	s.vis[to] = struct{}{}

	if resp.GameOver() {
		s.st.serverOver = true
		s.st.EndReason = resp.Reason
	}
	st := s.copyLocked()
	s.mu.Unlock()

	s.emit(EventChoice, st)
	if st.IsGameOver() {
		s.emit(EventGameOver, st)
	}
	return st, nil
}

// setScene stores the payload of the current scene after a fetch.
func (s *Session) setScene(gen uint64, scene *models.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || scene == nil || scene.ID != s.st.CurrentSceneID {
		return
	}
	sc := *scene
	s.st.CurrentScene = &sc
}

// mergeServerStats overwrites stats, relationships and inventory with the
// service's view.
func (s *Session) mergeServerStats(gen uint64, resp *models.PlayerStatsResponse) State {
	s.mu.Lock()
	if s.gen == gen && s.st.Active {
		s.st.Stats = s.st.Stats.Merge(resp.Stats)
		s.st.Relationships = s.st.Relationships.Merge(resp.Relationships)
		if len(resp.Inventory) > 0 {
			s.st.Inventory = append([]string(nil), resp.Inventory...)
		}
	}
	st := s.copyLocked()
	s.mu.Unlock()
	return st
}

// Snapshot captures the state for a save record.
func (s *Session) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.copyLocked()
	return models.Snapshot{
		PlayerID:        st.PlayerID,
		CurrentSceneID:  st.CurrentSceneID,
		ChoicesMade:     st.ChoicesMade,
		Stats:           st.Stats,
		Relationships:   st.Relationships,
		Inventory:       st.Inventory,
		VisitedScenes:   st.VisitedScenes,
		ChoiceHistory:   st.ChoiceHistory,
		StartedAt:       st.StartedAt,
		PlaytimeSeconds: int64(st.Playtime(s.now()).Seconds()),
	}
}

// Restore replaces the session wholesale with rec and marks it active.
func (s *Session) Restore(rec models.SaveRecord) {
	s.mu.Lock()
	s.resetLocked()
	s.st.Active = true
	s.st.PlayerID = rec.PlayerID
	if rec.CurrentSceneID != "" {
		s.st.CurrentSceneID = rec.CurrentSceneID
	}
	s.st.ChoicesMade = rec.ChoicesMade
	s.st.Stats = rec.Stats
	if rec.Relationships != nil {
		s.st.Relationships = rec.Relationships.Clone()
	}
	if rec.Inventory != nil {
		s.st.Inventory = append([]string(nil), rec.Inventory...)
	}
	s.st.ChoiceHistory = append([]models.ChoiceRecord(nil), rec.ChoiceHistory...)
	s.vis = make(map[string]struct{}, len(rec.VisitedScenes)+1)
	for _, id := range rec.VisitedScenes {
		s.vis[id] = struct{}{}
	}
	s.vis[s.st.CurrentSceneID] = struct{}{}
	s.st.StartedAt = rec.StartedAt
	if s.st.StartedAt.IsZero() {
		s.st.StartedAt = s.now().UTC().Add(-time.Duration(rec.PlaytimeSeconds) * time.Second)
	}
	st := s.copyLocked()
	s.mu.Unlock()

	s.emit(EventLoaded, st)
}

// Summary is the live-session view used in export bundles.
func (s *Session) Summary() models.GameSummary {
	st := s.State()
	return models.GameSummary{
		PlayerID:      st.PlayerID,
		CurrentScene:  st.CurrentSceneID,
		ChoicesMade:   st.ChoicesMade,
		Stats:         st.Stats,
		Relationships: st.Relationships,
		VisitedScenes: st.VisitedScenes,
		Inventory:     st.Inventory,
		IsGameOver:    st.IsGameOver(),
	}
}
