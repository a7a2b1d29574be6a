// Package testutil provides an in-process stand-in for the StarCourier game
// service, used by package tests and the CLI's offline demo.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/starcourier/starcourier/pkg/models"
)

// Route names used by Calls and FailNext.
const (
	RouteStart      = "POST /game/start"
	RouteChoose     = "POST /game/choose"
	RouteScene      = "GET /game/scene/{id}"
	RouteStats      = "GET /game/stats/{playerID}"
	RouteCharacters = "GET /characters"
	RouteCharacter  = "GET /characters/{id}"
	RouteCharBatch  = "GET /characters/batch"
	RouteScenes     = "GET /scenes"
	RouteSceneInfo  = "GET /scenes/{id}"
	RouteSceneBatch = "GET /scenes/batch"
	RouteHealth     = "GET /health"
	RouteCloudSave  = "POST /game/save/cloud"
	RouteCloudLoad  = "POST /game/load/cloud"
	RouteCloudList  = "GET /game/saves/cloud/{playerID}"
	RouteCloudDel   = "DELETE /game/save/cloud/{playerID}/{saveID}"
)

type player struct {
	scene         string
	stats         map[models.StatName]int
	relationships map[string]int
	inventory     []string
	choicesMade   int
}

type failure struct {
	remaining int
	status    int
	body      string
}

// GameServer is an httptest server implementing the game service routes
// under /api. It counts calls per route and can inject failures.
type GameServer struct {
	*httptest.Server

	mu       sync.Mutex
	calls    map[string]int
	failures map[string]*failure
	players  map[string]*player
	cloud    map[string][]models.SaveRecord
	scenes   map[string]models.Scene
	chars    map[string]models.Character
	hold     chan struct{}
}

// NewGameServer starts a stand-in service. Close it when done.
func NewGameServer() *GameServer {
	gs := &GameServer{
		calls:    make(map[string]int),
		failures: make(map[string]*failure),
		players:  make(map[string]*player),
		cloud:    make(map[string][]models.SaveRecord),
		scenes:   defaultScenes(),
		chars:    defaultCharacters(),
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", gs.wrap(RouteHealth, gs.handleHealth))
		r.Route("/game", func(r chi.Router) {
			r.Post("/start", gs.wrap(RouteStart, gs.handleStart))
			r.Post("/choose", gs.wrap(RouteChoose, gs.handleChoose))
			r.Get("/scene/{id}", gs.wrap(RouteScene, gs.handleScene))
			r.Get("/stats/{playerID}", gs.wrap(RouteStats, gs.handleStats))
			r.Post("/save/cloud", gs.wrap(RouteCloudSave, gs.handleCloudSave))
			r.Post("/load/cloud", gs.wrap(RouteCloudLoad, gs.handleCloudLoad))
			r.Get("/saves/cloud/{playerID}", gs.wrap(RouteCloudList, gs.handleCloudList))
			r.Delete("/save/cloud/{playerID}/{saveID}", gs.wrap(RouteCloudDel, gs.handleCloudDelete))
		})
		r.Get("/characters", gs.wrap(RouteCharacters, gs.handleCharacters))
		r.Get("/characters/batch", gs.wrap(RouteCharBatch, gs.handleCharacterBatch))
		r.Get("/characters/{id}", gs.wrap(RouteCharacter, gs.handleCharacter))
		r.Get("/scenes", gs.wrap(RouteScenes, gs.handleScenes))
		r.Get("/scenes/batch", gs.wrap(RouteSceneBatch, gs.handleSceneBatch))
		r.Get("/scenes/{id}", gs.wrap(RouteSceneInfo, gs.handleSceneInfo))
	})

	gs.Server = httptest.NewServer(r)
	return gs
}

// BaseURL returns the URL clients should use as their API base.
func (gs *GameServer) BaseURL() string {
	return gs.URL + "/api"
}

// Calls returns how many requests reached route.
func (gs *GameServer) Calls(route string) int {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.calls[route]
}

// FailNext makes the next n requests to route answer with status and body.
func (gs *GameServer) FailNext(route string, n, status int, body string) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.failures[route] = &failure{remaining: n, status: status, body: body}
}

// SetHold makes every later request block until ch is closed. nil clears it.
func (gs *GameServer) SetHold(ch chan struct{}) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.hold = ch
}

// CloudSaves returns the remote saves stored for playerID.
func (gs *GameServer) CloudSaves(playerID string) []models.SaveRecord {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return append([]models.SaveRecord(nil), gs.cloud[playerID]...)
}

func (gs *GameServer) wrap(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gs.mu.Lock()
		gs.calls[route]++
		f := gs.failures[route]
		var fail *failure
		if f != nil && f.remaining > 0 {
			f.remaining--
			fail = &failure{status: f.status, body: f.body}
		}
		hold := gs.hold
		gs.mu.Unlock()

		if hold != nil {
			<-hold
		}
		if fail != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(fail.status)
			fmt.Fprint(w, fail.body)
			return
		}
		h(w, r)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondDetail(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

func (gs *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthResponse{Status: "healthy", Version: "1.0.0", Environment: "test"})
}

func (gs *GameServer) handleStart(w http.ResponseWriter, r *http.Request) {
	var req models.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		respondDetail(w, http.StatusUnprocessableEntity, "player_id is required")
		return
	}

	p := &player{
		scene:         models.StartSceneID,
		stats:         models.DefaultStats().Map(),
		relationships: models.DefaultRelationships(),
		inventory:     models.DefaultInventory(),
	}
	gs.mu.Lock()
	gs.players[req.PlayerID] = p
	resp := models.StartResponse{
		Status:        models.StatusSuccess,
		Scene:         gs.sceneLocked(models.StartSceneID),
		Stats:         copyStats(p.stats),
		Relationships: copyRels(p.relationships),
	}
	gs.mu.Unlock()

	respondJSON(w, http.StatusOK, resp)
}

func (gs *GameServer) handleChoose(w http.ResponseWriter, r *http.Request) {
	var req models.ChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	gs.mu.Lock()
	defer gs.mu.Unlock()
	p, ok := gs.players[req.PlayerID]
	if !ok {
		respondDetail(w, http.StatusNotFound, "game not started")
		return
	}
	for name, delta := range req.Stats {
		if cur, ok := p.stats[name]; ok {
			p.stats[name] = clamp(cur+int(delta), 0, 100)
		}
	}
	p.scene = req.NextScene
	p.choicesMade++

	if p.stats[models.StatMorale] <= 0 || p.stats[models.StatHealth] <= 0 {
		respondJSON(w, http.StatusOK, models.ChoiceResponse{
			Status:      models.StatusGameOver,
			Reason:      "You did not survive in space",
			ChoicesMade: p.choicesMade,
		})
		return
	}
	scene := gs.sceneLocked(req.NextScene)
	respondJSON(w, http.StatusOK, models.ChoiceResponse{
		Status:        models.StatusSuccess,
		Scene:         &scene,
		Stats:         copyStats(p.stats),
		Relationships: copyRels(p.relationships),
		ChoicesMade:   p.choicesMade,
	})
}

func (gs *GameServer) handleScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	gs.mu.Lock()
	scene, ok := gs.scenes[id]
	gs.mu.Unlock()
	if !ok {
		respondDetail(w, http.StatusNotFound, fmt.Sprintf("scene '%s' not found", id))
		return
	}
	respondJSON(w, http.StatusOK, scene)
}

func (gs *GameServer) handleStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "playerID")
	gs.mu.Lock()
	defer gs.mu.Unlock()
	p, ok := gs.players[id]
	if !ok {
		respondDetail(w, http.StatusNotFound, "player not found")
		return
	}
	respondJSON(w, http.StatusOK, models.PlayerStatsResponse{
		CurrentScene:  p.scene,
		Stats:         copyStats(p.stats),
		Relationships: copyRels(p.relationships),
		Inventory:     append([]string(nil), p.inventory...),
		ChoicesMade:   p.choicesMade,
	})
}

func (gs *GameServer) handleCharacters(w http.ResponseWriter, r *http.Request) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	respondJSON(w, http.StatusOK, gs.chars)
}

func (gs *GameServer) handleCharacter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	gs.mu.Lock()
	ch, ok := gs.chars[id]
	gs.mu.Unlock()
	if !ok {
		respondDetail(w, http.StatusNotFound, fmt.Sprintf("character '%s' not found", id))
		return
	}
	respondJSON(w, http.StatusOK, ch)
}

func (gs *GameServer) handleCharacterBatch(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]models.Character)
	gs.mu.Lock()
	for _, id := range splitIDs(r.URL.Query().Get("ids")) {
		if ch, ok := gs.chars[id]; ok {
			out[id] = ch
		}
	}
	gs.mu.Unlock()
	respondJSON(w, http.StatusOK, out)
}

func (gs *GameServer) handleScenes(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]string)
	gs.mu.Lock()
	for id, s := range gs.scenes {
		out[id] = s.Title
	}
	gs.mu.Unlock()
	respondJSON(w, http.StatusOK, out)
}

func (gs *GameServer) handleSceneInfo(w http.ResponseWriter, r *http.Request) {
	gs.handleScene(w, r)
}

func (gs *GameServer) handleSceneBatch(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]models.Scene)
	gs.mu.Lock()
	for _, id := range splitIDs(r.URL.Query().Get("ids")) {
		if s, ok := gs.scenes[id]; ok {
			out[id] = s
		}
	}
	gs.mu.Unlock()
	respondJSON(w, http.StatusOK, out)
}

func (gs *GameServer) handleCloudSave(w http.ResponseWriter, r *http.Request) {
	var req models.CloudSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		respondDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	gs.mu.Lock()
	saves := gs.cloud[req.PlayerID]
	replaced := false
	for i := range saves {
		if saves[i].ID == req.SaveData.ID {
			saves[i] = req.SaveData
			replaced = true
		}
	}
	if !replaced {
		saves = append(saves, req.SaveData)
	}
	gs.cloud[req.PlayerID] = saves
	gs.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (gs *GameServer) handleCloudLoad(w http.ResponseWriter, r *http.Request) {
	var req models.CloudLoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	for _, s := range gs.cloud[req.PlayerID] {
		if s.ID == req.SaveID {
			respondJSON(w, http.StatusOK, models.CloudLoadResponse{SaveData: s})
			return
		}
	}
	respondDetail(w, http.StatusNotFound, "save not found")
}

func (gs *GameServer) handleCloudList(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "playerID")
	gs.mu.Lock()
	saves := append([]models.SaveRecord{}, gs.cloud[id]...)
	gs.mu.Unlock()
	respondJSON(w, http.StatusOK, models.CloudSavesResponse{Saves: saves})
}

func (gs *GameServer) handleCloudDelete(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	saveID := chi.URLParam(r, "saveID")
	gs.mu.Lock()
	defer gs.mu.Unlock()
	saves := gs.cloud[playerID]
	for i, s := range saves {
		if s.ID == saveID {
			gs.cloud[playerID] = append(saves[:i:i], saves[i+1:]...)
			respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
			return
		}
	}
	respondDetail(w, http.StatusNotFound, "save not found")
}

// sceneLocked returns the scene for id, synthesizing one for ids outside the
// built-in set so play can continue anywhere.
func (gs *GameServer) sceneLocked(id string) models.Scene {
	if s, ok := gs.scenes[id]; ok {
		return s
	}
	return models.Scene{
		ID:    id,
		Title: id,
		Text:  "The corridor stretches on.",
		Choices: []models.Choice{
			{Text: "Return to the bridge", Next: "start"},
		},
	}
}

func defaultScenes() map[string]models.Scene {
	return map[string]models.Scene{
		"start": {
			ID:        "start",
			Title:     "Awakening on the Elea",
			Text:      "You wake in your cabin. A red light blinks on the console.",
			Image:     "rocket",
			Character: "Sara Nova",
			Choices: []models.Choice{
				{Text: "Hurry to the command center", Next: "scene_2", Stats: map[string]int{"health": -5, "morale": 10}},
				{Text: "Open the channel", Next: "scene_3", Stats: map[string]int{"knowledge": 15, "morale": -5}},
			},
		},
		"scene_2": {
			ID:        "scene_2",
			Title:     "Command center",
			Text:      "Your crew waits for orders.",
			Character: "Grisha Romanov",
			Choices: []models.Choice{
				{Text: "Head to Sigma station", Next: "scene_3", Stats: map[string]int{"fuel": -30, "morale": 20}},
			},
		},
		"scene_3": {
			ID:        "scene_3",
			Title:     "Sigma station",
			Text:      "The station hangs half-broken in orbit.",
			Character: "Li Zheng",
			Choices: []models.Choice{
				{Text: "Defend the station", Next: "start", Stats: map[string]int{"team": 20, "danger": 40}},
			},
		},
	}
}

func defaultCharacters() map[string]models.Character {
	return map[string]models.Character{
		"sara_nova":      {ID: "sara_nova", Name: "Sara Nova", Role: "Science officer", Relationship: 50},
		"grisha_romanov": {ID: "grisha_romanov", Name: "Grisha Romanov", Role: "Combat officer", Relationship: 60},
		"li_zheng":       {ID: "li_zheng", Name: "Li Zheng", Role: "Navigator", Relationship: 45},
	}
}

func splitIDs(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func copyStats(m map[models.StatName]int) map[models.StatName]int {
	out := make(map[models.StatName]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyRels(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
