package models

import "encoding/json"

// Choice statuses reported by the game service.
const (
	StatusSuccess  = "success"
	StatusGameOver = "game_over"
)

// StartRequest is the body of POST /game/start.
type StartRequest struct {
	PlayerID string `json:"player_id"`
}

// StartResponse is returned by POST /game/start.
type StartResponse struct {
	Status        string           `json:"status"`
	Scene         Scene            `json:"scene"`
	Stats         map[StatName]int `json:"stats"`
	Relationships map[string]int   `json:"relationships"`
}

// ChoiceRequest is the body of POST /game/choose.
type ChoiceRequest struct {
	PlayerID  string      `json:"player_id"`
	NextScene string      `json:"next_scene"`
	Stats     StatChanges `json:"stats"`
}

// ChoiceResponse is returned by POST /game/choose. Scene, Stats and
// Relationships are absent when Status is game_over.
type ChoiceResponse struct {
	Status        string           `json:"status"`
	Scene         *Scene           `json:"scene,omitempty"`
	Stats         map[StatName]int `json:"stats,omitempty"`
	Relationships map[string]int   `json:"relationships,omitempty"`
	ChoicesMade   int              `json:"choices_made"`
	Reason        string           `json:"reason,omitempty"`
}

// GameOver reports whether the service ended the play-through.
func (r ChoiceResponse) GameOver() bool {
	return r.Status == StatusGameOver
}

// PlayerStatsResponse is returned by GET /game/stats/{player_id}.
type PlayerStatsResponse struct {
	CurrentScene  string           `json:"current_scene"`
	Stats         map[StatName]int `json:"stats"`
	Relationships map[string]int   `json:"relationships"`
	Inventory     []string         `json:"inventory"`
	ChoicesMade   int              `json:"choices_made"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Timestamp   string `json:"timestamp"`
}

// CloudSaveRequest is the body of POST /game/save/cloud.
type CloudSaveRequest struct {
	PlayerID string     `json:"player_id"`
	SaveData SaveRecord `json:"save_data"`
}

// CloudLoadRequest is the body of POST /game/load/cloud.
type CloudLoadRequest struct {
	PlayerID string `json:"player_id"`
	SaveID   string `json:"save_id"`
}

// CloudLoadResponse is returned by POST /game/load/cloud.
type CloudLoadResponse struct {
	SaveData SaveRecord `json:"save_data"`
}

// ErrorBody is the structured error shape the service may return.
// Detail is raw because validation failures carry a list.
type ErrorBody struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

// CloudSavesResponse is returned by GET /game/saves/cloud/{player_id}.
type CloudSavesResponse struct {
	Saves []SaveRecord `json:"saves"`
}
