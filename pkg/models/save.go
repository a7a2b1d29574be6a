package models

import "time"

// ExportVersion tags bundles produced by ExportAll.
const ExportVersion = "1.0.0"

// SaveRecord is an immutable snapshot of a play-through.
type SaveRecord struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	CreatedAt       time.Time      `json:"timestamp"`
	PlayerID        string         `json:"playerId"`
	CurrentSceneID  string         `json:"currentSceneId"`
	ChoicesMade     int            `json:"choicesMade"`
	Stats           Stats          `json:"stats"`
	Relationships   Relationships  `json:"relationships"`
	Inventory       []string       `json:"inventory"`
	VisitedScenes   []string       `json:"visitedScenes"`
	ChoiceHistory   []ChoiceRecord `json:"choiceHistory"`
	StartedAt       time.Time      `json:"startTime"`
	PlaytimeSeconds int64          `json:"playtime"`
}

// Snapshot is the session state captured into a SaveRecord.
type Snapshot struct {
	PlayerID        string
	CurrentSceneID  string
	ChoicesMade     int
	Stats           Stats
	Relationships   Relationships
	Inventory       []string
	VisitedScenes   []string
	ChoiceHistory   []ChoiceRecord
	StartedAt       time.Time
	PlaytimeSeconds int64
}

// GameSummary is the live-session view embedded in export bundles.
type GameSummary struct {
	PlayerID      string        `json:"playerId"`
	CurrentScene  string        `json:"currentScene"`
	ChoicesMade   int           `json:"choicesMade"`
	Stats         Stats         `json:"stats"`
	Relationships Relationships `json:"relationships"`
	VisitedScenes []string      `json:"visitedScenes"`
	Inventory     []string      `json:"inventory"`
	IsGameOver    bool          `json:"isGameOver"`
}

// ExportBundle is the serialized form of ExportAll.
type ExportBundle struct {
	Version     string       `json:"version"`
	ExportDate  time.Time    `json:"exportDate"`
	CurrentGame GameSummary  `json:"currentGame"`
	SavedGames  []SaveRecord `json:"savedGames"`
}
