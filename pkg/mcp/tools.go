package mcp

import (
	"context"
	"encoding/json"

	"github.com/starcourier/starcourier/pkg/api"
	"github.com/starcourier/starcourier/pkg/game"
	"github.com/starcourier/starcourier/pkg/models"
)

// Tool argument structs.

type startArgs struct {
	PlayerID string `json:"player_id"`
}

type chooseArgs struct {
	// Choice is 1-based, as shown by game_status.
	Choice  int                `json:"choice"`
	Next    string             `json:"next"`
	Changes models.StatChanges `json:"changes"`
}

type saveArgs struct {
	Name string `json:"name"`
}

type saveIDArgs struct {
	ID    string `json:"id"`
	Cloud bool   `json:"cloud"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"game_status":  handleStatus,
	"game_start":   handleStart,
	"game_choose":  handleChoose,
	"game_reset":   handleReset,
	"save_game":    handleSave,
	"list_saves":   handleListSaves,
	"load_game":    handleLoad,
	"delete_save":  handleDelete,
	"export_saves": handleExport,
	"cache_stats":  handleCacheStats,
	"achievements": handleAchievements,
}

func emptySchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "game_status",
		Description: "Show the current scene, its numbered choices, stats and crew relationships.",
		InputSchema: emptySchema(),
	},
	{
		Name:        "game_start",
		Description: "Start a new play-through. Fails while a game is in progress.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"player_id": map[string]any{
					"type":        "string",
					"description": "Player id (optional, generated when omitted)",
				},
			},
		},
	},
	{
		Name:        "game_choose",
		Description: "Take a choice of the current scene by number, or move to an explicit scene with a stat delta.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"choice": map[string]any{
					"type":        "integer",
					"description": "1-based choice number from game_status",
				},
				"next": map[string]any{
					"type":        "string",
					"description": "Target scene id (used when choice is omitted)",
				},
				"changes": map[string]any{
					"type":        "object",
					"description": "Stat deltas keyed by stat name (used with next)",
				},
			},
		},
	},
	{
		Name:        "game_reset",
		Description: "Abandon the current play-through.",
		InputSchema: emptySchema(),
	},
	{
		Name:        "save_game",
		Description: "Save the current play-through locally (and to the cloud when enabled).",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Save name (optional)",
				},
			},
		},
	},
	{
		Name:        "list_saves",
		Description: "List local saves, newest first.",
		InputSchema: emptySchema(),
	},
	{
		Name:        "load_game",
		Description: "Restore a save by id.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"id"},
			"properties": map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "Save id from list_saves",
				},
				"cloud": map[string]any{
					"type":        "boolean",
					"description": "Load the current player's cloud copy instead",
				},
			},
		},
	},
	{
		Name:        "delete_save",
		Description: "Delete a local save by id.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"id"},
			"properties": map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "Save id from list_saves",
				},
			},
		},
	},
	{
		Name:        "export_saves",
		Description: "Export the current game and all local saves as a JSON bundle.",
		InputSchema: emptySchema(),
	},
	{
		Name:        "cache_stats",
		Description: "Show response cache statistics (entries, hits, misses, hit rate).",
		InputSchema: emptySchema(),
	},
	{
		Name:        "achievements",
		Description: "List achievements and completion.",
		InputSchema: emptySchema(),
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func failure(action string, err error) ToolCallResult {
	return errorResult(api.UserMessage(err, action))
}

func handleStatus(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatState(s.store.Session().State()))
}

func handleStart(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args startArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	st, err := s.store.StartGame(ctx, args.PlayerID)
	if err != nil {
		return failure("start game", err)
	}
	return textResult(formatState(st))
}

func handleChoose(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args chooseArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return errorResult("Invalid arguments: " + err.Error())
		}
	}

	var (
		st  game.State
		err error
	)
	switch {
	case args.Choice > 0:
		st, err = s.store.Choose(ctx, args.Choice-1)
	case args.Next != "":
		st, err = s.store.MakeChoice(ctx, args.Next, args.Changes)
	default:
		return errorResult("choice or next is required")
	}
	if err != nil {
		return failure("make choice", err)
	}
	return textResult(formatState(st))
}

func handleReset(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	s.store.ResetGame()
	return textResult("Game reset.")
}

func handleSave(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args saveArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	rec, err := s.store.Save(ctx, args.Name)
	if err != nil {
		return failure("save game", err)
	}
	return textResult("Saved " + rec.Name + " (" + rec.ID + ")")
}

func handleListSaves(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	saves, err := s.store.ListSaves(ctx)
	if err != nil {
		return failure("list saves", err)
	}
	return textResult(formatSaves(saves))
}

func handleLoad(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args saveIDArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.ID == "" {
		return errorResult("id is required")
	}
	var err error
	if args.Cloud {
		_, err = s.store.LoadCloud(ctx, args.ID)
	} else {
		_, err = s.store.Load(ctx, args.ID)
	}
	if err != nil {
		return failure("load game", err)
	}
	return textResult(formatState(s.store.Session().State()))
}

func handleDelete(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args saveIDArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.ID == "" {
		return errorResult("id is required")
	}
	if err := s.store.Delete(ctx, args.ID); err != nil {
		return failure("delete save", err)
	}
	return textResult("Deleted " + args.ID)
}

func handleExport(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	data, err := s.store.Export(ctx)
	if err != nil {
		return failure("export saves", err)
	}
	return textResult(string(data))
}

func handleCacheStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.cache == nil {
		return textResult("Cache is not configured.")
	}
	return textResult(formatCacheStats(s.cache.CacheStats()))
}

func handleAchievements(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.achievements == nil {
		return textResult("Achievements are not tracked.")
	}
	return textResult(formatAchievements(s.achievements.All(), s.achievements.CompletionPercentage()))
}
