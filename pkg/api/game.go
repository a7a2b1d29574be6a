package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/starcourier/starcourier/pkg/models"
)

// StartGame begins a play-through for playerID. The whole cache is dropped.
func (c *Client) StartGame(ctx context.Context, playerID string) (*models.StartResponse, error) {
	if err := validatePlayerID(playerID); err != nil {
		return nil, err
	}

	var resp models.StartResponse
	req := models.StartRequest{PlayerID: playerID}
	if err := c.send(ctx, http.MethodPost, "/game/start", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MakeChoice moves playerID to nextSceneID applying the stat delta. A
// game_over status is returned as a normal response.
func (c *Client) MakeChoice(ctx context.Context, playerID, nextSceneID string, changes models.StatChanges) (*models.ChoiceResponse, error) {
	if err := validatePlayerID(playerID); err != nil {
		return nil, err
	}
	if err := validateID("scene", nextSceneID); err != nil {
		return nil, err
	}
	if err := validateStatChanges(changes); err != nil {
		return nil, err
	}
	if changes == nil {
		changes = models.StatChanges{}
	}

	var resp models.ChoiceResponse
	req := models.ChoiceRequest{PlayerID: playerID, NextScene: nextSceneID, Stats: changes}
	if err := c.send(ctx, http.MethodPost, "/game/choose", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetScene returns a scene payload. Cached.
func (c *Client) GetScene(ctx context.Context, sceneID string) (*models.Scene, error) {
	if err := validateID("scene", sceneID); err != nil {
		return nil, err
	}

	var scene models.Scene
	if err := c.get(ctx, "/game/scene/"+url.PathEscape(sceneID), true, &scene); err != nil {
		return nil, err
	}
	return &scene, nil
}

// GetPlayerStats returns the service's view of a player. Never cached.
func (c *Client) GetPlayerStats(ctx context.Context, playerID string) (*models.PlayerStatsResponse, error) {
	if err := validatePlayerID(playerID); err != nil {
		return nil, err
	}

	var resp models.PlayerStatsResponse
	if err := c.get(ctx, "/game/stats/"+url.PathEscape(playerID), false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
