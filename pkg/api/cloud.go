package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/starcourier/starcourier/pkg/models"
)

// SaveCloud uploads a save record under playerID.
func (c *Client) SaveCloud(ctx context.Context, playerID string, rec models.SaveRecord) error {
	if err := validatePlayerID(playerID); err != nil {
		return err
	}
	if err := validateID("save", rec.ID); err != nil {
		return err
	}
	req := models.CloudSaveRequest{PlayerID: playerID, SaveData: rec}
	return c.send(ctx, http.MethodPost, "/game/save/cloud", req, nil, true)
}

// LoadCloud downloads one save record.
func (c *Client) LoadCloud(ctx context.Context, playerID, saveID string) (*models.SaveRecord, error) {
	if err := validatePlayerID(playerID); err != nil {
		return nil, err
	}
	if err := validateID("save", saveID); err != nil {
		return nil, err
	}

	var resp models.CloudLoadResponse
	req := models.CloudLoadRequest{PlayerID: playerID, SaveID: saveID}
	if err := c.send(ctx, http.MethodPost, "/game/load/cloud", req, &resp, false); err != nil {
		return nil, err
	}
	return &resp.SaveData, nil
}

// ListCloud returns the saves stored remotely for playerID. Never cached.
func (c *Client) ListCloud(ctx context.Context, playerID string) ([]models.SaveRecord, error) {
	if err := validatePlayerID(playerID); err != nil {
		return nil, err
	}

	var resp models.CloudSavesResponse
	if err := c.get(ctx, "/game/saves/cloud/"+url.PathEscape(playerID), false, &resp); err != nil {
		return nil, err
	}
	return resp.Saves, nil
}

// DeleteCloud removes one remote save.
func (c *Client) DeleteCloud(ctx context.Context, playerID, saveID string) error {
	if err := validatePlayerID(playerID); err != nil {
		return err
	}
	if err := validateID("save", saveID); err != nil {
		return err
	}
	path := "/game/save/cloud/" + url.PathEscape(playerID) + "/" + url.PathEscape(saveID)
	return c.send(ctx, http.MethodDelete, path, nil, nil, true)
}
