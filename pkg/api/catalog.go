package api

import (
	"context"
	"net/url"
	"strings"

	"github.com/starcourier/starcourier/pkg/models"
)

// GetCharacters returns every crew member keyed by id.
func (c *Client) GetCharacters(ctx context.Context) (map[string]models.Character, error) {
	var out map[string]models.Character
	if err := c.get(ctx, "/characters", true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCharacter returns one crew member.
func (c *Client) GetCharacter(ctx context.Context, id string) (*models.Character, error) {
	if err := validateID("character", id); err != nil {
		return nil, err
	}

	var ch models.Character
	if err := c.get(ctx, "/characters/"+url.PathEscape(id), true, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetCharactersBatch fetches several crew members in one request.
func (c *Client) GetCharactersBatch(ctx context.Context, ids []string) (map[string]models.Character, error) {
	if err := validateIDs("character", ids); err != nil {
		return nil, err
	}

	var out map[string]models.Character
	if err := c.get(ctx, "/characters/batch?ids="+joinIDs(ids), true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetScenes returns scene titles keyed by scene id.
func (c *Client) GetScenes(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	if err := c.get(ctx, "/scenes", true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSceneInfo returns catalogue information for one scene.
func (c *Client) GetSceneInfo(ctx context.Context, id string) (*models.Scene, error) {
	if err := validateID("scene", id); err != nil {
		return nil, err
	}

	var scene models.Scene
	if err := c.get(ctx, "/scenes/"+url.PathEscape(id), true, &scene); err != nil {
		return nil, err
	}
	return &scene, nil
}

// GetScenesBatch fetches several scenes in one request.
func (c *Client) GetScenesBatch(ctx context.Context, ids []string) (map[string]models.Scene, error) {
	if err := validateIDs("scene", ids); err != nil {
		return nil, err
	}

	var out map[string]models.Scene
	if err := c.get(ctx, "/scenes/batch?ids="+joinIDs(ids), true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func joinIDs(ids []string) string {
	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = url.QueryEscape(id)
	}
	return strings.Join(escaped, ",")
}
