package api

import (
	"math"
	"strings"

	"github.com/starcourier/starcourier/pkg/apperr"
	"github.com/starcourier/starcourier/pkg/models"
)

// Bounds on inputs checked before any request is made.
const (
	MinPlayerIDLen = 5
	MaxStatDelta   = 1000
)

func validatePlayerID(id string) error {
	if id == "" {
		return apperr.Validation("player ID is required")
	}
	if len(id) < MinPlayerIDLen {
		return apperr.Validation("invalid player ID %q: must be at least %d characters", id, MinPlayerIDLen)
	}
	return nil
}

func validateID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.Validation("%s ID is required", kind)
	}
	return nil
}

func validateIDs(kind string, ids []string) error {
	if len(ids) == 0 {
		return apperr.Validation("%s ID list is empty", kind)
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return apperr.Validation("invalid %s ID in list", kind)
		}
	}
	return nil
}

func validateStatChanges(changes models.StatChanges) error {
	for name, v := range changes {
		if !name.Valid() {
			return apperr.Validation("unknown stat %q", name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperr.Validation("invalid value for stat %s: %v", name, v)
		}
		if v < -MaxStatDelta || v > MaxStatDelta {
			return apperr.Validation("stat %s out of range: %v", name, v)
		}
	}
	return nil
}
