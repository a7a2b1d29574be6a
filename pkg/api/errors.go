package api

import (
	"errors"
	"net/http"

	"github.com/starcourier/starcourier/pkg/apperr"
)

// UserMessage turns err into text suitable for a player. context, when not
// empty, names the action that failed.
func UserMessage(err error, context string) string {
	if err == nil {
		return ""
	}
	suffix := ""
	if context != "" {
		suffix = " (" + context + ")"
	}

	var e *apperr.Error
	if errors.As(err, &e) {
		switch {
		case e.Status == http.StatusNotFound:
			return "Resource not found" + suffix + ". Please check the server connection."
		case e.Status == http.StatusInternalServerError:
			return "Internal server error" + suffix + ". Please try again later."
		case e.Status == http.StatusTooManyRequests:
			return "Too many requests" + suffix + ". Please wait a moment."
		case e.Kind == apperr.KindNetwork:
			return "Cannot reach the game server" + suffix + ". Please check your connection."
		case e.Kind == apperr.KindCanceled:
			return "Request canceled" + suffix + "."
		case e.Kind == apperr.KindUnavailable:
			return "The game server did not respond" + suffix + ". Make sure it is running."
		}
	}
	return apperr.Message(err) + suffix
}
