package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/questlabs/questledger/engine"
)

// taxonomy maps engine errors to an HTTP status and a stable machine code.
var taxonomy = []struct {
	err    error
	status int
	code   string
}{
	{engine.ErrAccessDenied, http.StatusForbidden, "access_denied"},
	{engine.ErrInvalidWindow, http.StatusBadRequest, "invalid_window"},
	{engine.ErrInvalidMultiplier, http.StatusBadRequest, "invalid_multiplier"},
	{engine.ErrNotFound, http.StatusNotFound, "not_found"},
	{engine.ErrAlreadyExpired, http.StatusConflict, "already_expired"},
	{engine.ErrSeasonNotElapsed, http.StatusConflict, "season_not_elapsed"},
	{engine.ErrSeasonalQuestsStillActive, http.StatusConflict, "seasonal_quests_still_active"},
	{engine.ErrInvalidArgs, http.StatusBadRequest, "invalid_args"},
	{engine.ErrInvalidQuest, http.StatusUnprocessableEntity, "invalid_quest"},
	{engine.ErrAlreadyCompleted, http.StatusConflict, "already_completed"},
	{engine.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature"},
	{engine.ErrPropagationFailed, http.StatusBadGateway, "propagation_failed"},
}

// respondError writes the engine error as JSON with its taxonomy code.
// Unrecognized errors become an opaque 500.
func respondError(c *gin.Context, err error) {
	for _, t := range taxonomy {
		if errors.Is(err, t.err) {
			c.JSON(t.status, gin.H{"error": err.Error(), "code": t.code})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"})
}
