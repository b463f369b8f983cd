package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/questlabs/questledger/audit"
	"github.com/questlabs/questledger/engine"
	mw "github.com/questlabs/questledger/middleware"
)

// SeasonHandler handles season endpoints.
type SeasonHandler struct {
	eng   *engine.Engine
	audit *audit.Service
}

// NewSeasonHandler creates a SeasonHandler.
func NewSeasonHandler(eng *engine.Engine, auditSvc *audit.Service) *SeasonHandler {
	return &SeasonHandler{eng: eng, audit: auditSvc}
}

// Get handles GET /api/season.
func (h *SeasonHandler) Get(c *gin.Context) {
	st, err := h.eng.State(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"season_epoch": st.SeasonEpoch})
}

// Rollover handles POST /api/season/rollover.
func (h *SeasonHandler) Rollover(c *gin.Context) {
	identity := mw.GetIdentity(c)
	start := time.Now()
	epoch, err := h.eng.StartNewSeason(c.Request.Context(), identity)

	entry := audit.Entry{
		TraceID:    mw.GetTraceID(c),
		Identity:   identity,
		Action:     "season.rollover",
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	}
	if err != nil {
		entry.Error = err.Error()
		h.audit.Log(entry)
		respondError(c, err)
		return
	}
	entry.Response = gin.H{"season_epoch": epoch}
	h.audit.Log(entry)
	c.JSON(http.StatusOK, gin.H{"season_epoch": epoch})
}
