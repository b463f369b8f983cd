package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/questlabs/questledger/audit"
	"github.com/questlabs/questledger/engine"
	mw "github.com/questlabs/questledger/middleware"
)

// RoleHandler handles role rotation endpoints.
type RoleHandler struct {
	eng   *engine.Engine
	audit *audit.Service
}

// NewRoleHandler creates a RoleHandler.
func NewRoleHandler(eng *engine.Engine, auditSvc *audit.Service) *RoleHandler {
	return &RoleHandler{eng: eng, audit: auditSvc}
}

// Get handles GET /api/roles.
func (h *RoleHandler) Get(c *gin.Context) {
	st, err := h.eng.State(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"quest_master": st.QuestMaster,
		"quest_signer": st.QuestSigner,
		"governor":     st.Governor,
	})
}

type rotateRequest struct {
	Identity string `json:"identity" binding:"required,min=2,max=64"`
}

// SetQuestMaster handles PUT /api/roles/quest-master.
func (h *RoleHandler) SetQuestMaster(c *gin.Context) {
	h.rotate(c, "roles.set_quest_master", h.eng.SetQuestMaster)
}

// SetQuestSigner handles PUT /api/roles/quest-signer.
func (h *RoleHandler) SetQuestSigner(c *gin.Context) {
	h.rotate(c, "roles.set_quest_signer", h.eng.SetQuestSigner)
}

func (h *RoleHandler) rotate(c *gin.Context, action string, fn func(ctx context.Context, caller, newIdentity string) error) {
	var req rotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity := mw.GetIdentity(c)
	start := time.Now()
	err := fn(c.Request.Context(), identity, req.Identity)

	entry := audit.Entry{
		TraceID:    mw.GetTraceID(c),
		Identity:   identity,
		Action:     action,
		Request:    req,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	}
	if err != nil {
		entry.Error = err.Error()
		h.audit.Log(entry)
		respondError(c, err)
		return
	}
	h.audit.Log(entry)
	c.JSON(http.StatusOK, gin.H{"identity": req.Identity})
}
