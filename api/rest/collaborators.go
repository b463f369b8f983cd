package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/questlabs/questledger/audit"
	"github.com/questlabs/questledger/engine"
	mw "github.com/questlabs/questledger/middleware"
)

// CollaboratorHandler manages the staking collaborator list.
type CollaboratorHandler struct {
	eng   *engine.Engine
	audit *audit.Service
}

// NewCollaboratorHandler creates a CollaboratorHandler.
func NewCollaboratorHandler(eng *engine.Engine, auditSvc *audit.Service) *CollaboratorHandler {
	return &CollaboratorHandler{eng: eng, audit: auditSvc}
}

type registerCollaboratorRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=64"`
	Endpoint string `json:"endpoint" binding:"required,url"`
}

// Register handles POST /api/collaborators.
func (h *CollaboratorHandler) Register(c *gin.Context) {
	var req registerCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity := mw.GetIdentity(c)
	start := time.Now()
	collab, err := h.eng.RegisterCollaborator(c.Request.Context(), identity, req.Name, req.Endpoint)

	entry := audit.Entry{
		TraceID:    mw.GetTraceID(c),
		Identity:   identity,
		Action:     "collaborator.register",
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
	entry.Response = collab
	h.audit.Log(entry)
	c.JSON(http.StatusCreated, gin.H{"collaborator": collab})
}

// List handles GET /api/collaborators.
func (h *CollaboratorHandler) List(c *gin.Context) {
	collabs, err := h.eng.ListCollaborators(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collaborators": collabs, "count": len(collabs)})
}
