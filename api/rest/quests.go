package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/questlabs/questledger/audit"
	"github.com/questlabs/questledger/engine"
	mw "github.com/questlabs/questledger/middleware"
	"github.com/questlabs/questledger/model"
)

// QuestHandler handles quest registry endpoints. Reads are public; writes
// carry the operator's identity into the engine, which enforces the role
// checks itself.
type QuestHandler struct {
	eng   *engine.Engine
	audit *audit.Service
}

// NewQuestHandler creates a QuestHandler.
func NewQuestHandler(eng *engine.Engine, auditSvc *audit.Service) *QuestHandler {
	return &QuestHandler{eng: eng, audit: auditSvc}
}

type createQuestRequest struct {
	Kind       string    `json:"kind" binding:"required,oneof=permanent seasonal"`
	Multiplier int       `json:"multiplier" binding:"required"`
	ExpiresAt  time.Time `json:"expires_at" binding:"required"`
}

// Create handles POST /api/quests.
func (h *QuestHandler) Create(c *gin.Context) {
	var req createQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind := model.QuestKindPermanent
	if req.Kind == "seasonal" {
		kind = model.QuestKindSeasonal
	}

	identity := mw.GetIdentity(c)
	start := time.Now()
	quest, err := h.eng.AddQuest(c.Request.Context(), identity, kind, req.Multiplier, req.ExpiresAt)

	entry := audit.Entry{
		TraceID:    mw.GetTraceID(c),
		Identity:   identity,
		Action:     "quest.add",
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
	entry.Response = quest
	h.audit.Log(entry)
	c.JSON(http.StatusCreated, gin.H{"quest": quest})
}

// Expire handles POST /api/quests/:id/expire.
func (h *QuestHandler) Expire(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	identity := mw.GetIdentity(c)
	start := time.Now()
	quest, err := h.eng.ExpireQuest(c.Request.Context(), identity, id)

	entry := audit.Entry{
		TraceID:    mw.GetTraceID(c),
		Identity:   identity,
		Action:     "quest.expire",
		Request:    gin.H{"id": id},
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	}
	if err != nil {
		entry.Error = err.Error()
		h.audit.Log(entry)
		respondError(c, err)
		return
	}
	entry.Response = quest
	h.audit.Log(entry)
	c.JSON(http.StatusOK, gin.H{"quest": quest})
}

// Get handles GET /api/quests/:id.
func (h *QuestHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	quest, err := h.eng.GetQuest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quest": quest})
}

// List handles GET /api/quests.
func (h *QuestHandler) List(c *gin.Context) {
	quests, err := h.eng.ListQuests(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": quests, "count": len(quests)})
}
