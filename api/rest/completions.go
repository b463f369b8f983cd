package rest

import (
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/questlabs/questledger/engine"
	"go.uber.org/zap"
)

// CompletionHandler handles the user-facing completion endpoints. These are
// not operator-gated: authorization is the signature itself, checked inside
// the engine.
type CompletionHandler struct {
	eng    *engine.Engine
	logger *zap.Logger
}

// NewCompletionHandler creates a CompletionHandler.
func NewCompletionHandler(eng *engine.Engine, logger *zap.Logger) *CompletionHandler {
	return &CompletionHandler{eng: eng, logger: logger}
}

type completeRequest struct {
	QuestIDs   []int64  `json:"quest_ids" binding:"required"`
	Signatures []string `json:"signatures" binding:"required"` // hex-encoded
}

// Complete handles POST /api/accounts/:account/completions.
func (h *CompletionHandler) Complete(c *gin.Context) {
	account := c.Param("account")
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sigs := make([][]byte, len(req.Signatures))
	for i, s := range req.Signatures {
		raw, err := hex.DecodeString(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "signature is not valid hex", "code": "invalid_args"})
			return
		}
		sigs[i] = raw
	}

	total, err := h.eng.CompleteQuests(c.Request.Context(), account, req.QuestIDs, sigs)
	if err != nil {
		h.logger.Info("completion batch rejected",
			zap.String("account", account),
			zap.Int("quests", len(req.QuestIDs)),
			zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":          account,
		"total_multiplier": total,
		"completed":        len(req.QuestIDs),
	})
}

// List handles GET /api/accounts/:account/completions.
func (h *CompletionHandler) List(c *gin.Context) {
	account := c.Param("account")
	rows, err := h.eng.ListCompletions(c.Request.Context(), account)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completions": rows, "count": len(rows)})
}

// Multiplier handles GET /api/accounts/:account/multiplier.
func (h *CompletionHandler) Multiplier(c *gin.Context) {
	account := c.Param("account")
	total, err := h.eng.TotalMultiplier(c.Request.Context(), account)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "total_multiplier": total})
}
