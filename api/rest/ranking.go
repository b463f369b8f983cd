package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/questlabs/questledger/cache"
	"github.com/questlabs/questledger/engine"
	"go.uber.org/zap"
)

// RankingHandler serves the multiplier leaderboard from a cached sorted
// set, falling back to (and refilling from) the engine when the cache is
// cold.
type RankingHandler struct {
	eng    *engine.Engine
	cache  cache.Cache
	logger *zap.Logger
}

// NewRankingHandler creates a RankingHandler.
func NewRankingHandler(eng *engine.Engine, c cache.Cache, logger *zap.Logger) *RankingHandler {
	return &RankingHandler{eng: eng, cache: c, logger: logger}
}

const rankingZKey = "ranking:multiplier"
const rankingTop = 100

// RankEntry is one row in the leaderboard.
type RankEntry struct {
	Rank    int    `json:"rank"`
	Account string `json:"account"`
	Total   int    `json:"total"`
}

// TopMultiplier returns the accounts with the highest total multipliers.
// GET /api/ranking/multiplier?limit=20
func (h *RankingHandler) TopMultiplier(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= rankingTop {
		limit = l
	}

	// Try cached ranking from the sorted set.
	ctx := c.Request.Context()
	members, err := h.cache.ZRevRange(ctx, rankingZKey, 0, int64(limit-1))
	if err == nil && len(members) > 0 {
		entries := make([]RankEntry, 0, len(members))
		for i, m := range members {
			score, _ := h.cache.ZScore(ctx, rankingZKey, m)
			entries = append(entries, RankEntry{
				Rank:    i + 1,
				Account: m,
				Total:   int(score),
			})
		}
		c.JSON(http.StatusOK, gin.H{"ranking": entries})
		return
	}

	// Fall back to the engine and refill the cache.
	ranked, err := h.eng.TopMultipliers(ctx, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	entries := make([]RankEntry, len(ranked))
	for i, r := range ranked {
		entries[i] = RankEntry{Rank: i + 1, Account: r.Account, Total: r.Total}
		_ = h.cache.ZAdd(ctx, rankingZKey, float64(r.Total), r.Account)
	}
	c.JSON(http.StatusOK, gin.H{"ranking": entries})
}

// Refresh rebuilds the leaderboard sorted set from the engine. Called
// periodically by the scheduler.
func (h *RankingHandler) Refresh(ctx context.Context) {
	ranked, err := h.eng.TopMultipliers(ctx, rankingTop)
	if err != nil {
		h.logger.Error("ranking refresh failed", zap.Error(err))
		return
	}
	for _, r := range ranked {
		_ = h.cache.ZAdd(ctx, rankingZKey, float64(r.Total), r.Account)
	}
	h.logger.Debug("ranking refreshed", zap.Int("entries", len(ranked)))
}
