package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Carbinski/FriendGroupRanker/models"
	"github.com/Carbinski/FriendGroupRanker/utils"
)

// LeaderboardController aggregates clock-in points per user over a time window.
type LeaderboardController struct {
	db *gorm.DB
}

// NewLeaderboardController creates a new controller instance.
func NewLeaderboardController(db *gorm.DB) *LeaderboardController {
	return &LeaderboardController{db: db}
}

// LeaderboardEntry is one aggregated row; users without a matching clock-in never appear.
type LeaderboardEntry struct {
	UserID       uint   `json:"user_id"`
	DisplayName  string `json:"display_name"`
	TotalPoints  int    `json:"total_points"`
	ClockInCount int    `json:"clock_in_count"`
}

// Get serves GET /leaderboard?range=all|week|month. Unknown or missing range
// behaves as "all". Rows sort by total points descending; ties break on
// ascending user id so the ordering is deterministic.
func (s *LeaderboardController) Get(ctx *gin.Context) {
	if _, ok := getUserID(ctx); !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	rng := ctx.DefaultQuery("range", "all")
	cacheKey := leaderboardCacheKey + rng
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	entries, err := queryLeaderboard(s.db, rng, time.Now())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to compute leaderboard")
		return
	}

	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: entries}
	utils.CacheSetJSON(cacheKey, wrapper, pollCacheTTL)
	utils.Success(ctx, entries)
}

func queryLeaderboard(db *gorm.DB, rng string, now time.Time) ([]LeaderboardEntry, error) {
	q := db.Model(&models.ClockIn{}).
		Select("clock_ins.user_id, users.display_name, SUM(clock_ins.points_earned) AS total_points, COUNT(*) AS clock_in_count").
		Joins("JOIN users ON users.id = clock_ins.user_id").
		Group("clock_ins.user_id, users.display_name").
		Order("total_points DESC").
		Order("clock_ins.user_id ASC")

	switch rng {
	case "week":
		q = q.Where("clock_ins.clocked_in_at >= ?", now.Add(-7*24*time.Hour))
	case "month":
		q = q.Where("clock_ins.clocked_in_at >= ?", now.Add(-30*24*time.Hour))
	}

	entries := []LeaderboardEntry{}
	err := q.Scan(&entries).Error
	return entries, err
}
