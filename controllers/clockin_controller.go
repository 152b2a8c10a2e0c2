package controllers

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Carbinski/FriendGroupRanker/config"
	"github.com/Carbinski/FriendGroupRanker/models"
	"github.com/Carbinski/FriendGroupRanker/utils"
)

// ClockInController handles clock-in submission and the active list used by the polling map UI.
type ClockInController struct {
	db    *gorm.DB
	zones *config.ZoneConfig
}

var errActiveClockInExists = errors.New("active clock-in exists")

// NewClockInController creates a new controller instance.
func NewClockInController(db *gorm.DB, zones *config.ZoneConfig) *ClockInController {
	return &ClockInController{db: db, zones: zones}
}

// Per-user locks serialize concurrent submissions from the same user so the
// check-then-insert pair below cannot race itself. One mutex per user, never
// evicted (a pointer per registered user is cheap).
var (
	userLocks   = map[uint]*sync.Mutex{}
	userLocksMu sync.Mutex
)

func lockForUser(userID uint) *sync.Mutex {
	userLocksMu.Lock()
	defer userLocksMu.Unlock()
	mu, ok := userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		userLocks[userID] = mu
	}
	return mu
}

// ClockInPublic is the wire shape for a clock-in decorated with its owner's display name.
type ClockInPublic struct {
	ID           uint      `json:"id"`
	UserID       uint      `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	ClockedInAt  time.Time `json:"clocked_in_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	PointsEarned int       `json:"points_earned"`
}

// Create records a clock-in at the submitted coordinate.
//
// Points: base award, plus the bonus zone the point lands in (if the zone is
// active at this hour), plus a flat proximity bonus when at least one other
// user has an active clock-in within 100m. Each such neighbor's record is
// credited the same flat bonus retroactively. A coordinate inside an active
// red zone earns nothing and triggers no proximity pass. A user with an
// unexpired record gets a 409 and no state changes.
func (s *ClockInController) Create(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		Lat *float64 `json:"lat" binding:"required"`
		Lng *float64 `json:"lng" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "valid lat and lng are required")
		return
	}
	lat, lng := *req.Lat, *req.Lng
	if !utils.ValidCoordinate(lat, lng) {
		utils.Error(ctx, http.StatusBadRequest, 40021, "coordinates out of range")
		return
	}

	now := time.Now()

	mu := lockForUser(userID)
	mu.Lock()
	defer mu.Unlock()

	record := models.ClockIn{
		UserID:      userID,
		Latitude:    lat,
		Longitude:   lng,
		ClockedInAt: now,
		ExpiresAt:   now.Add(utils.ClockInDuration),
	}

	var nearbyIDs []uint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.ClockIn
		err := tx.Where("user_id = ? AND expires_at > ?", userID, now).First(&existing).Error
		if err == nil {
			return errActiveClockInExists
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// Red zone wins over everything: zero points, no zone credit, and
		// the proximity pass is skipped entirely in both directions.
		if red := s.zones.FindRedZone(lat, lng, now); red != nil {
			return tx.Create(&record).Error
		}

		bonusZonePoints := 0
		if zone := s.zones.FindBonusZone(lat, lng, now); zone != nil {
			id := zone.ID
			record.BonusZoneID = &id
			bonusZonePoints = zone.Points
		}

		nearby, err := activeClockInsNear(tx, userID, lat, lng, now)
		if err != nil {
			return err
		}
		nearbyIDs = nearby

		record.NearbyUserCount = len(nearbyIDs)
		record.PointsEarned = utils.TotalClockInPoints(bonusZonePoints, len(nearbyIDs))

		return tx.Create(&record).Error
	})

	if err != nil {
		if errors.Is(err, errActiveClockInExists) {
			utils.Error(ctx, http.StatusConflict, 40910, "you already have an active clock-in, wait for it to expire")
			return
		}
		utils.Sugar.Errorf("clock-in insert failed user=%d: %v", userID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to record clock-in")
		return
	}

	// Retroactive credit for already-present neighbors. Best-effort: the new
	// record is committed and its own points stand, so a failure here is
	// logged rather than rolled back.
	if len(nearbyIDs) >= 1 {
		res := s.db.Model(&models.ClockIn{}).
			Where("id IN ?", utils.UniqueUint(nearbyIDs)).
			UpdateColumn("points_earned", gorm.Expr("points_earned + ?", utils.ProximityBonusPoints))
		if res.Error != nil {
			utils.Sugar.Errorf("proximity credit failed for %d neighbors of clock-in %d: %v", len(nearbyIDs), record.ID, res.Error)
		}
	}

	invalidatePollCaches()

	var user models.User
	displayName := "Unknown"
	if err := s.db.First(&user, userID).Error; err == nil {
		displayName = user.DisplayName
	}

	utils.Created(ctx, ClockInPublic{
		ID:           record.ID,
		UserID:       record.UserID,
		DisplayName:  displayName,
		Lat:          record.Latitude,
		Lng:          record.Longitude,
		ClockedInAt:  record.ClockedInAt,
		ExpiresAt:    record.ExpiresAt,
		PointsEarned: record.PointsEarned,
	})
}

// activeClockInsNear returns ids of other users' unexpired clock-ins within
// the nearby radius. A lat/lng bounding box narrows the scan in SQL, then the
// exact great-circle distance filters the candidates.
func activeClockInsNear(tx *gorm.DB, userID uint, lat, lng float64, now time.Time) ([]uint, error) {
	minLat, maxLat, minLng, maxLng := utils.BoundingBox(lat, lng, utils.NearbyRadiusMeters)

	var candidates []models.ClockIn
	err := tx.
		Where("expires_at > ? AND user_id <> ?", now, userID).
		Where("latitude BETWEEN ? AND ?", minLat, maxLat).
		Where("longitude BETWEEN ? AND ?", minLng, maxLng).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(candidates))
	for _, c := range candidates {
		if utils.HaversineMeters(lat, lng, c.Latitude, c.Longitude) <= utils.NearbyRadiusMeters {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

// ListActive returns every unexpired clock-in with display names, cached
// briefly since the dashboard polls it every few seconds.
func (s *ClockInController) ListActive(ctx *gin.Context) {
	if _, ok := getUserID(ctx); !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	if b, ok := utils.CacheGetBytes(activeListCacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	rows, err := listActiveClockIns(s.db, time.Now())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to list clock-ins")
		return
	}

	wrapper := utils.JSONResponse{Code: 0, Message: "success", Data: rows}
	utils.CacheSetJSON(activeListCacheKey, wrapper, pollCacheTTL)
	utils.Success(ctx, rows)
}

func listActiveClockIns(db *gorm.DB, now time.Time) ([]ClockInPublic, error) {
	rows := []ClockInPublic{}
	err := db.Model(&models.ClockIn{}).
		Select("clock_ins.id, clock_ins.user_id, users.display_name, clock_ins.latitude AS lat, clock_ins.longitude AS lng, clock_ins.clocked_in_at, clock_ins.expires_at, clock_ins.points_earned").
		Joins("JOIN users ON users.id = clock_ins.user_id").
		Where("clock_ins.expires_at > ?", now).
		Order("clock_ins.clocked_in_at ASC").
		Scan(&rows).Error
	return rows, err
}

const (
	activeListCacheKey  = "cache:clockins:active"
	leaderboardCacheKey = "cache:leaderboard:"
	// Shorter than the dashboard's 12s poll interval so consecutive polls
	// still observe fresh data at least once per interval.
	pollCacheTTL = 10 * time.Second
)

func invalidatePollCaches() {
	utils.InvalidateByPrefix(activeListCacheKey)
	utils.InvalidateByPrefix(leaderboardCacheKey)
}
