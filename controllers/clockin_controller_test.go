package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/Carbinski/FriendGroupRanker/config"
	"github.com/Carbinski/FriendGroupRanker/models"
	"github.com/Carbinski/FriendGroupRanker/utils"
)

// Test coordinates: baseLat/baseLng is open ground; nearLat offsets stay
// inside the 100m proximity radius, farLat is well outside it.
const (
	baseLat = 33.7756
	baseLng = -84.3963
	nearLat = baseLat + 0.0005 // ~55m north
	farLat  = baseLat + 0.002  // ~220m north
)

func clockInBody(lat, lng float64) string {
	return fmt.Sprintf(`{"lat": %f, "lng": %f}`, lat, lng)
}

func doClockIn(t *testing.T, ctrl *ClockInController, userID uint, lat, lng float64) (int, envelope) {
	t.Helper()
	c, w := testRequest(http.MethodPost, "/api/v1/clockins", clockInBody(lat, lng), userID)
	ctrl.Create(c)
	return w.Code, decodeEnvelope(t, w)
}

func lastClockIn(t *testing.T, db *gorm.DB, userID uint) models.ClockIn {
	t.Helper()
	var rec models.ClockIn
	if err := db.Where("user_id = ?", userID).Order("id DESC").First(&rec).Error; err != nil {
		t.Fatalf("load clock-in for user %d: %v", userID, err)
	}
	return rec
}

func TestCreateBaseAward(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "base@example.com", "Base")
	ctrl := NewClockInController(db, &config.ZoneConfig{})

	status, _ := doClockIn(t, ctrl, user.ID, baseLat, baseLng)
	if status != http.StatusCreated {
		t.Fatalf("status = %d, want 201", status)
	}

	rec := lastClockIn(t, db, user.ID)
	if rec.PointsEarned != utils.BaseClockInPoints {
		t.Errorf("points = %d, want %d", rec.PointsEarned, utils.BaseClockInPoints)
	}
	if rec.BonusZoneID != nil {
		t.Errorf("bonus zone = %v, want nil", *rec.BonusZoneID)
	}
	if rec.NearbyUserCount != 0 {
		t.Errorf("nearby count = %d, want 0", rec.NearbyUserCount)
	}
	if got := rec.ExpiresAt.Sub(rec.ClockedInAt); got != utils.ClockInDuration {
		t.Errorf("ttl = %v, want %v", got, utils.ClockInDuration)
	}
}

func TestCreateRejectsBadPayload(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "bad@example.com", "Bad")
	ctrl := NewClockInController(db, &config.ZoneConfig{})

	cases := []struct {
		name string
		body string
		code int
	}{
		{"missing lng", `{"lat": 33.7}`, 40020},
		{"non-numeric", `{"lat": "x", "lng": 1}`, 40020},
		{"lat out of range", clockInBody(91, 0), 40021},
		{"lng out of range", clockInBody(0, -181), 40021},
	}
	for _, tc := range cases {
		c, w := testRequest(http.MethodPost, "/api/v1/clockins", tc.body, user.ID)
		ctrl.Create(c)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, w.Code)
		}
		if env := decodeEnvelope(t, w); env.Code != tc.code {
			t.Errorf("%s: code = %d, want %d", tc.name, env.Code, tc.code)
		}
	}

	var count int64
	db.Model(&models.ClockIn{}).Count(&count)
	if count != 0 {
		t.Errorf("clock-ins stored = %d, want 0", count)
	}
}

func TestCreateConflictWhileActive(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "busy@example.com", "Busy")
	ctrl := NewClockInController(db, &config.ZoneConfig{})

	if status, _ := doClockIn(t, ctrl, user.ID, baseLat, baseLng); status != http.StatusCreated {
		t.Fatalf("first clock-in status = %d", status)
	}
	first := lastClockIn(t, db, user.ID)

	status, env := doClockIn(t, ctrl, user.ID, baseLat, baseLng)
	if status != http.StatusConflict {
		t.Fatalf("second clock-in status = %d, want 409", status)
	}
	if env.Code != 40910 {
		t.Errorf("code = %d, want 40910", env.Code)
	}

	var count int64
	db.Model(&models.ClockIn{}).Where("user_id = ?", user.ID).Count(&count)
	if count != 1 {
		t.Errorf("records = %d, want 1", count)
	}
	if again := lastClockIn(t, db, user.ID); again.PointsEarned != first.PointsEarned {
		t.Errorf("existing record points changed: %d -> %d", first.PointsEarned, again.PointsEarned)
	}
}

func TestCreateAllowedAfterExpiry(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "stale@example.com", "Stale")
	ctrl := NewClockInController(db, &config.ZoneConfig{})

	expired := models.ClockIn{
		UserID:       user.ID,
		Latitude:     baseLat,
		Longitude:    baseLng,
		ClockedInAt:  time.Now().Add(-2 * time.Hour),
		ExpiresAt:    time.Now().Add(-30 * time.Minute),
		PointsEarned: 10,
	}
	if err := db.Create(&expired).Error; err != nil {
		t.Fatal(err)
	}

	if status, _ := doClockIn(t, ctrl, user.ID, baseLat, baseLng); status != http.StatusCreated {
		t.Fatalf("clock-in after expiry status = %d, want 201", status)
	}
}

func TestCreateBonusZone(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "bonus@example.com", "Bonus")
	zones := &config.ZoneConfig{
		BonusZones: []config.Zone{{
			ID:     "court",
			Name:   "Court",
			Bounds: config.ZoneBounds{North: baseLat + 0.001, South: baseLat - 0.001, East: baseLng + 0.001, West: baseLng - 0.001},
			Points: 20,
		}},
	}
	ctrl := NewClockInController(db, zones)

	if status, _ := doClockIn(t, ctrl, user.ID, baseLat, baseLng); status != http.StatusCreated {
		t.Fatal("clock-in failed")
	}
	rec := lastClockIn(t, db, user.ID)
	if rec.PointsEarned != 30 {
		t.Errorf("points = %d, want 30", rec.PointsEarned)
	}
	if rec.BonusZoneID == nil || *rec.BonusZoneID != "court" {
		t.Errorf("bonus zone = %v, want court", rec.BonusZoneID)
	}
}

func TestCreateBonusZoneOutsideWindow(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "late@example.com", "Late")

	// A two-hour window guaranteed not to include the current hour.
	h := time.Now().Hour()
	zones := &config.ZoneConfig{
		BonusZones: []config.Zone{{
			ID:          "court",
			Bounds:      config.ZoneBounds{North: baseLat + 0.001, South: baseLat - 0.001, East: baseLng + 0.001, West: baseLng - 0.001},
			Points:      20,
			ActiveHours: &config.ActiveHours{StartHour: (h + 2) % 24, EndHour: (h + 3) % 24},
		}},
	}
	ctrl := NewClockInController(db, zones)

	if status, _ := doClockIn(t, ctrl, user.ID, baseLat, baseLng); status != http.StatusCreated {
		t.Fatal("clock-in failed")
	}
	rec := lastClockIn(t, db, user.ID)
	if rec.PointsEarned != utils.BaseClockInPoints {
		t.Errorf("points = %d, want base only %d", rec.PointsEarned, utils.BaseClockInPoints)
	}
	if rec.BonusZoneID != nil {
		t.Errorf("bonus zone = %v, want nil for inactive window", *rec.BonusZoneID)
	}
}

func TestCreateRedZone(t *testing.T) {
	db := setupTestDB(t)
	neighbor := createTestUser(t, db, "neighbor@example.com", "Neighbor")
	user := createTestUser(t, db, "red@example.com", "Red")

	zones := &config.ZoneConfig{
		RedZones: []config.Zone{{
			ID:     "quiet",
			Bounds: config.ZoneBounds{North: baseLat + 0.001, South: baseLat - 0.001, East: baseLng + 0.001, West: baseLng - 0.001},
		}},
	}
	ctrl := NewClockInController(db, zones)

	// An active neighbor sits inside the proximity radius but must not be
	// counted or credited when the new clock-in lands in a red zone.
	nb := models.ClockIn{
		UserID:       neighbor.ID,
		Latitude:     nearLat,
		Longitude:    baseLng,
		ClockedInAt:  time.Now(),
		ExpiresAt:    time.Now().Add(utils.ClockInDuration),
		PointsEarned: 10,
	}
	if err := db.Create(&nb).Error; err != nil {
		t.Fatal(err)
	}

	status, _ := doClockIn(t, ctrl, user.ID, baseLat, baseLng)
	if status != http.StatusCreated {
		t.Fatalf("red zone clock-in status = %d, want 201", status)
	}

	rec := lastClockIn(t, db, user.ID)
	if rec.PointsEarned != 0 {
		t.Errorf("points = %d, want 0", rec.PointsEarned)
	}
	if rec.BonusZoneID != nil {
		t.Errorf("bonus zone = %v, want nil", *rec.BonusZoneID)
	}
	if rec.NearbyUserCount != 0 {
		t.Errorf("nearby count = %d, want 0", rec.NearbyUserCount)
	}

	var nbAfter models.ClockIn
	db.First(&nbAfter, nb.ID)
	if nbAfter.PointsEarned != 10 {
		t.Errorf("neighbor points = %d, want unchanged 10", nbAfter.PointsEarned)
	}
}

func TestCreateRedZoneOverridesBonus(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "both@example.com", "Both")

	bounds := config.ZoneBounds{North: baseLat + 0.001, South: baseLat - 0.001, East: baseLng + 0.001, West: baseLng - 0.001}
	zones := &config.ZoneConfig{
		BonusZones: []config.Zone{{ID: "court", Bounds: bounds, Points: 20}},
		RedZones:   []config.Zone{{ID: "quiet", Bounds: bounds}},
	}
	ctrl := NewClockInController(db, zones)

	if status, _ := doClockIn(t, ctrl, user.ID, baseLat, baseLng); status != http.StatusCreated {
		t.Fatal("clock-in failed")
	}
	if rec := lastClockIn(t, db, user.ID); rec.PointsEarned != 0 {
		t.Errorf("points = %d, want 0 when red and bonus overlap", rec.PointsEarned)
	}
}

func TestProximityCreditsAccumulate(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice@example.com", "Alice")
	bob := createTestUser(t, db, "bob@example.com", "Bob")
	carol := createTestUser(t, db, "carol@example.com", "Carol")
	dave := createTestUser(t, db, "dave@example.com", "Dave")
	ctrl := NewClockInController(db, &config.ZoneConfig{})

	// Alice clocks in alone.
	doClockIn(t, ctrl, alice.ID, baseLat, baseLng)
	if rec := lastClockIn(t, db, alice.ID); rec.PointsEarned != 10 {
		t.Fatalf("alice points = %d, want 10", rec.PointsEarned)
	}

	// Bob arrives ~55m away: he earns the bonus and Alice is credited.
	doClockIn(t, ctrl, bob.ID, nearLat, baseLng)
	if rec := lastClockIn(t, db, bob.ID); rec.PointsEarned != 20 {
		t.Errorf("bob points = %d, want 20", rec.PointsEarned)
	}
	if rec := lastClockIn(t, db, alice.ID); rec.PointsEarned != 20 {
		t.Errorf("alice points after bob = %d, want 20", rec.PointsEarned)
	}

	// Carol lands between them, within 100m of both. The bonus is flat for
	// her regardless of neighbor count; both neighbors gain another credit.
	doClockIn(t, ctrl, carol.ID, baseLat+0.0002, baseLng)
	carolRec := lastClockIn(t, db, carol.ID)
	if carolRec.PointsEarned != 20 {
		t.Errorf("carol points = %d, want 20", carolRec.PointsEarned)
	}
	if carolRec.NearbyUserCount != 2 {
		t.Errorf("carol nearby count = %d, want 2", carolRec.NearbyUserCount)
	}
	if rec := lastClockIn(t, db, alice.ID); rec.PointsEarned != 30 {
		t.Errorf("alice points after carol = %d, want 30", rec.PointsEarned)
	}
	if rec := lastClockIn(t, db, bob.ID); rec.PointsEarned != 30 {
		t.Errorf("bob points after carol = %d, want 30", rec.PointsEarned)
	}

	// Dave is ~220m out: no bonus either way.
	doClockIn(t, ctrl, dave.ID, farLat, baseLng)
	if rec := lastClockIn(t, db, dave.ID); rec.PointsEarned != 10 {
		t.Errorf("dave points = %d, want 10", rec.PointsEarned)
	}
	if rec := lastClockIn(t, db, alice.ID); rec.PointsEarned != 30 {
		t.Errorf("alice points after dave = %d, want unchanged 30", rec.PointsEarned)
	}
}

func TestProximityIgnoresExpiredNeighbors(t *testing.T) {
	db := setupTestDB(t)
	ghost := createTestUser(t, db, "ghost@example.com", "Ghost")
	user := createTestUser(t, db, "alone@example.com", "Alone")
	ctrl := NewClockInController(db, &config.ZoneConfig{})

	stale := models.ClockIn{
		UserID:       ghost.ID,
		Latitude:     nearLat,
		Longitude:    baseLng,
		ClockedInAt:  time.Now().Add(-2 * time.Hour),
		ExpiresAt:    time.Now().Add(-30 * time.Minute),
		PointsEarned: 10,
	}
	if err := db.Create(&stale).Error; err != nil {
		t.Fatal(err)
	}

	doClockIn(t, ctrl, user.ID, baseLat, baseLng)
	if rec := lastClockIn(t, db, user.ID); rec.PointsEarned != 10 || rec.NearbyUserCount != 0 {
		t.Errorf("points = %d nearby = %d, want 10 and 0", rec.PointsEarned, rec.NearbyUserCount)
	}

	var staleAfter models.ClockIn
	db.First(&staleAfter, stale.ID)
	if staleAfter.PointsEarned != 10 {
		t.Errorf("expired neighbor points = %d, want unchanged 10", staleAfter.PointsEarned)
	}
}

func TestListActiveExcludesExpired(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice2@example.com", "Alice")
	bob := createTestUser(t, db, "bob2@example.com", "Bob")
	ctrl := NewClockInController(db, &config.ZoneConfig{})

	now := time.Now()
	records := []models.ClockIn{
		{UserID: alice.ID, Latitude: baseLat, Longitude: baseLng, ClockedInAt: now.Add(-10 * time.Minute), ExpiresAt: now.Add(80 * time.Minute), PointsEarned: 10},
		{UserID: bob.ID, Latitude: nearLat, Longitude: baseLng, ClockedInAt: now.Add(-5 * time.Minute), ExpiresAt: now.Add(85 * time.Minute), PointsEarned: 20},
		{UserID: alice.ID, Latitude: baseLat, Longitude: baseLng, ClockedInAt: now.Add(-3 * time.Hour), ExpiresAt: now.Add(-90 * time.Minute), PointsEarned: 10},
	}
	for i := range records {
		if err := db.Create(&records[i]).Error; err != nil {
			t.Fatal(err)
		}
	}

	c, w := testRequest(http.MethodGet, "/api/v1/clockins", "", alice.ID)
	ctrl.ListActive(c)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	env := decodeEnvelope(t, w)
	var rows []ClockInPublic
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].UserID != alice.ID || rows[1].UserID != bob.ID {
		t.Errorf("row order = [%d %d], want oldest first [%d %d]", rows[0].UserID, rows[1].UserID, alice.ID, bob.ID)
	}
	if rows[0].DisplayName != "Alice" {
		t.Errorf("display name = %q, want Alice", rows[0].DisplayName)
	}
	if rows[0].Lat != baseLat || rows[0].Lng != baseLng {
		t.Errorf("coords = (%f, %f), want (%f, %f)", rows[0].Lat, rows[0].Lng, baseLat, baseLng)
	}
}

func TestListActiveRequiresAuth(t *testing.T) {
	db := setupTestDB(t)
	ctrl := NewClockInController(db, &config.ZoneConfig{})

	c, w := testRequest(http.MethodGet, "/api/v1/clockins", "", 0)
	ctrl.ListActive(c)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
