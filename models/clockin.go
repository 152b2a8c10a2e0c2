package models

import "time"

// ClockIn stores one user's presence claim at a coordinate. A record is
// "active" while ExpiresAt lies in the future; it never gets deleted for
// correctness, only reaped for hygiene. PointsEarned may grow after creation
// when later arrivals within the proximity radius credit their neighbors.
type ClockIn struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"index:idx_clock_ins_user_expires,priority:1;not null" json:"user_id"`
	Latitude        float64   `gorm:"not null" json:"lat"`
	Longitude       float64   `gorm:"not null" json:"lng"`
	ClockedInAt     time.Time `gorm:"index;not null" json:"clocked_in_at"`
	ExpiresAt       time.Time `gorm:"index:idx_clock_ins_user_expires,priority:2;not null" json:"expires_at"`
	PointsEarned    int       `gorm:"not null" json:"points_earned"`
	BonusZoneID     *string   `gorm:"size:64" json:"bonus_zone_id"`
	NearbyUserCount int       `gorm:"not null;default:0" json:"nearby_user_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName keeps the table name stable regardless of pluralization rules.
func (ClockIn) TableName() string {
	return "clock_ins"
}
