package utils

import "time"

const (
	// BaseClockInPoints is awarded for every clock-in outside a red zone.
	BaseClockInPoints = 10
	// ProximityBonusPoints goes to everyone in a nearby group, both the
	// arriving user and each already-active neighbor.
	ProximityBonusPoints = 10
	// ClockInDuration is how long a clock-in stays active.
	ClockInDuration = 90 * time.Minute
	// NearbyRadiusMeters is the search radius for nearby active clock-ins.
	NearbyRadiusMeters = 100.0
)

// NearbyBonusPoints returns the proximity bonus for the arriving user.
// Any neighbor at all triggers the full bonus; the count does not scale it.
func NearbyBonusPoints(nearbyCount int) int {
	if nearbyCount >= 1 {
		return ProximityBonusPoints
	}
	return 0
}

// TotalClockInPoints computes the points for a single clock-in outside a red
// zone: base award plus bonus-zone award plus the binary proximity bonus.
func TotalClockInPoints(bonusZonePoints, nearbyCount int) int {
	return BaseClockInPoints + bonusZonePoints + NearbyBonusPoints(nearbyCount)
}
