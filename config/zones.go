package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ZoneBounds describes a rectangular region by its edge coordinates.
// Containment is inclusive on every edge.
type ZoneBounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// ActiveHours restricts a zone's effect to an hour-of-day window.
// StartHour > EndHour means the window wraps past midnight (e.g. 22-6).
type ActiveHours struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// Zone is a configured bonus or red zone. Points only applies to bonus zones.
type Zone struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Bounds      ZoneBounds   `json:"bounds"`
	Points      int          `json:"points,omitempty"`
	ActiveHours *ActiveHours `json:"active_hours,omitempty"`
}

// ZoneConfig holds the deploy-time zone geometry. It is loaded once at boot
// and read-only afterwards; handlers receive it by injection so tests can
// substitute synthetic zone sets.
type ZoneConfig struct {
	BonusZones []Zone `json:"bonus_zones"`
	RedZones   []Zone `json:"red_zones"`
}

// defaultZoneConfig mirrors the production map deployment.
func defaultZoneConfig() *ZoneConfig {
	return &ZoneConfig{
		BonusZones: []Zone{
			{
				ID:     "zone-1",
				Name:   "PG 3",
				Bounds: ZoneBounds{North: 33.7745, South: 33.77422, East: -84.39548, West: -84.39607},
				Points: 20,
			},
			{
				ID:     "zone-2",
				Name:   "Student Center",
				Bounds: ZoneBounds{North: 33.77392, South: 33.77361, East: -84.39801, West: -84.39903},
				Points: 10,
			},
		},
		RedZones: []Zone{
			{
				ID:     "red-1",
				Name:   "SQ5 and Uhouse",
				Bounds: ZoneBounds{North: 33.78048, South: 33.77786, East: -84.38886, West: -84.39054},
			},
			{
				ID:     "red-2",
				Name:   "Whistler",
				Bounds: ZoneBounds{North: 33.77949, South: 33.77809, East: -84.38735, West: -84.38870},
			},
		},
	}
}

// LoadZones reads the zone geometry file referenced by configuration.
// A missing file yields the compiled-in defaults; invalid JSON is an error.
func LoadZones() (*ZoneConfig, error) {
	return LoadZonesFile(Get().ZonesPath)
}

// LoadZonesFile reads the zone geometry from an explicit path.
func LoadZonesFile(path string) (*ZoneConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultZoneConfig(), nil
		}
		return nil, fmt.Errorf("open zones file: %w", err)
	}
	defer f.Close()

	var zc ZoneConfig
	if err := json.NewDecoder(f).Decode(&zc); err != nil {
		return nil, fmt.Errorf("parse zones file %s: %w", path, err)
	}
	return &zc, nil
}

// IsZoneActiveAt reports whether the zone's effect applies at the given
// instant. Zones without an ActiveHours window are always active.
func IsZoneActiveAt(zone Zone, at time.Time) bool {
	if zone.ActiveHours == nil {
		return true
	}
	hour := at.Hour()
	start, end := zone.ActiveHours.StartHour, zone.ActiveHours.EndHour
	if start <= end {
		return hour >= start && hour <= end
	}
	// Overnight window (e.g. 22-6)
	return hour >= start || hour <= end
}

// FindBonusZone returns the first bonus zone whose bounds contain the point,
// provided it is active at the given time. The geometric match wins before
// the time check: a point inside an inactive zone is zone-less, it does not
// fall through to later zones in the list.
func (zc *ZoneConfig) FindBonusZone(lat, lng float64, at time.Time) *Zone {
	return findZone(zc.BonusZones, lat, lng, at)
}

// FindRedZone is the same scan over the red-zone list.
func (zc *ZoneConfig) FindRedZone(lat, lng float64, at time.Time) *Zone {
	return findZone(zc.RedZones, lat, lng, at)
}

func findZone(zones []Zone, lat, lng float64, at time.Time) *Zone {
	for i := range zones {
		b := zones[i].Bounds
		if lat <= b.North && lat >= b.South && lng <= b.East && lng >= b.West {
			if IsZoneActiveAt(zones[i], at) {
				return &zones[i]
			}
			return nil
		}
	}
	return nil
}
