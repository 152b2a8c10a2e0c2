package main

import (
	"time"

	"github.com/Carbinski/FriendGroupRanker/config"
	"github.com/Carbinski/FriendGroupRanker/models"
	"github.com/Carbinski/FriendGroupRanker/routes"
	"github.com/Carbinski/FriendGroupRanker/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	zones, err := config.LoadZones()
	if err != nil {
		utils.Sugar.Fatalf("failed to load zone configuration: %v", err)
	}
	utils.Sugar.Infof("loaded %d bonus zones, %d red zones", len(zones.BonusZones), len(zones.RedZones))

	db := config.InitDatabase(&models.User{}, &models.ClockIn{})

	r := routes.SetupRouter(db, zones)

	// Background reaper for long-expired clock-ins (no-op unless retention configured)
	utils.StartClockInReaper(db, time.Hour)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
