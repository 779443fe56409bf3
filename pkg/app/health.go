package app

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// HandleHealth returns data about the health of myself and the decoder.
// output example:
//  {"NumGoroutines":11,"HeapAllocatedMB":3,"SysMemoryMB":12,"Version":"1.0.10+20261001",
//   "ProgLang":"go1.21.0","Probe":"/dev/ttyACM0","Frames":1234,"Codes":301}
func (app *App) HandleHealth() fiber.Handler {
	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}

	host, _ := os.Hostname()
	started := time.Now()

	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request health")

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		stats := app.history.Stats()

		probe := app.config.Serial.Device
		if app.config.Monitor.Source == "gpio" {
			probe = fmt.Sprintf("%s/%d", app.config.GPIO.Chip, app.config.GPIO.Offset)
		}

		healthData := struct {
			NumGoroutines   int
			NumCPU          int
			HeapAllocatedMB uint64
			SysMemoryMB     uint64
			Version         string
			ProgLang        string
			HostName        string
			Time            string
			Uptime          string
			Probe           string
			Frames          int
			Codes           int
			Errors          int
		}{
			NumGoroutines:   runtime.NumGoroutine(),
			NumCPU:          runtime.NumCPU(),
			HeapAllocatedMB: bToMb(m.Alloc),
			SysMemoryMB:     bToMb(m.Sys),
			ProgLang:        runtime.Version(),
			Version:         VERSION,
			HostName:        host,
			Time:            time.Now().Format(time.RFC3339),
			Uptime:          time.Since(started).Round(time.Second).String(),
			Probe:           probe,
			Frames:          stats.Frames,
			Codes:           stats.Codes,
			Errors:          stats.FramingErrors + stats.SyncLosses + stats.InvalidPorts,
		}
		ctx.Status(http.StatusOK)
		return ctx.JSON(healthData)
	}
}
