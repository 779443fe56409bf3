package app

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// VERSION is the release of siodbg, the build date follows the +.
const (
	VERSION = "1.0.10+20261001"
	MODULE  = "siodbg"
)

// HandleVersion reports the release and the configured input of the monitor.
func (app *App) HandleVersion() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request version")

		return ctx.JSON(fiber.Map{
			"version":     VERSION,
			"description": MODULE,
			"about":       Version(),
			"source":      app.config.Monitor.Source,
		})
	}
}

// Version returns the module name and the release without build date, e.g. "siodbg V1.0.10".
func Version() string {
	return MODULE + " V" + strings.SplitN(VERSION, "+", 2)[0]
}
