package app

import (
	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// runWebServer starts the applications web server and listens for web requests.
//  It's designed to run in a separate go function to not block the main go function.
//  e.g.: go runWebServer()
//  See app.Run()
func (app *App) runWebServer() {
	err := app.web.Listen(app.urlParsed.Host)
	debug.ErrorLog.Print(err)
}

// HandleCodes returns the latest POST codes, oldest first.
func (app *App) HandleCodes() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request codes")

		return ctx.JSON(app.history.Codes())
	}
}

// HandleEvents returns the latest port write events, oldest first.
func (app *App) HandleEvents() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request events")

		return ctx.JSON(app.history.Events())
	}
}

// HandleStats returns the counters of the decoding session and the latest errors.
func (app *App) HandleStats() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request stats")

		return ctx.JSON(fiber.Map{
			"stats":  app.history.Stats(),
			"errors": app.history.Errors(),
		})
	}
}
