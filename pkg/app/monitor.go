package app

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/womat/debug"
)

// statsInterval is the minimum time between two updates of the counters of the web server.
const statsInterval = 100 * time.Millisecond

// decode feeds the frames of the probe or the samples of the gpio line to the session until ctx is canceled.
func (app *App) decode(ctx context.Context) {
	defer close(app.done)

	if app.edges != nil {
		app.decodeSamples(ctx)
		return
	}
	app.decodeFrames(ctx)
}

// decodeFrames reads the frames of the probe in an endless loop.
// The context is checked between frames, the shadow bytes are never left behind a half read frame.
func (app *App) decodeFrames(ctx context.Context) {
	for ctx.Err() == nil {
		f, err := app.probe.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				debug.InfoLog.Print("probe closed")
				return
			}

			debug.ErrorLog.Printf("read probe: %v", err)
			time.Sleep(time.Second)
			continue
		}

		debug.TraceLog.Printf("frame: %v", f)
		app.session.PushFrame(f)
		app.history.SetStats(app.session.Stats())
	}
}

// decodeSamples reads the edges of the gpio line until the line is closed.
func (app *App) decodeSamples(ctx context.Context) {
	var updated time.Time

	for {
		if app.session.Idle() && ctx.Err() != nil {
			return
		}

		s, err := app.edges.ReadSample()
		if err != nil {
			debug.InfoLog.Printf("gpio line closed: %v", err)
			app.history.SetStats(app.session.Stats())
			return
		}

		app.session.PushSample(s)
		if time.Since(updated) > statsInterval {
			app.history.SetStats(app.session.Stats())
			updated = time.Now()
		}
	}
}
