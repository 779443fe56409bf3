package app

import (
	"context"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
	"siodbg/pkg/app/config"
	"siodbg/pkg/capture"
	"siodbg/pkg/gpio"
	"siodbg/pkg/mqtt"
	"siodbg/pkg/session"
)

// App is the main application struct.
// App is where the live monitor is wired up: probe or gpio line -> session -> mqtt and web server.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Url parameter
	// and makes it easier to get params out of e.g.
	// url: https://0.0.0.0:7844/?minTls=1.2&bodyLimit=50MB
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// probe is the serial port of the debug probe
	probe *capture.Probe
	// edges is the GPIO line of the raw debug line
	edges *gpio.Line

	// session decodes the frames of the probe
	session *session.Session

	// history holds the latest codes and events for the web server
	history *History

	// cancel stops the decoding loop
	cancel context.CancelFunc
	// done is closed if the decoding loop is terminated
	done chan struct{}
}

// New checks the Web server URL and initialize the main app structure
func New(config *config.Config) (*App, error) {
	u, err := url.Parse(config.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", config.Webserver.URL, err.Error())
		return &App{}, err
	}

	app := &App{
		config:    config,
		urlParsed: u,

		web:     fiber.New(fiber.Config{DisableStartupMessage: true}),
		mqtt:    mqtt.New(config.MQTT.Topic),
		history: NewHistory(config.Webserver.History),
		done:    make(chan struct{}),
	}

	if app.session, err = session.New(config.Session(), session.Tee{app.history, session.SinkFuncs{OnCode: app.mqtt.Code}}); err != nil {
		debug.ErrorLog.Printf("invalid protocol configuration: %v", err)
		return app, err
	}

	return app, nil
}

// Run starts the application.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	go app.mqtt.Service()
	go app.runWebServer()
	go app.decode(ctx)

	return nil
}

// init initializes the application.
func (app *App) init() (err error) {
	c := app.config

	switch c.Monitor.Source {
	case "gpio":
		if app.edges, err = gpio.Open(c.GPIOLine()); err != nil {
			debug.ErrorLog.Printf("can't open gpio line %s/%d: %v", c.GPIO.Chip, c.GPIO.Offset, err)
			return err
		}
		debug.InfoLog.Printf("watching gpio line %s/%d", c.GPIO.Chip, c.GPIO.Offset)
	default:
		if app.probe, err = capture.OpenProbe(c.Serial.Device, c.Serial.Baud, c.Serial.ReadTimeout, c.Protocol.DataBits); err != nil {
			debug.ErrorLog.Printf("can't open probe: %v", err)
			return err
		}
	}

	if err = app.mqtt.Connect(c.MQTT.Connection); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	// initDefaultRoutes should be always called last
	app.initDefaultRoutes()

	return nil
}

// Close stops the decoding loop between two frames and releases all resources.
func (app *App) Close() error {
	if app.cancel != nil {
		app.cancel()
	}

	if app.probe != nil {
		// closing the port releases a blocked read
		_ = app.probe.Close()
	}
	if app.edges != nil {
		_ = app.edges.Close()
		if n := app.edges.Dropped(); n > 0 {
			debug.ErrorLog.Printf("%d edges of the gpio line were lost", n)
		}
	}

	if app.cancel != nil {
		<-app.done
		_ = app.mqtt.Close()
	}

	if app.mqtt != nil {
		_ = app.mqtt.Disconnect()
	}

	if app.web != nil {
		_ = app.web.Shutdown()
	}
	return nil
}
