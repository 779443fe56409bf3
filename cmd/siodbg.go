package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/womat/debug"
	"siodbg/pkg/app"
	"siodbg/pkg/app/config"
	"siodbg/pkg/capture"
	"siodbg/pkg/report"
	"siodbg/pkg/session"
	"siodbg/pkg/siouart"
)

const defaultConfigFile = "/opt/siodbg/config/" + app.MODULE + ".yaml"

func main() {
	exitCode := 1
	defer func() {
		os.Exit(exitCode)
	}()

	// cfg holds the application configuration
	cfg := config.NewConfig()

	cliApp := &cli.App{
		Name:    app.MODULE,
		Usage:   "Decoder for the Nuvoton SIO debug UART (serial port 80h POST codes)",
		Version: app.VERSION,
		Description: "Decode captures of the SIO debug line to I/O port writes and reassemble the POST codes" +
			"\n written by the firmware to the ports 0x80-0x83." +
			"\n The line is a 1.5 Mbaud UART with 26-bit frames.",
		UsageText: "siodbg [--config <file>] [--log standard|debug|trace] command [options] [file]" +
			"\n\nEXAMPLE:" +
			"\n\tdecode a Saleae Logic CSV export and show the write events" +
			"\n\t\tsiodbg decode --events capture.csv" +
			"\n\tshow the fields of a sigrok siodebuguart log" +
			"\n\t\tsiodbg fields --arrange 25-18,17-16,15-8,7-0 trace.log" +
			"\n\tpublish the POST codes received by a probe" +
			"\n\t\tsiodbg --config /opt/siodbg/config/siodbg.yaml monitor",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &cfg.Flag.ConfigFile, Value: defaultConfigFile, Usage: "load configuration from `FILE`"},
			&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Destination: &cfg.Flag.Debug, Usage: "`LEVEL` defines the log level (standard|debug|trace)"},
		},
		Before: func(ctx *cli.Context) error {
			// the default configuration file is optional
			if !ctx.IsSet("config") && !ctx.IsSet("c") && !cfg.FileExists() {
				cfg.Flag.ConfigFile = ""
			}

			if err := cfg.LoadConfig(); err != nil {
				return err
			}

			debug.SetDebug(cfg.Debug.File, cfg.Debug.Flag)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "decode",
				Usage:     "decode a capture file to POST codes",
				ArgsUsage: "[FILE]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: cfg.Input.Format, Usage: "capture `FORMAT` (auto|csv|saleae|sal|frames)"},
					&cli.IntFlag{Name: "channel", Value: cfg.Input.Channel, Usage: "digital `CHANNEL` of csv and sal captures"},
					&cli.BoolFlag{Name: "invert", Usage: "invert the line level"},
					&cli.BoolFlag{Name: "events", Aliases: []string{"e"}, Usage: "show the port write events"},
					&cli.BoolFlag{Name: "errors", Usage: "show framing errors, sync losses and invalid ports"},
					&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "show event index and carried byte lanes of the POST codes"},
					&cli.BoolFlag{Name: "stats", Usage: "show the decoder counters at the end"},
					&cli.BoolFlag{Name: "bytecodes", Usage: "report repeated writes to port 0x80 as 8-bit POST codes"},
				},
				Action: decodeAction(cfg),
			},
			{
				Name:      "fields",
				Usage:     "show the bit fields of every frame",
				ArgsUsage: "[FILE]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "arrange", Aliases: []string{"a"}, Value: "25-0", Usage: "bit `RANGES` to show (e.g. 25-24,23-0)"},
					&cli.BoolFlag{Name: "binary", Aliases: []string{"b"}, Usage: "format the fields as binary instead of hex"},
					&cli.BoolFlag{Name: "reverse", Aliases: []string{"r"}, Usage: "bit-reverse the frame before formatting"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: cfg.Input.Format, Usage: "capture `FORMAT` (auto|csv|saleae|sal|frames)"},
					&cli.IntFlag{Name: "channel", Value: cfg.Input.Channel, Usage: "digital `CHANNEL` of csv and sal captures"},
					&cli.BoolFlag{Name: "invert", Usage: "invert the line level"},
				},
				Action: fieldsAction(cfg),
			},
			{
				Name:   "monitor",
				Usage:  "decode the frames of a serial probe or the edges of a gpio line and publish the POST codes",
				Action: monitorAction(cfg),
			},
		},
	}

	// we expect to have more command line flags in the future - sort them
	sort.Sort(cli.FlagsByName(cliApp.Flags))
	sort.Sort(cli.CommandsByName(cliApp.Commands))

	defer func() {
		if cfg.Debug.File != nil && cfg.Debug.File != os.Stderr && cfg.Debug.File != os.Stdout {
			_ = cfg.Debug.File.Close()
		}
	}()

	if err := cliApp.Run(os.Args); err != nil {
		debug.FatalLog.Print(err)
		return
	}

	exitCode = 0
}

// decodeAction prints the POST codes of a capture file.
func decodeAction(cfg *config.Config) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		applyInputFlags(ctx, cfg)
		if ctx.IsSet("bytecodes") {
			cfg.Protocol.ByteCodes = ctx.Bool("bytecodes")
		}

		printer := report.NewPrinter(os.Stdout)
		printer.Events = ctx.Bool("events")
		printer.Errors = ctx.Bool("errors")
		printer.Verbose = ctx.Bool("verbose")
		printer.BasePort = cfg.Protocol.MinPort

		s, err := session.New(cfg.Session(), printer)
		if err != nil {
			return err
		}

		if err = runCapture(ctx.Context, cfg, s, ctx.Args().First()); err != nil {
			return err
		}

		if ctx.Bool("stats") {
			st := s.Stats()
			fmt.Printf("frames=%d events=%d codes=%d framing=%d syncloss=%d invalidport=%d preamble=%d nearmiss=%d\n",
				st.Frames, st.Events, st.Codes, st.FramingErrors, st.SyncLosses, st.InvalidPorts, st.PreambleNoise, st.NearMisses)
		}

		return printer.Err()
	}
}

// fieldsAction prints the bit fields of every frame of a capture file.
func fieldsAction(cfg *config.Config) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		applyInputFlags(ctx, cfg)

		ranges, err := report.ParseArrange(ctx.String("arrange"))
		if err != nil {
			return err
		}

		binary := ctx.Bool("binary")
		reverse := ctx.Bool("reverse")
		dataBits := cfg.Protocol.DataBits
		w := bufio.NewWriter(os.Stdout)

		var werr error
		s, err := session.New(cfg.Session(), session.SinkFuncs{
			OnFrame: func(f siouart.Frame) {
				v := f.Word
				if reverse {
					v = report.ReverseBits(v, dataBits)
				}
				if _, err := fmt.Fprintln(w, report.Format(v, ranges, binary)); err != nil && werr == nil {
					werr = err
				}
			},
		})
		if err != nil {
			return err
		}

		if err = runCapture(ctx.Context, cfg, s, ctx.Args().First()); err != nil {
			return err
		}

		if err = w.Flush(); err != nil {
			return err
		}
		return werr
	}
}

// monitorAction runs the live monitor until it gets an interrupt signal.
func monitorAction(cfg *config.Config) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		a, err := app.New(cfg)
		defer func() {
			debug.InfoLog.Printf("closing app %s", app.Version())
			_ = a.Close()
		}()

		if err != nil {
			return err
		}

		debug.InfoLog.Printf("starting app %s", app.Version())
		if err = a.Run(); err != nil {
			return err
		}

		// capture exit signals to ensure resources are released on exit.
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		// wait for am os.Interrupt signal (CTRL C)
		sig := <-quit
		debug.InfoLog.Printf("Got %s signal. Aborting...", sig)
		return nil
	}
}

// applyInputFlags overrides the input section of the configuration file with the set command flags.
func applyInputFlags(ctx *cli.Context, cfg *config.Config) {
	if ctx.IsSet("format") {
		cfg.Input.Format = ctx.String("format")
	}
	if ctx.IsSet("channel") {
		cfg.Input.Channel = ctx.Int("channel")
	}
	if ctx.IsSet("invert") {
		cfg.Input.Invert = ctx.Bool("invert")
	}
}

// runCapture decodes the capture file name (stdin if empty) with the session.
// It stops between two frames on an interrupt signal.
func runCapture(ctx context.Context, cfg *config.Config, s *session.Session, name string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	format, err := capture.ParseFormat(cfg.Input.Format)
	if err != nil {
		return err
	}

	sc := cfg.Session()
	tail := time.Duration(sc.Sampler.MaxRun) * sc.Sampler.BitPeriod()

	if format == capture.SaleaeCapture || (format == capture.Auto && strings.EqualFold(filepath.Ext(name), ".sal")) {
		src, err := capture.ReadSaleaeCapture(name, cfg.Input.Channel, tail)
		if err != nil {
			return err
		}
		return s.RunSamples(ctx, src)
	}

	var r io.Reader = os.Stdin
	if name != "" && name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	br := bufio.NewReader(r)
	if format == capture.Auto {
		head, _ := br.Peek(512)
		format = capture.DetectFormat(name, head)
		debug.DebugLog.Printf("capture format of %q: %s", name, format)
	}

	switch format {
	case capture.Frames:
		return s.RunFrames(ctx, capture.NewFrameLogReader(br, cfg.Protocol.DataBits))
	case capture.CSV:
		return s.RunSamples(ctx, capture.NewTransitionReader(br, cfg.Input.Channel))
	case capture.Saleae:
		src, err := capture.ReadSaleaeDigital(br, tail)
		if err != nil {
			return err
		}
		return s.RunSamples(ctx, src)
	default:
		return fmt.Errorf("%w: %q", capture.ErrUnknownFormat, format)
	}
}
