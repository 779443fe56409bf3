package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"
	"siodbg/pkg/gpio"
	"siodbg/pkg/portio"
	"siodbg/pkg/postcode"
	"siodbg/pkg/sampler"
	"siodbg/pkg/session"
	"siodbg/pkg/siouart"
)

// Config holds the application configuration.
// Config defines the struct of global config and the struct of the configuration file
type Config struct {
	Flag      FlagConfig      `yaml:"-"`
	Protocol  ProtocolConfig  `yaml:"protocol"`
	Input     InputConfig     `yaml:"input"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Serial    SerialConfig    `yaml:"serial"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Debug     DebugConfig     `yaml:"debug"`
	Webserver WebserverConfig `yaml:"webserver"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	Debug      string
	ConfigFile string
}

// ProtocolConfig defines the parameters of the SIO debug protocol.
// They are fixed by the protocol, but a variant may need other values.
type ProtocolConfig struct {
	BaudRate  float64 `yaml:"baudrate"`
	Tolerance float64 `yaml:"tolerance"`
	DataBits  int     `yaml:"databits"`
	StopBits  int     `yaml:"stopbits"`
	MinPort   uint8   `yaml:"minport"`
	MaxPort   uint8   `yaml:"maxport"`
	MSBPort   uint8   `yaml:"msbport"`
	LaneWidth int     `yaml:"lanewidth"`
	CodeWidth int     `yaml:"codewidth"`
	ByteCodes bool    `yaml:"bytecodes"`
}

// InputConfig defines how capture files are read.
type InputConfig struct {
	Format  string `yaml:"format"`
	Channel int    `yaml:"channel"`
	Invert  bool   `yaml:"invert"`
}

// MonitorConfig defines the input of the live monitor.
type MonitorConfig struct {
	// Source is "serial" (a probe sending framed words) or "gpio" (the raw line).
	Source string `yaml:"source"`
}

// GPIOConfig defines the GPIO line of the raw debug line.
type GPIOConfig struct {
	Chip    string `yaml:"chip"`
	Offset  int    `yaml:"offset"`
	Bias    string `yaml:"bias"`
	Buffer  int    `yaml:"buffer"`
	IdleInt int    `yaml:"idle"`
}

// SerialConfig defines the serial port of the probe.
type SerialConfig struct {
	Device         string        `yaml:"device"`
	Baud           int           `yaml:"baud"`
	ReadTimeoutInt int           `yaml:"readtimeout"`
	ReadTimeout    time.Duration `yaml:"-"`
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
	History     int             `yaml:"history"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection string `yaml:"connection"`
	Topic      string `yaml:"topic"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

func NewConfig() *Config {
	return &Config{
		Flag: FlagConfig{},
		Protocol: ProtocolConfig{
			BaudRate:  sampler.DefaultBaudRate,
			Tolerance: sampler.DefaultTolerance,
			DataBits:  siouart.DefaultDataBits,
			StopBits:  siouart.DefaultStopBits,
			MinPort:   portio.DefaultMinPort,
			MaxPort:   portio.DefaultMaxPort,
			MSBPort:   postcode.DefaultMSBPort,
			LaneWidth: postcode.DefaultLaneWidth,
			CodeWidth: postcode.DefaultCodeWidth,
		},
		Input: InputConfig{
			Format: "auto",
		},
		Monitor: MonitorConfig{
			Source: "serial",
		},
		Serial: SerialConfig{
			Device: "/dev/ttyACM0",
			Baud:   115200,
		},
		GPIO: GPIOConfig{
			Chip:    "gpiochip0",
			Offset:  17,
			Bias:    "pullup",
			Buffer:  4096,
			IdleInt: 10,
		},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4080",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"codes":   true,
				"events":  true,
				"stats":   true,
			},
			History: 256,
		},
		MQTT: MQTTConfig{
			Topic: "/siodbg/postcode",
		},
	}
}

// LoadConfig reads the configuration file (if defined) and applies the command line flags.
func (c *Config) LoadConfig() error {
	if c.Flag.ConfigFile != "" {
		if err := c.readConfigFile(); err != nil {
			return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
		}
	}

	if c.Flag.Debug != "" {
		c.Debug.FlagString = c.Flag.Debug
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	c.Serial.ReadTimeout = time.Duration(c.Serial.ReadTimeoutInt) * time.Millisecond

	switch c.Monitor.Source {
	case "serial", "gpio":
	default:
		return fmt.Errorf("invalid monitor source %q", c.Monitor.Source)
	}
	return nil
}

// Session returns the protocol parameters of a decoding session.
func (c *Config) Session() session.Config {
	p := c.Protocol
	return session.Config{
		Sampler: sampler.Config{
			BaudRate:  p.BaudRate,
			Tolerance: p.Tolerance,
			MaxRun:    1 + p.DataBits + p.StopBits,
			Invert:    c.Input.Invert,
		},
		Frame: siouart.Config{
			DataBits: p.DataBits,
			StopBits: p.StopBits,
		},
		MinPort: p.MinPort,
		MaxPort: p.MaxPort,
		PostCode: postcode.Config{
			BasePort:  p.MinPort,
			MSBPort:   p.MSBPort,
			LaneWidth: p.LaneWidth,
			CodeWidth: p.CodeWidth,
			ByteCodes: p.ByteCodes,
		},
	}
}

// GPIOLine returns the configuration of the watched GPIO line.
func (c *Config) GPIOLine() gpio.Config {
	return gpio.Config{
		Chip:   c.GPIO.Chip,
		Offset: c.GPIO.Offset,
		Bias:   c.GPIO.Bias,
		Buffer: c.GPIO.Buffer,
		Idle:   time.Duration(c.GPIO.IdleInt) * time.Millisecond,
	}
}

// FileExists reports whether the configuration file exists.
func (c *Config) FileExists() bool {
	_, err := os.Stat(c.Flag.ConfigFile)
	return !errors.Is(err, os.ErrNotExist)
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		return err
	}

	return nil
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Debug.Flag = debug.Standard
	default:
		return fmt.Errorf("invalid log level %q", c.Debug.FlagString)
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = os.Stderr
	case "stdout":
		c.Debug.File = os.Stdout
	default:
		if c.Debug.File, err = os.OpenFile(c.Debug.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}
