package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/womat/debug"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	name := filepath.Join(t.TempDir(), "siodbg.yaml")
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return name
}

func TestNewConfig(t *testing.T) {
	c := NewConfig()
	s := c.Session()

	if s.Sampler.BaudRate != 1_500_000 || s.Sampler.Tolerance != 0.3 || s.Sampler.MaxRun != 28 {
		t.Errorf("sampler = %+v", s.Sampler)
	}
	if s.Frame.DataBits != 26 || s.Frame.StopBits != 1 {
		t.Errorf("frame = %+v", s.Frame)
	}
	if s.MinPort != 0x80 || s.MaxPort != 0x83 {
		t.Errorf("ports = 0x%02X-0x%02X", s.MinPort, s.MaxPort)
	}
	if s.PostCode.BasePort != 0x80 || s.PostCode.MSBPort != 0x83 || s.PostCode.CodeWidth != 32 || s.PostCode.ByteCodes {
		t.Errorf("post code = %+v", s.PostCode)
	}
}

func TestLoadConfig(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = writeConfig(t, `
protocol:
  baudrate: 1000000
  tolerance: 0.25
  bytecodes: true
input:
  format: csv
  channel: 2
  invert: true
serial:
  device: /dev/ttyUSB1
  baud: 921600
  readtimeout: 500
mqtt:
  connection: tcp://localhost:1883
  topic: /test/postcode
webserver:
  url: http://127.0.0.1:8080
  webservices:
    version: true
    events: false
debug:
  file: stdout
  flag: debug
`)

	if err := c.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	s := c.Session()
	if s.Sampler.BaudRate != 1_000_000 || s.Sampler.Tolerance != 0.25 || !s.Sampler.Invert {
		t.Errorf("sampler = %+v", s.Sampler)
	}
	// values not in the file keep their defaults
	if s.Frame.DataBits != 26 || s.MaxPort != 0x83 {
		t.Errorf("frame = %+v, max port = 0x%02X", s.Frame, s.MaxPort)
	}
	if !s.PostCode.ByteCodes {
		t.Error("byte codes aren't enabled")
	}

	if c.Input.Format != "csv" || c.Input.Channel != 2 {
		t.Errorf("input = %+v", c.Input)
	}
	if c.Serial.Device != "/dev/ttyUSB1" || c.Serial.Baud != 921600 || c.Serial.ReadTimeout != 500*time.Millisecond {
		t.Errorf("serial = %+v", c.Serial)
	}
	if c.MQTT.Connection != "tcp://localhost:1883" || c.MQTT.Topic != "/test/postcode" {
		t.Errorf("mqtt = %+v", c.MQTT)
	}
	if c.Webserver.URL != "http://127.0.0.1:8080" || !c.Webserver.Webservices["version"] || c.Webserver.Webservices["events"] {
		t.Errorf("webserver = %+v", c.Webserver)
	}
	if c.Debug.File != os.Stdout || c.Debug.Flag&debug.Debug == 0 {
		t.Errorf("debug = %+v", c.Debug)
	}
}

func TestLoadConfigFlags(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = writeConfig(t, "debug:\n  flag: standard\n")
	c.Flag.Debug = "trace"

	if err := c.LoadConfig(); err != nil {
		t.Fatal(err)
	}
	if c.Debug.Flag != debug.Full {
		t.Errorf("debug flag = %v, want the command line level", c.Debug.Flag)
	}
}

func TestLoadConfigWithoutFile(t *testing.T) {
	c := NewConfig()
	if err := c.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if c.Debug.File != os.Stderr || c.Debug.Flag != debug.Standard {
		t.Errorf("debug = %+v", c.Debug)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid yaml", content: "protocol: [1, 2"},
		{name: "invalid log level", content: "debug:\n  flag: verbose\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfig()
			c.Flag.ConfigFile = writeConfig(t, tt.content)
			if err := c.LoadConfig(); err == nil {
				t.Error("LoadConfig() error = nil")
			}
		})
	}

	c := NewConfig()
	c.Flag.ConfigFile = filepath.Join(t.TempDir(), "missing.yaml")
	if c.FileExists() {
		t.Error("FileExists() = true for a missing file")
	}
	if err := c.LoadConfig(); err == nil {
		t.Error("LoadConfig() of a missing file error = nil")
	}
}
