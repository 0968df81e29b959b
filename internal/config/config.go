// Package config validates the CLI-supplied configuration once at startup,
// before the event loop starts, the same "configure once, validate on
// first use" shape the teacher uses for its proxy and JWT setup.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrFatalConfig wraps a configuration problem that must abort startup
// before the main loop runs.
type ErrFatalConfig struct {
	Field  string
	Reason string
}

func (e *ErrFatalConfig) Error() string {
	return fmt.Sprintf("fatal configuration: %s: %s", e.Field, e.Reason)
}

// InputType enumerates the receiver connection kinds the CLI accepts.
type InputType string

const (
	InputAuto           InputType = "auto"
	InputDump1090       InputType = "dump1090"
	InputBeast          InputType = "beast"
	InputRadarcape12MHz InputType = "radarcape_12mhz"
	InputRadarcapeGPS   InputType = "radarcape_gps"
	InputRadarcape      InputType = "radarcape"
	InputSBS            InputType = "sbs"
	InputAVRMLAT        InputType = "avrmlat"
)

var validInputTypes = map[InputType]bool{
	InputAuto: true, InputDump1090: true, InputBeast: true,
	InputRadarcape12MHz: true, InputRadarcapeGPS: true, InputRadarcape: true,
	InputSBS: true, InputAVRMLAT: true,
}

// OutputProtocol enumerates the result-publishing protocols --results
// accepts.
type OutputProtocol string

const (
	ProtocolBasestation    OutputProtocol = "basestation"
	ProtocolExtBasestation OutputProtocol = "ext_basestation"
	ProtocolBeast          OutputProtocol = "beast"
)

// OutputSpec is one parsed --results entry: protocol,connect|listen,endpoint.
type OutputSpec struct {
	Protocol OutputProtocol
	Listen   bool // true for "listen", false for "connect"
	Endpoint string
}

// Config is the fully validated startup configuration.
type Config struct {
	InputType    InputType
	InputConnect string

	Lat, Lon, Alt float64

	User         string
	ServerAddr   string
	NoUDP        bool
	Privacy      bool
	UUIDFilePath string

	Outputs         []OutputSpec
	NoAnonResults   bool
	NoModeACResults bool

	Debug bool
}

// ParseOutputSpec parses one --results flag value of the form
// "protocol,connect|listen,endpoint".
func ParseOutputSpec(raw string) (OutputSpec, error) {
	parts := strings.SplitN(raw, ",", 3)
	if len(parts) != 3 {
		return OutputSpec{}, &ErrFatalConfig{Field: "results", Reason: fmt.Sprintf("expected protocol,connect|listen,endpoint, got %q", raw)}
	}
	proto := OutputProtocol(parts[0])
	switch proto {
	case ProtocolBasestation, ProtocolExtBasestation, ProtocolBeast:
	default:
		return OutputSpec{}, &ErrFatalConfig{Field: "results", Reason: fmt.Sprintf("unknown protocol %q", parts[0])}
	}

	var listen bool
	switch parts[1] {
	case "listen":
		listen = true
	case "connect":
		listen = false
	default:
		return OutputSpec{}, &ErrFatalConfig{Field: "results", Reason: fmt.Sprintf("expected connect or listen, got %q", parts[1])}
	}

	return OutputSpec{Protocol: proto, Listen: listen, Endpoint: parts[2]}, nil
}

// Validate checks range and enum constraints on c, returning the first
// *ErrFatalConfig it finds.
func (c *Config) Validate() error {
	if !validInputTypes[c.InputType] {
		return &ErrFatalConfig{Field: "input-type", Reason: fmt.Sprintf("unknown input type %q", c.InputType)}
	}
	if c.InputType != InputAuto && c.InputConnect == "" {
		return &ErrFatalConfig{Field: "input-connect", Reason: "required unless input-type is auto"}
	}
	if c.Lat < -90 || c.Lat > 90 {
		return &ErrFatalConfig{Field: "lat", Reason: fmt.Sprintf("%v out of range [-90,90]", c.Lat)}
	}
	if c.Lon < -180 || c.Lon > 360 {
		return &ErrFatalConfig{Field: "lon", Reason: fmt.Sprintf("%v out of range [-180,360]", c.Lon)}
	}
	if c.Alt < -420 || c.Alt > 5100 {
		return &ErrFatalConfig{Field: "alt", Reason: fmt.Sprintf("%v out of range [-420,5100] meters", c.Alt)}
	}
	if c.ServerAddr == "" {
		return &ErrFatalConfig{Field: "server", Reason: "required"}
	}
	if _, _, err := splitHostPort(c.ServerAddr); err != nil {
		return &ErrFatalConfig{Field: "server", Reason: err.Error()}
	}
	for _, o := range c.Outputs {
		if o.Endpoint == "" {
			return &ErrFatalConfig{Field: "results", Reason: "endpoint must not be empty"}
		}
	}
	return nil
}

func splitHostPort(hostport string) (host, port string, err error) {
	idx := strings.LastIndex(hostport, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("expected host:port, got %q", hostport)
	}
	host, port = hostport[:idx], hostport[idx+1:]
	if host == "" {
		return "", "", fmt.Errorf("missing host in %q", hostport)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", "", fmt.Errorf("invalid port in %q", hostport)
	}
	return host, port, nil
}
