package config

import "testing"

func validConfig() Config {
	return Config{
		InputType:    InputAuto,
		Lat:          51.5,
		Lon:          -0.12,
		Alt:          25,
		ServerAddr:   "mlat.example.test:31090",
		InputConnect: "",
	}
}

func TestValidateAccepts(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"lat too high", func(c *Config) { c.Lat = 91 }},
		{"lat too low", func(c *Config) { c.Lat = -91 }},
		{"lon too high", func(c *Config) { c.Lon = 361 }},
		{"lon too low", func(c *Config) { c.Lon = -181 }},
		{"alt too high", func(c *Config) { c.Alt = 5101 }},
		{"alt too low", func(c *Config) { c.Alt = -421 }},
		{"unknown input type", func(c *Config) { c.InputType = "bogus" }},
		{"missing server", func(c *Config) { c.ServerAddr = "" }},
		{"malformed server", func(c *Config) { c.ServerAddr = "no-port-here" }},
		{"non-auto missing connect", func(c *Config) { c.InputType = InputBeast; c.InputConnect = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestParseOutputSpec(t *testing.T) {
	spec, err := ParseOutputSpec("beast,listen,:30005")
	if err != nil {
		t.Fatal(err)
	}
	if spec.Protocol != ProtocolBeast || !spec.Listen || spec.Endpoint != ":30005" {
		t.Fatalf("unexpected spec: %+v", spec)
	}

	if _, err := ParseOutputSpec("bogus,listen,:30005"); err == nil {
		t.Fatal("expected error for unknown protocol")
	}
	if _, err := ParseOutputSpec("beast,sideways,:30005"); err == nil {
		t.Fatal("expected error for unknown connect/listen mode")
	}
	if _, err := ParseOutputSpec("beast,listen"); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}
