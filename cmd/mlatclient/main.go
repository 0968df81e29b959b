package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/mlatclient/edgeclient/internal/app"
)

func main() {
	cmd := &cli.Command{
		Name:  "mlatclient",
		Usage: "Feed ADS-B/Mode S receiver data to a multilateration server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Category: "input",
				Name:     "input-type",
				Value:    "auto",
				Usage:    "receiver framing: auto, dump1090, beast, radarcape_12mhz, radarcape_gps, radarcape, sbs, avrmlat",
			},
			&cli.StringFlag{
				Category: "input",
				Name:     "input-connect",
				Usage:    "`HOST:PORT` of the local receiver",
			},
			&cli.Float64Flag{
				Category: "position",
				Name:     "lat",
				Usage:    "receiver latitude in decimal degrees",
			},
			&cli.Float64Flag{
				Category: "position",
				Name:     "lon",
				Usage:    "receiver longitude in decimal degrees",
			},
			&cli.Float64Flag{
				Category: "position",
				Name:     "alt",
				Usage:    "receiver altitude in meters",
			},
			&cli.StringFlag{
				Category: "server",
				Name:     "user",
				Usage:    "mlat server account username",
			},
			&cli.StringFlag{
				Category: "server",
				Name:     "server",
				Aliases:  []string{"s"},
				Usage:    "`HOST:PORT` of the mlat server",
			},
			&cli.BoolFlag{
				Category: "server",
				Name:     "no-udp",
				Usage:    "disable the UDP fast path for mlat/sync submissions",
			},
			&cli.BoolFlag{
				Category: "server",
				Name:     "privacy",
				Usage:    "ask the server to withhold this receiver's position from public results",
			},
			&cli.StringSliceFlag{
				Category: "output",
				Name:     "results",
				Usage:    "`PROTOCOL,connect|listen,ENDPOINT` result feed, repeatable (protocols: basestation, ext_basestation, beast)",
			},
			&cli.BoolFlag{
				Category: "output",
				Name:     "no-anon-results",
				Usage:    "drop anonymized (MLAT-tagged) positions from result feeds",
			},
			&cli.BoolFlag{
				Category: "output",
				Name:     "no-modeac-results",
				Usage:    "drop Mode A/C results from result feeds",
			},
			&cli.StringFlag{
				Category: "output",
				Name:     "status-addr",
				Usage:    "`ADDRESS` for the optional /status and /metrics admin endpoint (disabled if empty)",
			},
			&cli.StringFlag{
				Category: "storage",
				Name:     "uuid-file",
				Value:    "/boot/adsbx-uuid",
				Usage:    "legacy one-line UUID file to include in the handshake, if present",
			},
			&cli.StringFlag{
				Category: "storage",
				Name:     "state-db",
				Value:    "./data/mlatclient.buntdb",
				Usage:    "path to the BuntDB cache file (will be created if missing)",
			},
			&cli.StringFlag{
				Category: "monitoring",
				Name:     "tracing-endpoint",
				Aliases:  []string{"tracing", "t"},
				Usage:    "OpenTelemetry collector `ENDPOINT` for traces (spans stay local if empty)",
			},
			&cli.BoolFlag{
				Category: "monitoring",
				Name:     "debug",
				Aliases:  []string{"d"},
				Usage:    "enable debug logging",
			},
		},
		Action: app.Run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
