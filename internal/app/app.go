// Package app wires the CLI-parsed configuration into the running client:
// the coordinator, the server and receiver links, the output publishers,
// and the event loop that drives them, the same assembly job the teacher's
// app.Run does for its HTTP server and backend workers.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/mlatclient/edgeclient/internal/clock"
	"github.com/mlatclient/edgeclient/internal/config"
	"github.com/mlatclient/edgeclient/internal/coordinator"
	"github.com/mlatclient/edgeclient/internal/decoder"
	"github.com/mlatclient/edgeclient/internal/eventloop"
	"github.com/mlatclient/edgeclient/internal/logging"
	"github.com/mlatclient/edgeclient/internal/outputs"
	"github.com/mlatclient/edgeclient/internal/receiverlink"
	"github.com/mlatclient/edgeclient/internal/serverlink"
	"github.com/mlatclient/edgeclient/internal/stats"
	"github.com/mlatclient/edgeclient/internal/telemetry"
	"github.com/mlatclient/edgeclient/internal/uuidstore"
)

// autoDetectMode is the placeholder decoder.Mode passed to receiverlink.New
// alongside autoDetect=true; the link ignores mode when auto-detecting.
const autoDetectMode = decoder.Mode(-1)

func decoderModeFor(it config.InputType) (mode decoder.Mode, autoDetect bool) {
	switch it {
	case config.InputDump1090, config.InputBeast, config.InputRadarcape12MHz:
		return decoder.Beast, false
	case config.InputRadarcapeGPS, config.InputRadarcape:
		return decoder.Radarcape, false
	case config.InputSBS:
		return decoder.SBS, false
	case config.InputAVRMLAT:
		return decoder.AVRMLAT, false
	default:
		return autoDetectMode, true
	}
}

func buildConfig(c *cli.Command) (*config.Config, error) {
	cfg := &config.Config{
		InputType:       config.InputType(c.String("input-type")),
		InputConnect:    c.String("input-connect"),
		Lat:             c.Float64("lat"),
		Lon:             c.Float64("lon"),
		Alt:             c.Float64("alt"),
		User:            c.String("user"),
		ServerAddr:      c.String("server"),
		NoUDP:           c.Bool("no-udp"),
		Privacy:         c.Bool("privacy"),
		UUIDFilePath:    c.String("uuid-file"),
		NoAnonResults:   c.Bool("no-anon-results"),
		NoModeACResults: c.Bool("no-modeac-results"),
		Debug:           c.Bool("debug"),
	}

	for _, raw := range c.StringSlice("results") {
		spec, err := config.ParseOutputSpec(raw)
		if err != nil {
			return nil, err
		}
		cfg.Outputs = append(cfg.Outputs, spec)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Run assembles and drives one mlat-client session until ctx is cancelled
// or a fatal error occurs. It is the urfave/cli/v3 action for the
// mlatclient command.
func Run(ctx context.Context, c *cli.Command) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}
	logging.SetDebug(cfg.Debug)

	shutdownTracing := telemetry.Init(c.String("tracing-endpoint"), "mlatclient")
	defer shutdownTracing()

	store, err := uuidstore.Open(c.String("state-db"), cfg.UUIDFilePath)
	if err != nil {
		return fmt.Errorf("app: opening uuid store: %w", err)
	}
	defer store.Close()

	uuid, err := store.UUID()
	if err != nil {
		logging.Warnf("app: no persistent uuid available, proceeding without one: %v", err)
	}

	st := stats.New(prometheus.DefaultRegisterer)

	pub, err := outputs.New(cfg.Outputs, clock.Now)
	if err != nil {
		return fmt.Errorf("app: building output publishers: %w", err)
	}
	defer pub.Close()

	// coordinator.New requires both links up front, but serverlink.New and
	// receiverlink.New each require a reference back to the coordinator.
	// Build the coordinator with placeholders and wire the real links in
	// with SetServer/SetReceiver once they exist.
	coord := coordinator.New(nil, nil, clock.Now)
	coord.SetOutputs(pub)

	server := serverlink.New(cfg.ServerAddr, cfg.User, cfg.Lat, cfg.Lon, cfg.Alt,
		cfg.Privacy, !cfg.NoUDP, uuid, coord, st, clock.Now)
	coord.SetServer(server)

	mode, autoDetect := decoderModeFor(cfg.InputType)
	newDecoder := func(m decoder.Mode) decoder.Decoder { return decoder.New(m, clock.Now) }
	receiver := receiverlink.New(cfg.InputConnect, mode, autoDetect, coord, clock.Now, newDecoder)
	coord.SetReceiver(receiver)

	loop := eventloop.New(
		receiver,
		tracedServer{server},
		tracedCoordinator{coord},
		pub,
		clock.Now,
		func() { st.LogAndReset() },
	)

	statusAddr := c.String("status-addr")
	var statusSrv *outputs.StatusServer
	if statusAddr != "" {
		statusSrv = outputs.NewStatusServer(statusAddr, coord)
		go func() {
			if err := statusSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Errorf("app: status server: %v", err)
			}
		}()
		defer statusSrv.Close()
	}

	return loop.Run(ctx)
}

// tracedServer wraps the server link's Connect call in an OpenTelemetry
// handshake span.
type tracedServer struct{ inner eventloop.Server }

func (t tracedServer) Connect() error {
	_, span := telemetry.StartHandshake(context.Background())
	defer span.End()
	if err := t.inner.Connect(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (t tracedServer) Heartbeat(now float64)    { t.inner.Heartbeat(now) }
func (t tracedServer) Disconnect(reason string) { t.inner.Disconnect(reason) }

// tracedCoordinator wraps the periodic aircraft sweep in an OpenTelemetry
// span.
type tracedCoordinator struct{ inner eventloop.Coordinator }

func (t tracedCoordinator) UpdateAircraft() {
	_, span := telemetry.StartSweep(context.Background())
	defer span.End()
	t.inner.UpdateAircraft()
}

func (t tracedCoordinator) UpdateReceiverFilter()  { t.inner.UpdateReceiverFilter() }
func (t tracedCoordinator) SendAircraftReport()    { t.inner.SendAircraftReport() }
func (t tracedCoordinator) SendRateReport()        { t.inner.SendRateReport() }
func (t tracedCoordinator) PeriodicStats(f func()) { t.inner.PeriodicStats(f) }
