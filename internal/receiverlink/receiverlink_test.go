package receiverlink

import (
	"bufio"
	"net"
	"testing"

	"github.com/mlatclient/edgeclient/internal/decoder"
	"github.com/mlatclient/edgeclient/internal/modes"
)

type fakeCoordinator struct {
	connected    int
	disconnected int
	batches      [][]modes.Message
}

func (f *fakeCoordinator) InputReceivedMessages(msgs []modes.Message) { f.batches = append(f.batches, msgs) }
func (f *fakeCoordinator) InputConnected()                            { f.connected++ }
func (f *fakeCoordinator) InputDisconnected()                         { f.disconnected++ }

type stubDecoder struct {
	mode decoder.Mode
}

func (s *stubDecoder) Mode() decoder.Mode      { return s.mode }
func (s *stubDecoder) Frequency() uint64       { return 12_000_000 }
func (s *stubDecoder) Epoch() string           { return "" }
func (s *stubDecoder) Feed(in []byte) (int, []modes.Message, error) {
	if len(in) == 0 {
		return 0, nil, nil
	}
	return len(in), nil, nil
}
func (s *stubDecoder) RecentAircraft() map[uint32]struct{}        { return nil }
func (s *stubDecoder) UpdateFilter(map[uint32]struct{})           {}
func (s *stubDecoder) UpdateModeACFilter(map[uint16]struct{})     {}
func (s *stubDecoder) ReceivedMessages() uint64                   { return 0 }
func (s *stubDecoder) SuppressedMessages() uint64                 { return 0 }
func (s *stubDecoder) MlatMessages() uint64                       { return 0 }

func newTestLink(coord Coordinator) (*Link, *float64) {
	now := 0.0
	l := New("127.0.0.1:0", decoder.Beast, false, coord, func() float64 { return now }, func(m decoder.Mode) decoder.Decoder {
		return &stubDecoder{mode: m}
	})
	return l, &now
}

func TestDisconnectIdempotent(t *testing.T) {
	coord := &fakeCoordinator{}
	l, _ := newTestLink(coord)
	server, client := net.Pipe()
	defer server.Close()
	l.conn = client
	l.w = nil

	l.Disconnect("test")
	l.Disconnect("test again")

	if coord.disconnected != 1 {
		t.Fatalf("InputDisconnected called %d times, want 1", coord.disconnected)
	}
}

func TestHeartbeatInactivityTimeout(t *testing.T) {
	coord := &fakeCoordinator{}
	l, now := newTestLink(coord)
	_, client := net.Pipe()
	l.conn = client
	l.lastDataReceived = 0

	*now = 10
	l.Heartbeat(*now)
	if coord.disconnected != 0 {
		t.Fatal("should not disconnect before the inactivity timeout elapses")
	}

	*now = 200
	l.Heartbeat(*now)
	if coord.disconnected != 1 {
		t.Fatalf("expected disconnect after inactivity timeout, got %d calls", coord.disconnected)
	}
}

func TestModeACFilterEmitsSettingsOnTransition(t *testing.T) {
	coord := &fakeCoordinator{}
	l, _ := newTestLink(coord)
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	l.conn = client
	l.dec = &stubDecoder{mode: decoder.Beast}

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		done <- buf[:n]
	}()

	// wire a writer against the pipe so UpdateModeACFilter has something
	// to flush into.
	l.w = bufio.NewWriter(client)

	l.UpdateModeACFilter(map[uint16]struct{}{0x1234: {}})

	got := <-done
	if len(got) == 0 {
		t.Fatal("expected receiver reconfiguration bytes to be written")
	}
}
