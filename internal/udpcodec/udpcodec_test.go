package udpcodec

import "testing"

func frame(n int) []byte {
	f := make([]byte, n)
	for i := range f {
		f[i] = byte(i)
	}
	return f
}

func TestMlatShortDeltaRoundTrip(t *testing.T) {
	var sent [][]byte
	b := New(0x1234, 1_000_000, func(d []byte) { sent = append(sent, append([]byte(nil), d...)) })

	b.MlatShort(1_000_100, frame(7))
	b.Flush()

	if len(sent) != 1 {
		t.Fatalf("expected one flushed datagram, got %d", len(sent))
	}
	d := sent[0]
	if len(d) != headerSize+1+4+7 {
		t.Fatalf("unexpected datagram length %d", len(d))
	}
	if d[14] != typeMlatShort {
		t.Fatalf("expected MLAT_SHORT tag, got %d", d[14])
	}
}

func TestRebaseOnDeltaOverflow(t *testing.T) {
	var sent [][]byte
	b := New(1, 1_000_000, func(d []byte) { sent = append(sent, append([]byte(nil), d...)) })

	b.MlatLong(uint64(1_000_000+int64Abs(maxDelta)+100), frame(14))
	b.Flush()

	if len(sent) != 1 {
		t.Fatal("expected one datagram")
	}
	d := sent[0]
	if d[headerSize] != typeRebase {
		t.Fatalf("expected REBASE as first submessage, got tag %d", d[headerSize])
	}
}

func TestSyncFallsBackToAbsSync(t *testing.T) {
	var sent [][]byte
	b := New(1, 0, func(d []byte) { sent = append(sent, append([]byte(nil), d...)) })

	b.Sync(0, absSyncThreshold+1000, frame(14), frame(14))
	b.Flush()

	if len(sent) != 1 {
		t.Fatal("expected one datagram")
	}
	if sent[0][headerSize] != typeAbsSync {
		t.Fatalf("expected ABS_SYNC tag, got %d", sent[0][headerSize])
	}
}

func TestFlushOnMTUOverflow(t *testing.T) {
	var sent [][]byte
	b := New(1, 0, func(d []byte) { sent = append(sent, append([]byte(nil), d...)) })

	for i := 0; i < 200; i++ {
		b.MlatLong(uint64(i), frame(14))
	}
	b.Flush()

	if len(sent) < 2 {
		t.Fatalf("expected multiple datagrams due to MTU flushing, got %d", len(sent))
	}
	for _, d := range sent {
		if len(d) > mtu+1+4+14 {
			t.Errorf("datagram exceeds MTU budget: %d bytes", len(d))
		}
	}
}

func int64Abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
