package decoder

import (
	"bytes"
	"errors"
	"testing"
)

func TestDetectNoMatch(t *testing.T) {
	buf := make([]byte, 512)
	_, _, err := Detect(buf)
	if !errors.Is(err, ErrNoFraming) {
		t.Fatalf("expected ErrNoFraming, got %v", err)
	}
}

func TestDetectAVRMLAT(t *testing.T) {
	buf := []byte(";\n@ABCDEF1234567890;\n")
	mode, offset, err := Detect(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mode != AVRMLAT {
		t.Fatalf("expected AVRMLAT, got %v", mode)
	}
	if offset != 2 {
		t.Fatalf("expected offset 2, got %d", offset)
	}
}

func TestDetectBeast(t *testing.T) {
	buf := append([]byte{0x00, 0x00}, 0x1A, '2')
	buf = append(buf, make([]byte, 20)...)
	mode, offset, err := Detect(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mode != Beast {
		t.Fatalf("expected Beast, got %v", mode)
	}
	if offset != 2 {
		t.Fatalf("expected offset 2, got %d", offset)
	}
}

func TestDetectSBS(t *testing.T) {
	buf := []byte{0x00, 0x10, 0x02, 0x00}
	mode, offset, err := Detect(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mode != SBS {
		t.Fatalf("expected SBS, got %v", mode)
	}
	if offset != 1 {
		t.Fatalf("expected offset 1, got %d", offset)
	}
}

func TestDetectAVRUnusable(t *testing.T) {
	buf := []byte(";\n*ABCDEF;\n")
	_, _, err := Detect(buf)
	if !errors.Is(err, ErrUnusableFraming) {
		t.Fatalf("expected ErrUnusableFraming, got %v", err)
	}
}

func TestModeString(t *testing.T) {
	if Beast.String() != "beast" || AVRMLAT.String() != "avrmlat" {
		t.Fatalf("unexpected Mode.String() output")
	}
	if bytes.Equal([]byte(Beast.String()), []byte(SBS.String())) {
		t.Fatalf("distinct modes should stringify differently")
	}
}
