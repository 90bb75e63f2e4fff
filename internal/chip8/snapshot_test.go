package chip8

import (
	"bytes"
	"errors"
	"testing"
)

func TestSaveStateSize(t *testing.T) {
	st := &SaveState{}
	data, err := st.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(data) != SaveStateSize {
		t.Fatalf("len = %d, want %d", len(data), SaveStateSize)
	}

	if err := st.UnmarshalBinary(data[:SaveStateSize-1]); err == nil {
		t.Error("UnmarshalBinary accepted a truncated snapshot")
	}
	if err := st.UnmarshalBinary(append(data, 0)); err == nil {
		t.Error("UnmarshalBinary accepted an oversized snapshot")
	}
}

func TestSnapshotCodecRoundTrip(t *testing.T) {
	m, _ := newTestMachine()
	load(t, m, 0xA050, 0x6ABC, 0xF115, 0x7001, 0x1206)
	if err := runCycles(t, m, 37); err != nil {
		t.Fatalf("Run: %v", err)
	}

	st := m.Capture()
	data, err := st.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	var decoded SaveState
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if decoded != *st {
		t.Error("decoded snapshot differs from the original")
	}

	reencoded, err := decoded.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if !bytes.Equal(data, reencoded) {
		t.Error("re-encoded snapshot bytes differ")
	}
}

func TestRestoreIsIdempotent(t *testing.T) {
	m, _ := newTestMachine()
	load(t, m, 0x6A55, 0x7001, 0x1202)
	if err := runCycles(t, m, 11); err != nil {
		t.Fatalf("Run: %v", err)
	}

	before := m.Capture()
	m.Restore(before)
	after := m.Capture()

	if !snapshotsEqual(t, before, after) {
		t.Error("restore(capture()) changed machine state")
	}
}

func TestRestoreHostilePC(t *testing.T) {
	// Restore accepts whatever a .state8 file carried; a program
	// counter at the top of the uint16 range must surface as a fault
	// on the next cycle, not wrap past the bound check and panic.
	m, _ := newTestMachine()
	load(t, m, 0x1200)

	st := m.Capture()
	st.PC = 0xFFFF
	m.Restore(st)

	err := runCycles(t, m, 1)
	var fault *Fault
	if !errors.As(err, &fault) || fault.Code != FaultPCOutOfRange {
		t.Fatalf("expected pc-out-of-range fault, got %v", err)
	}
}

func TestCaptureReplayDeterminism(t *testing.T) {
	// A deterministic workout: arithmetic, memory traffic, timers and
	// a draw, but no CXNN.
	words := []uint16{
		0x6005, // mov v0, 5
		0x6103, // mov v1, 3
		0xA300, // mvi 0x300
		0x8014, // add v0, v1
		0xF033, // bcd v0
		0xF115, // sdelay v1
		0xA050, // mvi 0x050
		0xD881, // sprite v8, v8, 1
		0x7801, // add v8, 1
		0x1204, // jmp 0x204
	}

	const n = 500

	m1, _ := newTestMachine()
	load(t, m1, words...)
	if err := runCycles(t, m1, n); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Snapshot, hand off to a fresh machine, and let both sides run
	// the same additional cycles.
	data, err := m1.Capture().MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	var st SaveState
	if err := st.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	m2, _ := newTestMachine()
	m2.Restore(&st)

	if err := runCycles(t, m1, n); err != nil {
		t.Fatalf("Run m1: %v", err)
	}
	if err := runCycles(t, m2, n); err != nil {
		t.Fatalf("Run m2: %v", err)
	}

	if !snapshotsEqual(t, m1.Capture(), m2.Capture()) {
		t.Error("replayed machine diverged from the uninterrupted one")
	}
}
