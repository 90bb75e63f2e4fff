package chip8

import (
	"testing"
	"time"
)

// testShell implements every collaborator interface and records what the
// machine reported.
type testShell struct {
	keys    [KeyCount]bool
	redraws int
	toneOn  bool
	crashes []string
}

func (s *testShell) IsPressed(key uint8) bool { return s.keys[key] }
func (s *testShell) ScreenChanged()           { s.redraws++ }
func (s *testShell) StartTone()               { s.toneOn = true }
func (s *testShell) StopTone()                { s.toneOn = false }
func (s *testShell) Crashed(msg string)       { s.crashes = append(s.crashes, msg) }

func newTestMachine() (*Machine, *testShell) {
	shell := &testShell{}
	return New(shell, shell, shell, shell), shell
}

// rom packs instruction words into a big-endian byte slice.
func rom(words ...uint16) []byte {
	bs := make([]byte, 0, len(words)*2)
	for _, w := range words {
		bs = append(bs, uint8(w>>8), uint8(w))
	}
	return bs
}

func load(t *testing.T, m *Machine, words ...uint16) {
	t.Helper()
	if err := m.LoadProgram(rom(words...)); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
}

// runCycles drives the machine for exactly n cycles at its configured
// frequency by supplying the matching synthetic elapsed time.
func runCycles(t *testing.T, m *Machine, n int) error {
	t.Helper()
	period := time.Second / time.Duration(m.Frequency())
	return m.Run(time.Duration(n) * period)
}
