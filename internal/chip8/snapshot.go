package chip8

import (
	"encoding/binary"
	"fmt"
	"time"
)

// SaveStateSize is the exact length of a serialized SaveState:
// 16 registers, pc, sp, index, both timers, five flag bytes, the two
// 8-byte time accumulators, 4096 memory bytes and the 32x8 screen.
const SaveStateSize = RegisterCount + 2 + 2 + 2 + 1 + 1 + 5 + 8 + 8 + MemorySize + ScreenHeight*8

// SaveState is a plain-data copy of every mutable machine field,
// suitable for persistence. It has no behavior beyond the binary codec.
type SaveState struct {
	Registers [RegisterCount]uint8
	PC        uint16
	SP        uint16
	Index     uint16
	Delay     uint8
	Sound     uint8

	Sounding   bool
	Crashed    bool
	Programmed bool
	CanDraw    bool
	KeyWait    bool

	Budget time.Duration
	Timer  time.Duration

	Memory [MemorySize]uint8
	Screen [ScreenHeight]uint64
}

// Capture copies the entire machine state. It serializes against the
// cycle loop, so a capture never observes a half-advanced cycle.
func (m *Machine) Capture() *SaveState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return &SaveState{
		Registers:  m.registers,
		PC:         m.pc,
		SP:         m.sp,
		Index:      m.index,
		Delay:      m.delay,
		Sound:      m.sound,
		Sounding:   m.sounding,
		Crashed:    m.crashed,
		Programmed: m.programmed,
		CanDraw:    m.canDraw,
		KeyWait:    m.keyWait,
		Budget:     m.budget,
		Timer:      m.timer,
		Memory:     m.memory,
		Screen:     m.screen,
	}
}

// Restore overwrites the live state wholesale. The pressed-key latch is
// not part of a snapshot; a restored key wait re-arms on the next press.
func (m *Machine) Restore(st *SaveState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.registers = st.Registers
	m.pc = st.PC
	m.sp = st.SP
	m.index = st.Index
	m.delay = st.Delay
	m.sound = st.Sound
	m.sounding = st.Sounding
	m.crashed = st.Crashed
	m.programmed = st.Programmed
	m.canDraw = st.CanDraw
	m.keyWait = st.KeyWait
	m.pressedKey = noKey
	m.budget = st.Budget
	m.timer = st.Timer
	m.memory = st.Memory
	m.screen = st.Screen
}

// MarshalBinary encodes the state as a flat SaveStateSize-byte sequence.
// Multi-byte values are big-endian, like the machine's word accessors.
func (st *SaveState) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, SaveStateSize)

	buf = append(buf, st.Registers[:]...)
	buf = binary.BigEndian.AppendUint16(buf, st.PC)
	buf = binary.BigEndian.AppendUint16(buf, st.SP)
	buf = binary.BigEndian.AppendUint16(buf, st.Index)
	buf = append(buf, st.Delay, st.Sound)
	buf = append(buf,
		encodeBool(st.Sounding),
		encodeBool(st.Crashed),
		encodeBool(st.Programmed),
		encodeBool(st.CanDraw),
		encodeBool(st.KeyWait),
	)
	buf = binary.BigEndian.AppendUint64(buf, uint64(st.Budget))
	buf = binary.BigEndian.AppendUint64(buf, uint64(st.Timer))
	buf = append(buf, st.Memory[:]...)
	for _, row := range st.Screen {
		buf = binary.BigEndian.AppendUint64(buf, row)
	}

	return buf, nil
}

// UnmarshalBinary decodes a sequence produced by MarshalBinary.
func (st *SaveState) UnmarshalBinary(data []byte) error {
	if len(data) != SaveStateSize {
		return fmt.Errorf("invalid save state: %d bytes, want %d", len(data), SaveStateSize)
	}

	off := 0
	off += copy(st.Registers[:], data[off:off+RegisterCount])
	st.PC = binary.BigEndian.Uint16(data[off:])
	st.SP = binary.BigEndian.Uint16(data[off+2:])
	st.Index = binary.BigEndian.Uint16(data[off+4:])
	off += 6
	st.Delay = data[off]
	st.Sound = data[off+1]
	st.Sounding = data[off+2] != 0
	st.Crashed = data[off+3] != 0
	st.Programmed = data[off+4] != 0
	st.CanDraw = data[off+5] != 0
	st.KeyWait = data[off+6] != 0
	off += 7
	st.Budget = time.Duration(binary.BigEndian.Uint64(data[off:]))
	st.Timer = time.Duration(binary.BigEndian.Uint64(data[off+8:]))
	off += 16
	off += copy(st.Memory[:], data[off:off+MemorySize])
	for i := range st.Screen {
		st.Screen[i] = binary.BigEndian.Uint64(data[off:])
		off += 8
	}

	return nil
}

func encodeBool(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
