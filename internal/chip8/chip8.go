// Package chip8 emulates the original CHIP-8 virtual machine as it ran
// on the RCA COSMAC VIP: 4K of memory, 16 byte-wide registers, a 64x32
// monochrome screen and two 60Hz countdown timers.
//
// Where CHIP-8 interpreters historically diverge, this package follows
// the COSMAC VIP behavior throughout:
//
//   - 8XY1/8XY2/8XY3 (OR/AND/XOR) zero vF after the operation.
//   - 8XY6/8XYE shift vY into vX and leave vY unchanged; vF receives the
//     bit shifted out.
//   - FX55/FX65 advance I by X+1.
//   - FX0A completes on the release of the key whose press was observed
//     while waiting, not on the press itself.
//   - DXYN only retires in the cycle following a 60Hz tick (the
//     vertical-blank draw gate); this quirk can be switched off with
//     SetDrawGate for ROMs written against later interpreters.
//
// The machine never reads a wall clock. The driver calls Run with the
// elapsed time since the previous call and the machine converts that
// into a whole number of instruction cycles at the configured frequency,
// carrying the remainder forward.
package chip8

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultFrequency is the instruction rate used until SetFrequency
	// is called: 12 cycles per 60Hz frame.
	DefaultFrequency = 720

	MinFrequency = 1
	MaxFrequency = 10000

	timerPeriod = time.Second / 60
)

// noKey marks the pressed-key latch as empty while waiting on FX0A.
const noKey = uint8(0xFF)

// Keyboard is the capability the machine uses to sample the hex keypad.
type Keyboard interface {
	// IsPressed reports whether the given key (0x0..0xF) is held down.
	IsPressed(key uint8) bool
}

// Display is notified whenever an instruction mutates the screen. The
// owner reads the new contents back through ScreenRows.
type Display interface {
	ScreenChanged()
}

// Sound is told when the tone driven by the sound timer starts and stops.
type Sound interface {
	StartTone()
	StopTone()
}

// FaultReporter receives a one-shot notification when the machine
// crashes. Informational only; the fault itself is returned by Run.
type FaultReporter interface {
	Crashed(msg string)
}

// Machine is a complete CHIP-8 virtual machine. All exported methods are
// safe for concurrent use: a single mutex serializes the cycle loop
// against key injection, frequency changes and snapshots.
type Machine struct {
	mu sync.Mutex

	memory    [MemorySize]uint8
	registers [RegisterCount]uint8

	pc    uint16 // Program counter
	sp    uint16 // Stack pointer (byte offset into the inline stack)
	index uint16 // Index register

	delay uint8 // Delay timer
	sound uint8 // Sound timer

	screen [ScreenHeight]uint64 // One row per entry, MSB = leftmost pixel

	programmed bool
	crashed    bool
	sounding   bool
	keyWait    bool
	canDraw    bool
	stopped    bool
	pressedKey uint8

	budget time.Duration // Time owed to the cycle loop
	timer  time.Duration // Time since the last 60Hz pulse

	frequency int
	drawGate  bool

	keyboard Keyboard
	display  Display
	speaker  Sound
	reporter FaultReporter
}

// New creates an unprogrammed machine wired to the given collaborators.
// speaker and reporter may be nil.
func New(keyboard Keyboard, display Display, speaker Sound, reporter FaultReporter) *Machine {
	m := &Machine{
		keyboard:  keyboard,
		display:   display,
		speaker:   speaker,
		reporter:  reporter,
		frequency: DefaultFrequency,
		drawGate:  true,
	}
	m.clearState()
	return m
}

func (m *Machine) clearState() {
	m.pc = ProgramStart
	m.sp = StackStart
	m.index = 0
	m.delay = 0
	m.sound = 0
	m.sounding = false
	m.crashed = false
	m.programmed = false
	m.canDraw = true
	m.keyWait = false
	m.pressedKey = noKey
	m.budget = 0
	m.timer = 0
	m.registers = [RegisterCount]uint8{}
	m.memory = [MemorySize]uint8{}
	m.screen = [ScreenHeight]uint64{}
}

// LoadProgram resets the machine, installs the font and copies program
// into memory at ProgramStart. It clears a latched crash.
func (m *Machine) LoadProgram(program []byte) error {
	if len(program) > MaxProgramSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrProgramTooLarge, len(program), MaxProgramSize)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearState()
	copy(m.memory[FontStart:], font[:])
	copy(m.memory[ProgramStart:], program)
	m.programmed = true

	slog.Info("load program", "at", fmt.Sprintf("0x%04x", ProgramStart), "n", len(program))
	return nil
}

// Run advances the simulation by elapsed wall time. The elapsed quantum
// is added to the cycle budget and a whole number of cycles at the
// configured frequency is executed; the remainder carries forward so no
// time is lost or double-counted across calls.
//
// A fatal fault latches the crashed flag, abandons the rest of the
// batch and is returned to the caller. Subsequent calls return
// ErrCrashed until a new program is loaded.
func (m *Machine) Run(elapsed time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.crashed {
		return ErrCrashed
	}
	if !m.programmed {
		return ErrNotProgrammed
	}
	if m.stopped {
		return nil
	}

	period := time.Second / time.Duration(m.frequency)
	m.budget += elapsed
	cycles := int64(m.budget / period)
	m.budget %= period

	for i := int64(0); i < cycles; i++ {
		if err := m.cycle(period); err != nil {
			m.crashed = true
			slog.Error("machine crashed", "err", err, "pc", fmt.Sprintf("0x%04x", m.pc))
			if m.reporter != nil {
				m.reporter.Crashed(err.Error())
			}
			return err
		}
	}

	return nil
}

// cycle performs one fetch-decode-execute step and accounts cycleTime
// against the 60Hz timers.
func (m *Machine) cycle(cycleTime time.Duration) error {
	m.timer += cycleTime
	if m.timer >= timerPeriod {
		pulses := int64(m.timer / timerPeriod)
		m.timer %= timerPeriod
		m.delay = decayTimer(m.delay, pulses)
		m.sound = decayTimer(m.sound, pulses)
		m.canDraw = true
	} else {
		m.canDraw = false
	}

	// A pending key wait suspends execution, not time.
	if m.keyWait {
		return nil
	}

	// pc > ProgramEnd-1 rather than pc+1 > ProgramEnd: a restored
	// snapshot can carry pc = 0xFFFF, where pc+1 wraps to zero.
	if m.pc < ProgramStart || m.pc > ProgramEnd-1 {
		return pcOutOfRange(m.pc)
	}

	instr, err := m.readWord(m.pc)
	if err != nil {
		return err
	}
	op, err := decode(instr)
	if err != nil {
		return err
	}

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug(
			"exec",
			"pc", fmt.Sprintf("0x%04x", m.pc),
			"opcode", fmt.Sprintf("0x%04x", instr),
			"instr", op.String(),
		)
	}

	if err := m.execute(op, instr); err != nil {
		return err
	}

	// Track the sound timer's 0/nonzero edge. The tone only starts for
	// timer values of 2 and up, matching the original interpreter.
	if m.sounding && m.sound == 0 {
		if m.speaker != nil {
			m.speaker.StopTone()
		}
		m.sounding = false
	} else if !m.sounding && m.sound >= 2 {
		if m.speaker != nil {
			m.speaker.StartTone()
		}
		m.sounding = true
	}

	if op.advancesPC() {
		m.pc += InstructionSize
	}
	return nil
}

// decayTimer decrements a timer by pulses 60Hz ticks, floored at zero.
func decayTimer(value uint8, pulses int64) uint8 {
	if value == 0 {
		return 0
	}
	if pulses >= int64(value) {
		return 0
	}
	return value - uint8(pulses)
}

// KeyPressed injects a keypad press. It only has an effect while the
// machine is waiting on FX0A and no press has been latched yet: the key
// value is written to the wait target register, the program counter
// steps past the wait and the key is latched until KeyReleased completes
// the wait. The press/release pairing debounces held keys.
func (m *Machine) KeyPressed(key uint8) error {
	if key >= KeyCount {
		return fmt.Errorf("%w: %d", ErrInvalidKey, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.keyWait || m.pressedKey != noKey {
		return nil
	}

	// The program counter still points at the FX0A that armed the wait.
	instr, err := m.readWord(m.pc)
	if err != nil {
		return err
	}
	m.registers[instrB(instr)] = key
	m.pc += InstructionSize
	m.pressedKey = key
	return nil
}

// KeyReleased completes a pending key wait if key matches the latched
// press. Releases of other keys are ignored.
func (m *Machine) KeyReleased(key uint8) error {
	if key >= KeyCount {
		return fmt.Errorf("%w: %d", ErrInvalidKey, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if key != m.pressedKey {
		return nil
	}
	m.keyWait = false
	m.pressedKey = noKey
	return nil
}

// Frequency returns the configured instruction rate in Hz.
func (m *Machine) Frequency() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frequency
}

// SetFrequency changes the instruction rate. It takes effect with the
// next Run call; the accumulated cycle budget is preserved.
func (m *Machine) SetFrequency(hz int) error {
	if hz < MinFrequency || hz > MaxFrequency {
		return fmt.Errorf("%w: %d Hz", ErrInvalidFrequency, hz)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.frequency = hz
	return nil
}

// SetDrawGate enables or disables the vertical-blank draw gate.
func (m *Machine) SetDrawGate(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drawGate = enabled
}

// Stop suspends the cycle loop: Run becomes a no-op until Start is
// called. The cycle budget is left untouched, so a restarted machine
// resumes exactly where it stopped.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

// Start lifts a Stop.
func (m *Machine) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = false
}

// ScreenRows returns a copy of the screen bitmap, one 64-bit row per
// entry with the most significant bit as the leftmost column.
func (m *Machine) ScreenRows() [ScreenHeight]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screen
}

// Crashed reports whether a fatal fault has latched.
func (m *Machine) Crashed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.crashed
}

// Programmed reports whether a program has been loaded.
func (m *Machine) Programmed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.programmed
}

// Sounding reports whether the tone is currently active.
func (m *Machine) Sounding() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sounding
}
