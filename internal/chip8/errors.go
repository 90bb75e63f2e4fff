package chip8

import (
	"errors"
	"fmt"
)

var (
	// ErrProgramTooLarge is returned by LoadProgram when the ROM does not
	// fit into the program region. Recoverable: try a smaller ROM.
	ErrProgramTooLarge = errors.New("program too large")

	// ErrInvalidKey is returned by KeyPressed/KeyReleased for key values
	// above 0xF. Machine state is untouched.
	ErrInvalidKey = errors.New("invalid key value")

	// ErrInvalidFrequency is returned by SetFrequency for values outside
	// the supported range.
	ErrInvalidFrequency = errors.New("invalid frequency")

	// ErrCrashed is returned by Run once a fault has latched. Only
	// LoadProgram clears it.
	ErrCrashed = errors.New("machine has crashed")

	// ErrNotProgrammed is returned by Run before any program was loaded.
	ErrNotProgrammed = errors.New("no program loaded")
)

// FaultCode identifies the kind of fatal emulation fault.
type FaultCode uint8

const (
	FaultInvalidInstruction FaultCode = iota
	FaultStackOverflow
	FaultStackUnderflow
	FaultIllegalMemoryAccess
	FaultPCOutOfRange
)

func (c FaultCode) String() string {
	switch c {
	case FaultInvalidInstruction:
		return "invalid instruction"
	case FaultStackOverflow:
		return "call stack overflow"
	case FaultStackUnderflow:
		return "call stack underflow"
	case FaultIllegalMemoryAccess:
		return "illegal memory access"
	case FaultPCOutOfRange:
		return "program counter out of range"
	default:
		return "unknown fault"
	}
}

// Fault is a fatal emulation error. Any cycle that produces one latches
// the crashed flag; the machine refuses to run again until reprogrammed.
type Fault struct {
	Code   FaultCode
	Detail string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("emulation fault: %s: %s", f.Code, f.Detail)
}

func invalidInstruction(instr uint16) *Fault {
	return &Fault{Code: FaultInvalidInstruction, Detail: fmt.Sprintf("0x%04x", instr)}
}

func stackOverflow(sp uint16) *Fault {
	return &Fault{Code: FaultStackOverflow, Detail: fmt.Sprintf("sp=0x%04x", sp)}
}

func stackUnderflow(sp uint16) *Fault {
	return &Fault{Code: FaultStackUnderflow, Detail: fmt.Sprintf("sp=0x%04x", sp)}
}

func illegalAccess(addr uint16) *Fault {
	return &Fault{Code: FaultIllegalMemoryAccess, Detail: fmt.Sprintf("addr=0x%04x", addr)}
}

func pcOutOfRange(pc uint16) *Fault {
	return &Fault{Code: FaultPCOutOfRange, Detail: fmt.Sprintf("pc=0x%04x", pc)}
}
