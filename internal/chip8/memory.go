package chip8

const (
	MemorySize    = 4096
	RegisterCount = 16
	ScreenWidth   = 64
	ScreenHeight  = 32
	KeyCount      = 16

	// The call stack lives inline in low memory, one 16-bit return
	// address per frame, growing upward toward the font.
	StackStart = uint16(0x000)
	FontStart  = uint16(0x050)
	FontSize   = 80

	ProgramStart = uint16(0x200)
	ProgramEnd   = uint16(0xFFF)

	// MaxProgramSize is the largest ROM LoadProgram accepts.
	MaxProgramSize = int(ProgramEnd - ProgramStart)

	InstructionSize = 2
)

// The built-in hexadecimal glyph font: 16 characters, 5 bytes each,
// installed at FontStart on every program load.
var font = [FontSize]uint8{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}

func (m *Machine) readByte(addr uint16) (uint8, error) {
	if addr >= MemorySize {
		return 0, illegalAccess(addr)
	}
	return m.memory[addr], nil
}

func (m *Machine) writeByte(addr uint16, value uint8) error {
	if addr >= MemorySize {
		return illegalAccess(addr)
	}
	m.memory[addr] = value
	return nil
}

// readWord reads a big-endian 16-bit pair at addr. The bound is checked
// against addr itself so that addr+1 cannot wrap at 0xFFFF.
func (m *Machine) readWord(addr uint16) (uint16, error) {
	if addr >= MemorySize-1 {
		return 0, illegalAccess(addr)
	}
	return uint16(m.memory[addr])<<8 | uint16(m.memory[addr+1]), nil
}

func (m *Machine) writeWord(addr uint16, value uint16) error {
	if addr >= MemorySize-1 {
		return illegalAccess(addr)
	}
	m.memory[addr] = uint8(value >> 8)
	m.memory[addr+1] = uint8(value)
	return nil
}

// checkProgramWrite verifies that the n bytes starting at addr fall
// entirely inside the program/data region. Instructions that write
// through the index register use it so that running programs cannot
// corrupt the stack or font, while LoadProgram itself stays free to
// install the font below ProgramStart.
func checkProgramWrite(addr uint16, n uint16) error {
	// Widened arithmetic: FX1E can push the index register toward
	// 0xFFFF, where addr+n-1 would wrap and slip past the bound.
	if addr < ProgramStart || int(addr)+int(n)-1 > int(ProgramEnd) {
		return illegalAccess(addr)
	}
	return nil
}
