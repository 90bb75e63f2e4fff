package chip8

import (
	"math/rand/v2"
)

// execute applies one decoded operation to the machine. Handlers mutate
// registers, memory and the screen; control-flow handlers set the
// program counter themselves (see Op.advancesPC).
func (m *Machine) execute(op Op, instr uint16) error {
	switch op {
	case OpClear:
		m.screen = [ScreenHeight]uint64{}
		m.display.ScreenChanged()

	case OpReturn:
		if m.sp <= 1 {
			return stackUnderflow(m.sp)
		}
		m.sp -= InstructionSize
		pc, err := m.readWord(m.sp)
		if err != nil {
			return err
		}
		m.pc = pc

	case OpJump:
		m.pc = instrAddr(instr)

	case OpCall:
		if m.sp >= FontStart-1 {
			return stackOverflow(m.sp)
		}
		if err := m.writeWord(m.sp, m.pc); err != nil {
			return err
		}
		m.sp += InstructionSize
		m.pc = instrAddr(instr)

	case OpSkipEqImm:
		if m.registers[instrB(instr)] == instrImm(instr) {
			m.pc += InstructionSize
		}

	case OpSkipNeImm:
		if m.registers[instrB(instr)] != instrImm(instr) {
			m.pc += InstructionSize
		}

	case OpSkipEqReg:
		if m.registers[instrB(instr)] == m.registers[instrC(instr)] {
			m.pc += InstructionSize
		}

	case OpLoadImm:
		m.registers[instrB(instr)] = instrImm(instr)

	case OpAddImm:
		m.registers[instrB(instr)] += instrImm(instr)

	case OpMove:
		m.registers[instrB(instr)] = m.registers[instrC(instr)]

	case OpOr:
		m.registers[instrB(instr)] |= m.registers[instrC(instr)]
		m.registers[0xF] = 0 // Quirk of the original interpreter.

	case OpAnd:
		m.registers[instrB(instr)] &= m.registers[instrC(instr)]
		m.registers[0xF] = 0 // Quirk of the original interpreter.

	case OpXor:
		m.registers[instrB(instr)] ^= m.registers[instrC(instr)]
		m.registers[0xF] = 0 // Quirk of the original interpreter.

	case OpAddReg:
		x := m.registers[instrB(instr)]
		y := m.registers[instrC(instr)]
		sum := x + y
		m.registers[instrB(instr)] = sum
		if sum < x {
			m.registers[0xF] = 1
		} else {
			m.registers[0xF] = 0
		}

	case OpSubReg:
		x := m.registers[instrB(instr)]
		y := m.registers[instrC(instr)]
		diff := x - y
		m.registers[instrB(instr)] = diff
		if diff > x {
			m.registers[0xF] = 0
		} else {
			m.registers[0xF] = 1
		}

	case OpShiftRight:
		y := m.registers[instrC(instr)]
		m.registers[instrB(instr)] = y >> 1
		m.registers[0xF] = y & 0x01

	case OpSubRev:
		x := m.registers[instrB(instr)]
		y := m.registers[instrC(instr)]
		diff := y - x
		m.registers[instrB(instr)] = diff
		if diff > y {
			m.registers[0xF] = 0
		} else {
			m.registers[0xF] = 1
		}

	case OpShiftLeft:
		y := m.registers[instrC(instr)]
		m.registers[instrB(instr)] = y << 1
		m.registers[0xF] = y >> 7

	case OpSkipNeReg:
		if m.registers[instrB(instr)] != m.registers[instrC(instr)] {
			m.pc += InstructionSize
		}

	case OpLoadIndex:
		m.index = instrAddr(instr)

	case OpJumpV0:
		m.pc = instrAddr(instr) + uint16(m.registers[0x0])

	case OpRandom:
		m.registers[instrB(instr)] = uint8(rand.IntN(256)) & instrImm(instr)

	case OpDraw:
		return m.draw(instr)

	case OpSkipKeyPressed:
		key := m.registers[instrB(instr)]
		if key >= KeyCount {
			return illegalAccess(uint16(key))
		}
		if m.keyboard.IsPressed(key) {
			m.pc += InstructionSize
		}

	case OpSkipKeyUp:
		key := m.registers[instrB(instr)]
		if key >= KeyCount {
			return illegalAccess(uint16(key))
		}
		if !m.keyboard.IsPressed(key) {
			m.pc += InstructionSize
		}

	case OpReadDelay:
		m.registers[instrB(instr)] = m.delay

	case OpWaitKey:
		// No register write here: KeyPressed performs it when the press
		// arrives, KeyReleased clears the wait.
		m.keyWait = true

	case OpSetDelay:
		m.delay = m.registers[instrB(instr)]

	case OpSetSound:
		m.sound = m.registers[instrB(instr)]

	case OpAddIndex:
		m.index += uint16(m.registers[instrB(instr)])

	case OpFontSprite:
		m.index = FontStart + uint16(m.registers[instrB(instr)])*5

	case OpBCD:
		return m.bcd(instr)

	case OpStore:
		n := uint16(instrB(instr))
		if err := checkProgramWrite(m.index, n+1); err != nil {
			return err
		}
		for i := uint16(0); i <= n; i++ {
			m.memory[m.index] = m.registers[i]
			m.index++
		}

	case OpRead:
		n := uint16(instrB(instr))
		for i := uint16(0); i <= n; i++ {
			value, err := m.readByte(m.index)
			if err != nil {
				return err
			}
			m.registers[i] = value
			m.index++
		}

	default:
		return invalidInstruction(instr)
	}

	return nil
}

// draw XOR-blits an 8-pixel-wide sprite of height N from memory at I
// onto the screen at (vX, vY). The position wraps on entry, but rows and
// columns falling past the bottom or right edge are clipped, not
// wrapped. vF is set when the blit clears a previously set pixel.
//
// With the draw gate enabled the sprite only retires in the cycle right
// after a 60Hz tick; otherwise the program counter is rewound so the
// same draw is retried next cycle.
func (m *Machine) draw(instr uint16) error {
	if m.drawGate && !m.canDraw {
		m.pc -= InstructionSize
		return nil
	}

	m.registers[0xF] = 0
	xpos := m.registers[instrB(instr)] % ScreenWidth
	ypos := m.registers[instrC(instr)] % ScreenHeight
	height := uint16(instrD(instr))
	if limit := uint16(ScreenHeight) - uint16(ypos); height > limit {
		height = limit
	}
	shift := 56 - int(xpos)

	for row := uint16(0); row < height; row++ {
		sprite, err := m.readByte(m.index + row)
		if err != nil {
			return err
		}
		line := uint64(sprite)
		if shift >= 0 {
			line <<= uint(shift)
		} else {
			line >>= uint(-shift)
		}

		y := uint16(ypos) + row
		if m.screen[y]&line != 0 {
			m.registers[0xF] = 1
		}
		m.screen[y] ^= line
	}

	m.display.ScreenChanged()
	return nil
}

// bcd writes the three decimal digits of vX to memory at I, I+1 and
// I+2 using the double-dabble shift-and-correct algorithm.
func (m *Machine) bcd(instr uint16) error {
	if err := checkProgramWrite(m.index, 3); err != nil {
		return err
	}

	const (
		hundreds = uint32(0xF0000)
		tens     = uint32(0x0F000)
		ones     = uint32(0x00F00)
	)

	scratch := uint32(m.registers[instrB(instr)])
	for i := 0; i < 7; i++ {
		scratch <<= 1
		// Add 3 to any digit above 4 before the next shift.
		if scratch&hundreds > 0x40000 {
			scratch += 0x30000
		}
		if scratch&tens > 0x04000 {
			scratch += 0x03000
		}
		if scratch&ones > 0x00400 {
			scratch += 0x00300
		}
	}
	scratch <<= 1

	m.memory[m.index] = uint8((scratch & hundreds) >> 16)
	m.memory[m.index+1] = uint8((scratch & tens) >> 12)
	m.memory[m.index+2] = uint8((scratch & ones) >> 8)
	return nil
}
