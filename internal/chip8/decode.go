package chip8

// Op identifies one of the CHIP-8 operations. Dispatching on an
// enumerated tag keeps the execute switch exhaustiveness-checkable.
type Op uint8

const (
	OpClear          Op = iota // 00E0 - clear the screen
	OpReturn                   // 00EE - return from subroutine
	OpJump                     // 1NNN - jump to NNN
	OpCall                     // 2NNN - call subroutine at NNN
	OpSkipEqImm                // 3XNN - skip if vX == NN
	OpSkipNeImm                // 4XNN - skip if vX != NN
	OpSkipEqReg                // 5XY0 - skip if vX == vY
	OpLoadImm                  // 6XNN - vX = NN
	OpAddImm                   // 7XNN - vX += NN, no carry
	OpMove                     // 8XY0 - vX = vY
	OpOr                       // 8XY1 - vX |= vY, vF = 0
	OpAnd                      // 8XY2 - vX &= vY, vF = 0
	OpXor                      // 8XY3 - vX ^= vY, vF = 0
	OpAddReg                   // 8XY4 - vX += vY, carry in vF
	OpSubReg                   // 8XY5 - vX -= vY, no-borrow in vF
	OpShiftRight               // 8XY6 - vX = vY >> 1, bit 0 in vF
	OpSubRev                   // 8XY7 - vX = vY - vX, no-borrow in vF
	OpShiftLeft                // 8XYE - vX = vY << 1, bit 7 in vF
	OpSkipNeReg                // 9XY0 - skip if vX != vY
	OpLoadIndex                // ANNN - I = NNN
	OpJumpV0                   // BNNN - jump to NNN + v0
	OpRandom                   // CXNN - vX = random & NN
	OpDraw                     // DXYN - draw sprite at (vX, vY), height N
	OpSkipKeyPressed           // EX9E - skip if key vX is pressed
	OpSkipKeyUp                // EXA1 - skip if key vX is not pressed
	OpReadDelay                // FX07 - vX = delay timer
	OpWaitKey                  // FX0A - wait for a keypress into vX
	OpSetDelay                 // FX15 - delay timer = vX
	OpSetSound                 // FX18 - sound timer = vX
	OpAddIndex                 // FX1E - I += vX
	OpFontSprite               // FX29 - I = font sprite address for vX
	OpBCD                      // FX33 - BCD of vX at I, I+1, I+2
	OpStore                    // FX55 - store v0..vX at I, I += X+1
	OpRead                     // FX65 - read v0..vX from I, I += X+1

	opCount
)

var opNames = [opCount]string{
	OpClear:          "cls",
	OpReturn:         "rts",
	OpJump:           "jmp",
	OpCall:           "jsr",
	OpSkipEqImm:      "skeq",
	OpSkipNeImm:      "skne",
	OpSkipEqReg:      "skeq",
	OpLoadImm:        "mov",
	OpAddImm:         "add",
	OpMove:           "mov",
	OpOr:             "or",
	OpAnd:            "and",
	OpXor:            "xor",
	OpAddReg:         "add",
	OpSubReg:         "sub",
	OpShiftRight:     "shr",
	OpSubRev:         "rsb",
	OpShiftLeft:      "shl",
	OpSkipNeReg:      "skne",
	OpLoadIndex:      "mvi",
	OpJumpV0:         "jmi",
	OpRandom:         "rand",
	OpDraw:           "sprite",
	OpSkipKeyPressed: "skpr",
	OpSkipKeyUp:      "skup",
	OpReadDelay:      "gdelay",
	OpWaitKey:        "key",
	OpSetDelay:       "sdelay",
	OpSetSound:       "ssound",
	OpAddIndex:       "adi",
	OpFontSprite:     "font",
	OpBCD:            "bcd",
	OpStore:          "str",
	OpRead:           "ldr",
}

func (op Op) String() string {
	if op < opCount {
		return opNames[op]
	}
	return "unknown"
}

// advancesPC reports whether the engine should step the program counter
// past the instruction after executing op. Jumps, calls and the key wait
// set the program counter themselves.
func (op Op) advancesPC() bool {
	switch op {
	case OpJump, OpJumpV0, OpCall, OpWaitKey:
		return false
	default:
		return true
	}
}

// Nibble fields of an instruction word: a is bits 12-15 down to d at
// bits 0-3, addr is the low 12 bits, imm the low byte.
func instrA(instr uint16) uint8     { return uint8(instr >> 12) }
func instrB(instr uint16) uint8     { return uint8(instr>>8) & 0x0F }
func instrC(instr uint16) uint8     { return uint8(instr>>4) & 0x0F }
func instrD(instr uint16) uint8     { return uint8(instr) & 0x0F }
func instrAddr(instr uint16) uint16 { return instr & 0x0FFF }
func instrImm(instr uint16) uint8   { return uint8(instr) }

// Instructions of the form kNNN, keyed by the leading nibble.
var addrOps = map[uint8]Op{
	0x1: OpJump,
	0x2: OpCall,
	0xA: OpLoadIndex,
	0xB: OpJumpV0,
}

// Instructions of the form kXNN, keyed by the leading nibble.
var immOps = map[uint8]Op{
	0x3: OpSkipEqImm,
	0x4: OpSkipNeImm,
	0x6: OpLoadImm,
	0x7: OpAddImm,
	0xC: OpRandom,
}

// Instructions of the form kXYk, keyed by leading and trailing nibbles.
var regOps = map[uint8]Op{
	0x50: OpSkipEqReg,
	0x80: OpMove,
	0x81: OpOr,
	0x82: OpAnd,
	0x83: OpXor,
	0x84: OpAddReg,
	0x85: OpSubReg,
	0x86: OpShiftRight,
	0x87: OpSubRev,
	0x8E: OpShiftLeft,
	0x90: OpSkipNeReg,
}

// Instructions of the form kXkk, keyed by the leading nibble and the low
// byte. The 5/8/9 and E/F groups share leading nibbles with unrelated
// instructions, which is why the opcode space is partitioned four ways
// instead of being a single flat table.
var keyedOps = map[uint16]Op{
	0xE9E: OpSkipKeyPressed,
	0xEA1: OpSkipKeyUp,
	0xF07: OpReadDelay,
	0xF0A: OpWaitKey,
	0xF15: OpSetDelay,
	0xF18: OpSetSound,
	0xF1E: OpAddIndex,
	0xF29: OpFontSprite,
	0xF33: OpBCD,
	0xF55: OpStore,
	0xF65: OpRead,
}

// decode resolves an instruction word to its operation tag.
func decode(instr uint16) (Op, error) {
	a := instrA(instr)

	switch a {
	case 0x0:
		switch instr {
		case 0x00E0:
			return OpClear, nil
		case 0x00EE:
			return OpReturn, nil
		}

	case 0xD:
		return OpDraw, nil

	case 0x1, 0x2, 0xA, 0xB:
		return addrOps[a], nil

	case 0x3, 0x4, 0x6, 0x7, 0xC:
		return immOps[a], nil

	case 0xE, 0xF:
		key := uint16(a)<<8 | uint16(instrC(instr))<<4 | uint16(instrD(instr))
		if op, ok := keyedOps[key]; ok {
			return op, nil
		}

	default: // 0x5, 0x8, 0x9
		if op, ok := regOps[a<<4|instrD(instr)]; ok {
			return op, nil
		}
	}

	return 0, invalidInstruction(instr)
}
