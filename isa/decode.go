package isa

import (
	"fmt"

	"mcs4/mask"
)

// A DecodeError reports a decoder contract violation: a two-byte mnemonic
// was decoded without its trailing byte. This is a programming error on the
// caller's interface, not a run-time event — callers that fetch both bytes
// up front (as Cpu.Step does) never hit it.
type DecodeError struct {
	Opcode byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("isa: opcode 0x%02X requires a trailing byte", e.Opcode)
}

// Decode is a pure, total function from an opcode byte and its optional
// trailing byte to a tagged Instruction. next must be non-nil for every
// two-byte mnemonic (JCN, FIM, JUN, JMS, ISZ); a nil next in that case is a
// DecodeError, not a silent Unknown.
func Decode(opcode byte, next *byte) (Instruction, error) {
	opr := mask.First(opcode, mask.I4)
	opa := mask.Last(opcode, mask.I4)

	needNext := func() (byte, error) {
		if next == nil {
			return 0, &DecodeError{Opcode: opcode}
		}
		return *next, nil
	}

	switch opr {
	case 0x0:
		return Instruction{Op: Nop}, nil

	case 0x1:
		addr8, err := needNext()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: Jcn, Cond: opa, Addr8: addr8}, nil

	case 0x2:
		pair := opa >> 1
		if opa&0x1 == 0 {
			imm8, err := needNext()
			if err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: Fim, Pair: pair, Imm8: imm8}, nil
		}
		return Instruction{Op: Src, Pair: pair}, nil

	case 0x3:
		pair := opa >> 1
		if opa&0x1 == 0 {
			return Instruction{Op: Fin, Pair: pair}, nil
		}
		return Instruction{Op: Jin, Pair: pair}, nil

	case 0x4:
		b, err := needNext()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: Jun, Addr12: (uint16(opa) << 8) | uint16(b)}, nil

	case 0x5:
		b, err := needNext()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: Jms, Addr12: (uint16(opa) << 8) | uint16(b)}, nil

	case 0x6:
		return Instruction{Op: Inc, Reg: opa}, nil

	case 0x7:
		addr8, err := needNext()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: Isz, Reg: opa, Addr8: addr8}, nil

	case 0x8:
		return Instruction{Op: Add, Reg: opa}, nil
	case 0x9:
		return Instruction{Op: Sub, Reg: opa}, nil
	case 0xA:
		return Instruction{Op: Ld, Reg: opa}, nil
	case 0xB:
		return Instruction{Op: Xch, Reg: opa}, nil
	case 0xC:
		return Instruction{Op: Bbl, Imm4: opa}, nil
	case 0xD:
		return Instruction{Op: Ldm, Imm4: opa}, nil

	case 0xE:
		op, ok := eGroup[opa]
		if !ok {
			return Instruction{Op: Unknown, Raw: opcode}, nil
		}
		return Instruction{Op: op}, nil

	case 0xF:
		op, ok := fGroup[opa]
		if !ok {
			return Instruction{Op: Unknown, Raw: opcode}, nil
		}
		return Instruction{Op: op}, nil
	}

	return Instruction{Op: Unknown, Raw: opcode}, nil
}

var eGroup = map[byte]Op{
	0x0: Wrm, 0x1: Wmp, 0x2: Wrr, 0x3: Wpm,
	0x4: Wr0, 0x5: Wr1, 0x6: Wr2, 0x7: Wr3,
	0x8: Sbm, 0x9: Rdm, 0xA: Rdr, 0xB: Adm,
	0xC: Rd0, 0xD: Rd1, 0xE: Rd2, 0xF: Rd3,
}

var fGroup = map[byte]Op{
	0x0: Clb, 0x1: Clc, 0x2: Iac, 0x3: Cmc, 0x4: Cma,
	0x5: Ral, 0x6: Rar, 0x7: Tcc, 0x8: Dac, 0x9: Tcs,
	0xA: Stc, 0xB: Daa, 0xC: Kbp, 0xD: Dcl,
	// 0xE, 0xF unassigned
}
