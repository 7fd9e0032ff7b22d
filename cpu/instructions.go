package cpu

import (
	"log"

	"mcs4/isa"
)

// execute carries out the semantics of one decoded instruction. pcAtFetch is
// the Pc value before Step's advance; JIN, FIN and ISZ take their branch page
// from it, while JCN keeps the page of the already-advanced c.Pc.
func (c *Cpu) execute(instr isa.Instruction, pcAtFetch uint16) {
	switch instr.Op {

	case isa.Nop:
		// no-op

	case isa.Jcn:
		if c.jcnTaken(instr.Cond) {
			c.Pc = (c.Pc & 0x0F00) | uint16(instr.Addr8)
		}

	case isa.Fim:
		ra, rb := pairRegs(instr.Pair)
		c.R[ra] = instr.Imm8 >> 4
		c.R[rb] = instr.Imm8 & 0xF

	case isa.Src:
		c.Bus.DataSRC(c.pairContent(instr.Pair))

	case isa.Fin:
		page := branchPage(pcAtFetch, 1)
		addr8 := c.pairContent(0)
		b := c.Bus.ProgRead((page << 8) | uint16(addr8))
		ra, rb := pairRegs(instr.Pair)
		c.R[ra] = b >> 4
		c.R[rb] = b & 0xF

	case isa.Jin:
		page := branchPage(pcAtFetch, 1)
		c.Pc = (page << 8) | uint16(c.pairContent(instr.Pair))

	case isa.Jun:
		c.Pc = instr.Addr12 & 0x0FFF

	case isa.Jms:
		c.pushStack(c.Pc)
		c.Pc = instr.Addr12 & 0x0FFF

	case isa.Inc:
		c.R[instr.Reg] = (c.R[instr.Reg] + 1) & 0xF

	case isa.Isz:
		c.R[instr.Reg] = (c.R[instr.Reg] + 1) & 0xF
		if c.R[instr.Reg] != 0 {
			page := branchPage(pcAtFetch, 2)
			c.Pc = (page << 8) | uint16(instr.Addr8)
		}

	case isa.Add:
		c.Acc, c.Cy = addWithCarryIn(c.Acc, c.R[instr.Reg], c.Cy)

	case isa.Sub:
		c.Acc, c.Cy = addWithCarryIn(c.Acc, ^c.R[instr.Reg]&0xF, c.Cy)

	case isa.Ld:
		c.Acc = c.R[instr.Reg]

	case isa.Xch:
		c.Acc, c.R[instr.Reg] = c.R[instr.Reg], c.Acc

	case isa.Bbl:
		c.Pc = c.popStack()
		c.Acc = instr.Imm4

	case isa.Ldm:
		c.Acc = instr.Imm4

	case isa.Wrm:
		c.Bus.DataWriteMain(c.Acc)

	case isa.Rdm:
		c.Acc = c.Bus.DataReadMain()

	case isa.Wmp:
		c.Bus.DataWritePort(c.Acc)

	case isa.Wrr:
		c.Bus.RomPortWrite(c.Acc)

	case isa.Wpm:
		// reserved; treated as no-op

	case isa.Wr0, isa.Wr1, isa.Wr2, isa.Wr3:
		c.Bus.DataWriteStatus(statusIndex(instr.Op), c.Acc)

	case isa.Sbm:
		c.Acc, c.Cy = addWithCarryIn(c.Acc, ^c.Bus.DataReadMain()&0xF, c.Cy)

	case isa.Rdr:
		c.Acc = c.Bus.RomPortRead()

	case isa.Adm:
		c.Acc, c.Cy = addWithCarryIn(c.Acc, c.Bus.DataReadMain(), c.Cy)

	case isa.Rd0, isa.Rd1, isa.Rd2, isa.Rd3:
		c.Acc = c.Bus.DataReadStatus(statusIndex(instr.Op))

	case isa.Clb:
		c.Acc = 0
		c.Cy = false

	case isa.Clc:
		c.Cy = false

	case isa.Iac:
		c.Acc, c.Cy = addWithCarryIn(c.Acc, 1, false)

	case isa.Cmc:
		c.Cy = !c.Cy

	case isa.Cma:
		c.Acc = ^c.Acc & 0xF

	case isa.Ral:
		oldAcc, oldCy := c.Acc, c.Cy
		c.Acc = ((oldAcc << 1) | boolToNibble(oldCy)) & 0xF
		c.Cy = oldAcc&0x8 != 0

	case isa.Rar:
		oldAcc, oldCy := c.Acc, c.Cy
		c.Acc = (boolToNibble(oldCy)<<3 | (oldAcc >> 1)) & 0xF
		c.Cy = oldAcc&0x1 != 0

	case isa.Tcc:
		c.Acc = boolToNibble(c.Cy)
		c.Cy = false

	case isa.Dac:
		c.Acc, c.Cy = addWithCarryIn(c.Acc, 0xE, true)

	case isa.Tcs:
		if c.Cy {
			c.Acc = 10
		} else {
			c.Acc = 9
		}
		c.Cy = false

	case isa.Stc:
		c.Cy = true

	case isa.Daa:
		if c.Cy || c.Acc > 9 {
			sum := int(c.Acc) + 6
			if sum > 15 {
				c.Cy = true
			}
			c.Acc = byte(sum & 0xF)
		}

	case isa.Kbp:
		if v, ok := kbpTable[c.Acc]; ok {
			c.Acc = v
		} else {
			c.Acc = 0xF
		}

	case isa.Dcl:
		c.Bus.DataDCL(c.Acc & 0b111)

	case isa.Unknown:
		c.UnknownCount++
		log.Printf("cpu: unknown opcode 0x%02X at pc=0x%03X, treated as no-op", instr.Raw, pcAtFetch)
	}
}

// jcnTaken evaluates JCN's 4-bit condition: (invert, test_acc, test_cy,
// test_sig) packed from bit 3 down to bit 0.
func (c *Cpu) jcnTaken(cond byte) bool {
	invert := cond&0x8 != 0
	testAcc := cond&0x4 != 0
	testCy := cond&0x2 != 0
	testSig := cond&0x1 != 0

	raw := (testAcc && c.Acc == 0) ||
		(testCy && c.Cy) ||
		(testSig && !c.testPinActive())

	return raw != invert
}

func boolToNibble(b bool) byte {
	if b {
		return 1
	}
	return 0
}
