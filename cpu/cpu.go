// Package cpu implements the CPU core of an MCS-4-style 4-bit
// microprocessor: the fetch-decode-execute loop, register file, program
// counter and call stack, and the arithmetic/logic/BCD/keyboard semantics of
// the full instruction set. The Cpu has no memory of its own; it drives a
// mem.Bus for every program read, data-memory access, and port operation.
package cpu

import (
	"context"

	"mcs4/isa"
	"mcs4/mem"
)

// Cpu holds the complete architectural state: a 4-bit accumulator, a 1-bit
// carry flag, sixteen 4-bit index registers (addressable individually or as
// eight pairs), a 12-bit program counter, and a 3-deep circular call stack.
type Cpu struct {
	Bus mem.Bus

	Acc byte
	Cy  bool
	R   [16]byte
	Pc  uint16

	Stack [3]uint16
	Sp    int

	// TestPin is consulted by JCN's test_sig predicate. A nil TestPin
	// reads as inactive, matching the spec's default-0 hook.
	TestPin func() bool

	// UnknownCount counts decoded Unknown opcodes executed as no-ops.
	// Production code never halts on them; tests use this counter to
	// assert none were hit, or exactly how many were.
	UnknownCount int
}

// New returns a Cpu wired to bus, with all registers zeroed.
func New(bus mem.Bus) *Cpu {
	return &Cpu{Bus: bus}
}

// Reset zeroes the architectural state. The bus and any attached TestPin
// hook are left untouched; they belong to the surrounding system, not the
// core being reset.
func (c *Cpu) Reset() {
	c.Acc = 0
	c.Cy = false
	c.R = [16]byte{}
	c.Pc = 0
	c.Stack = [3]uint16{}
	c.Sp = 0
	c.UnknownCount = 0
}

// Step performs one fetch-decode-execute cycle. It reads the opcode at Pc,
// peeks the byte at Pc+1 (wrapping modulo 4096) in case the opcode decodes
// to a two-byte form, advances Pc by the decoded size, and executes the
// instruction against the pre-advance Pc (pcAtFetch).
//
// Step is atomic: it never suspends and is never re-entrant.
func (c *Cpu) Step() error {
	opcode := c.Bus.ProgRead(c.Pc)
	next := c.Bus.ProgRead((c.Pc + 1) & 0x0FFF)

	instr, err := isa.Decode(opcode, &next)
	if err != nil {
		return err
	}

	pcAtFetch := c.Pc
	c.Pc = (c.Pc + uint16(instr.Size())) & 0x0FFF
	c.execute(instr, pcAtFetch)
	return nil
}

// RunSteps performs exactly n steps, stopping early if Step returns an
// error.
func (c *Cpu) RunSteps(n int) error {
	for range n {
		if err := c.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Run steps indefinitely and returns only if Step returns an error. Use
// RunContext for a variant that can be cancelled.
func (c *Cpu) Run() error {
	for {
		if err := c.Step(); err != nil {
			return err
		}
	}
}

// RunContext steps until ctx is cancelled or Step returns an error.
func (c *Cpu) RunContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := c.Step(); err != nil {
			return err
		}
	}
}

// testPinActive reports the current state of the external TEST input pin.
func (c *Cpu) testPinActive() bool {
	if c.TestPin == nil {
		return false
	}
	return c.TestPin()
}

// pairRegs returns the index-register indices (ra, rb) comprising pair k:
// ra is the high nibble (register 2k), rb the low nibble (register 2k+1).
func pairRegs(pair byte) (ra, rb int) {
	ra = int(pair) * 2
	rb = ra + 1
	return
}

// pairContent concatenates pair k's two registers into one byte: high
// nibble from ra, low nibble from rb.
func (c *Cpu) pairContent(pair byte) byte {
	ra, rb := pairRegs(pair)
	return (c.R[ra] << 4) | c.R[rb]
}

// branchPage computes the destination page for a JIN/FIN/ISZ branch taken
// from pcAtFetch. instrSize is 1 for JIN/FIN, 2 for ISZ. When the in-page
// byte sits in the final instrSize slot(s) of the page, the page rolls over
// modulo 16 — the documented page-crossing rule.
func branchPage(pcAtFetch uint16, instrSize int) uint16 {
	page := (pcAtFetch >> 8) & 0xF
	low := pcAtFetch & 0xFF
	threshold := uint16(0x100 - instrSize)
	if low >= threshold {
		page = (page + 1) & 0xF
	}
	return page
}

// pushStack writes pc into the next slot of the 3-deep circular stack.
func (c *Cpu) pushStack(pc uint16) {
	c.Stack[c.Sp] = pc
	c.Sp = (c.Sp + 1) % 3
}

// popStack returns the most recently pushed pc, stepping the write pointer
// back by one.
func (c *Cpu) popStack() uint16 {
	c.Sp = (c.Sp + 2) % 3
	return c.Stack[c.Sp]
}

// addWithCarryIn performs a carry-propagating 4-bit add: subtraction is
// expressed by the caller passing the one's-complement of the subtrahend,
// so the same helper covers ADD, SUB, ADM, SBM, IAC, and DAC.
func addWithCarryIn(a, b byte, carryIn bool) (result byte, carryOut bool) {
	sum := int(a) + int(b)
	if carryIn {
		sum++
	}
	return byte(sum & 0xF), sum > 15
}

// statusIndex maps a WRx/RDx opcode to its status-character index 0..3.
func statusIndex(op isa.Op) int {
	switch op {
	case isa.Wr0, isa.Rd0:
		return 0
	case isa.Wr1, isa.Rd1:
		return 1
	case isa.Wr2, isa.Rd2:
		return 2
	case isa.Wr3, isa.Rd3:
		return 3
	default:
		panic("cpu: statusIndex called with non-status opcode")
	}
}

var kbpTable = map[byte]byte{0x0: 0x0, 0x1: 0x1, 0x2: 0x2, 0x4: 0x3, 0x8: 0x4}
