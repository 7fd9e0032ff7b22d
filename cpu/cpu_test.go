package cpu

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcs4/devices"
	"mcs4/isa"
	"mcs4/mem"
)

func newCpu(program []byte) (*Cpu, *mem.Rom) {
	rom := mem.NewRom(program)
	data := mem.NewDataRam()
	bus := mem.NewSimpleBus(rom, data)
	return New(bus), rom
}

func assertInvariants(t *testing.T, c *Cpu) {
	t.Helper()
	assert.Less(t, c.Pc, uint16(4096))
	assert.Contains(t, []int{0, 1, 2}, c.Sp)
	assert.LessOrEqual(t, c.Acc, byte(0xF))
	for _, r := range c.R {
		assert.LessOrEqual(t, r, byte(0xF))
	}
}

func TestEmptyProgramRunsToCompletion(t *testing.T) {
	c, _ := newCpu(make([]byte, 4096))
	require.NoError(t, c.RunSteps(100))
	assert.Equal(t, uint16(100), c.Pc)
	assert.Equal(t, byte(0), c.Acc)
	assert.False(t, c.Cy)
	for _, r := range c.R {
		assert.Equal(t, byte(0), r)
	}
	assertInvariants(t, c)
}

func TestIncrementAndWrap(t *testing.T) {
	c, _ := newCpu([]byte{0xDF, 0xF2}) // LDM 0xF; IAC
	require.NoError(t, c.RunSteps(2))
	assert.Equal(t, byte(0), c.Acc)
	assert.True(t, c.Cy)
	assert.Equal(t, uint16(2), c.Pc)
	assertInvariants(t, c)
}

func TestCallAndReturn(t *testing.T) {
	program := make([]byte, 4096)
	program[0x000] = 0xD0 // LDM 0
	program[0x001] = 0x50 // JMS 0x010
	program[0x002] = 0x10
	program[0x003] = 0x40 // JUN 0x020
	program[0x004] = 0x20
	program[0x010] = 0xF2 // IAC
	program[0x011] = 0xC0 // BBL 0
	program[0x020] = 0xD5 // LDM 5

	c, _ := newCpu(program)
	// LDM, JMS, IAC, BBL (returns to 0x003), JUN, LDM
	require.NoError(t, c.RunSteps(6))
	assert.Equal(t, byte(5), c.Acc)
	assert.Equal(t, uint16(0x021), c.Pc)
	assertInvariants(t, c)
}

func TestHiViaTerminalDevice(t *testing.T) {
	program := []byte{
		0xD4, 0xE1, // LDM 4; WMP
		0xD8, 0xE1, // LDM 8; WMP
		0xD6, 0xE1, // LDM 6; WMP
		0xD9, 0xE1, // LDM 9; WMP
	}
	rom := mem.NewRom(program)
	data := mem.NewDataRam()
	var buf bytes.Buffer
	term := &devices.Terminal{Out: &buf}
	data.AttachPort(0, term)
	bus := mem.NewSimpleBus(rom, data)
	c := New(bus)

	require.NoError(t, c.RunSteps(8))
	assert.Equal(t, "Hi", buf.String())
}

func TestIszLoop(t *testing.T) {
	program := make([]byte, 4096)
	program[0x010] = 0x73 // ISZ 3, 0x10
	program[0x011] = 0x10
	program[0x012] = 0x00 // NOP, fallthrough target

	c, _ := newCpu(program)
	c.Pc = 0x010

	for i := 0; i < 15; i++ {
		require.NoError(t, c.Step())
		assert.Equal(t, uint16(0x010), c.Pc, "iteration %d should branch back", i)
	}
	require.NoError(t, c.Step())
	assert.Equal(t, byte(0), c.R[3])
	assert.Equal(t, uint16(0x012), c.Pc)
}

func TestJinPageCrossing(t *testing.T) {
	c, _ := newCpu(make([]byte, 4096))
	c.Pc = 0x0FF
	c.R[0] = 0xA
	c.R[1] = 0xB

	c.execute(decodeOne(t, 0x31), 0x0FF) // JIN pair 0 (opa=1 -> pair 0)
	assert.Equal(t, uint16(0x1AB), c.Pc)
}

func TestDaaLaw(t *testing.T) {
	cases := []struct {
		acc, cyIn byte
		wantAcc   byte
		wantCy    bool
	}{
		{acc: 0x3, cyIn: 0, wantAcc: 0x3, wantCy: false},
		{acc: 0xA, cyIn: 0, wantAcc: 0x0, wantCy: true},
		{acc: 0x9, cyIn: 1, wantAcc: 0xF, wantCy: true},
		{acc: 0xC, cyIn: 1, wantAcc: 0x2, wantCy: true},
	}
	for _, tc := range cases {
		c, _ := newCpu(nil)
		c.Acc = tc.acc
		c.Cy = tc.cyIn != 0
		c.execute(decodeOne(t, 0xFB), 0)
		assert.Equal(t, tc.wantAcc, c.Acc, "acc=%x cy=%v", tc.acc, tc.cyIn)
		assert.Equal(t, tc.wantCy, c.Cy, "acc=%x cy=%v", tc.acc, tc.cyIn)
	}
}

func TestKbpTable(t *testing.T) {
	cases := map[byte]byte{0x0: 0x0, 0x1: 0x1, 0x2: 0x2, 0x4: 0x3, 0x8: 0x4, 0x3: 0xF, 0xF: 0xF}
	for in, want := range cases {
		c, _ := newCpu(nil)
		c.Acc = in
		c.execute(decodeOne(t, 0xFC), 0)
		assert.Equal(t, want, c.Acc, "kbp(%x)", in)
	}
}

func TestClbIdempotent(t *testing.T) {
	c, _ := newCpu(nil)
	c.Acc, c.Cy = 0xA, true
	c.execute(decodeOne(t, 0xF0), 0)
	first := c.Acc
	c.execute(decodeOne(t, 0xF0), 0)
	assert.Equal(t, first, c.Acc)
	assert.Equal(t, byte(0), c.Acc)
	assert.False(t, c.Cy)
}

func TestCmcInvolution(t *testing.T) {
	c, _ := newCpu(nil)
	c.Cy = true
	c.execute(decodeOne(t, 0xF3), 0)
	c.execute(decodeOne(t, 0xF3), 0)
	assert.True(t, c.Cy)
}

func TestCmaInvolution(t *testing.T) {
	c, _ := newCpu(nil)
	c.Acc = 0x5
	c.execute(decodeOne(t, 0xF4), 0)
	c.execute(decodeOne(t, 0xF4), 0)
	assert.Equal(t, byte(0x5), c.Acc)
}

func TestXchInvolution(t *testing.T) {
	c, _ := newCpu(nil)
	c.Acc = 0x5
	c.R[2] = 0x9
	c.execute(decodeOne(t, 0xB2), 0)
	c.execute(decodeOne(t, 0xB2), 0)
	assert.Equal(t, byte(0x5), c.Acc)
	assert.Equal(t, byte(0x9), c.R[2])
}

func TestRalRarRestoresState(t *testing.T) {
	c, _ := newCpu(nil)
	c.Acc = 0x9
	c.Cy = true
	c.execute(decodeOne(t, 0xF5), 0)
	c.execute(decodeOne(t, 0xF6), 0)
	assert.Equal(t, byte(0x9), c.Acc)
	assert.True(t, c.Cy)
}

func TestAddCarryLaw(t *testing.T) {
	for a := byte(0); a <= 0xF; a++ {
		for b := byte(0); b <= 0xF; b++ {
			for _, cIn := range []bool{false, true} {
				c, _ := newCpu(nil)
				c.Acc = a
				c.R[0] = b
				c.Cy = cIn
				c.execute(decodeOne(t, 0x80), 0)
				carry := 0
				if cIn {
					carry = 1
				}
				want := (int(a) + int(b) + carry) % 16
				wantCy := int(a)+int(b)+carry >= 16
				assert.Equal(t, byte(want), c.Acc)
				assert.Equal(t, wantCy, c.Cy)
			}
		}
	}
}

func TestSubBorrowLaw(t *testing.T) {
	for a := byte(0); a <= 0xF; a++ {
		for b := byte(0); b <= 0xF; b++ {
			for _, cIn := range []bool{false, true} {
				c, _ := newCpu(nil)
				c.Acc = a
				c.R[0] = b
				c.Cy = cIn
				c.execute(decodeOne(t, 0x90), 0)
				carry := 0
				if cIn {
					carry = 1
				}
				want := (int(a) + (15 - int(b)) + carry) % 16
				wantCy := int(a)+(15-int(b))+carry >= 16
				assert.Equal(t, byte(want), c.Acc)
				assert.Equal(t, wantCy, c.Cy)
			}
		}
	}
}

func TestStackWrapsOnFourthCall(t *testing.T) {
	c, _ := newCpu(nil)
	for _, addr := range []uint16{0x100, 0x200, 0x300, 0x400} {
		c.pushStack(addr)
	}
	assert.Equal(t, uint16(0x400), c.popStack())
}

func TestUnknownOpcodeIsNoOpWithCounter(t *testing.T) {
	c, _ := newCpu([]byte{0xFE}) // unassigned F-group slot
	require.NoError(t, c.Step())
	assert.Equal(t, 1, c.UnknownCount)
	assert.Equal(t, byte(0), c.Acc)
}

// decodeOne decodes a single-byte opcode for use directly with c.execute in
// tests that only care about the executed semantics, not Step's fetch/advance.
func decodeOne(t *testing.T, opcode byte) isa.Instruction {
	t.Helper()
	instr, err := isa.Decode(opcode, nil)
	require.NoError(t, err)
	return instr
}
