// Package devices holds representative port consumers: concrete IoDevice
// implementations external to the CPU and memory core.
package devices

import (
	"fmt"
	"io"
	"os"

	"mcs4/mem"
)

// Terminal maintains a half-byte latch. The first WMP captures the low
// nibble; the second assembles a full byte as (first<<4)|second and emits
// it as a character to Out. The latch resets after each emission.
type Terminal struct {
	Out  io.Writer
	half byte
	have bool
}

// NewTerminal returns a Terminal writing to os.Stdout.
func NewTerminal() *Terminal {
	return &Terminal{Out: os.Stdout}
}

var _ mem.IoDevice = (*Terminal)(nil)

func (t *Terminal) Write4(value byte) {
	value &= 0xF
	if !t.have {
		t.half = value
		t.have = true
		return
	}
	b := (t.half << 4) | value
	t.have = false
	fmt.Fprintf(t.Out, "%c", b)
}

// Read4 always reads as 0; the terminal is a write-only sink.
func (t *Terminal) Read4() byte { return 0 }
