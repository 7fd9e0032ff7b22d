package cpu

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"mcs4/isa"
	"mcs4/mem"
)

type model struct {
	cpu *Cpu
	rom *mem.Rom

	prevPc uint16
	err    error
}

// Init performs no setup: the Cpu and its Rom are already constructed and
// loaded by the caller.
func (m model) Init() tea.Cmd {
	return nil
}

// Update steps the Cpu on space or "j", quits on "q".
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case " ", "j":
			m.prevPc = m.cpu.Pc
			if err := m.cpu.Step(); err != nil {
				m.err = err
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

// renderPage renders one 16-byte row of program memory as a line, with the
// byte at Pc bracketed.
func (m model) renderPage(start uint16) string {
	if start%16 != 0 {
		panic("start must be a multiple of 16")
	}
	s := fmt.Sprintf("%03x | ", start)
	for i := uint16(0); i < 16; i++ {
		b := m.rom.ReadByte(start + i)
		if start+i == m.cpu.Pc {
			s += fmt.Sprintf("[%02x] ", b)
		} else {
			s += fmt.Sprintf(" %02x  ", b)
		}
	}
	return s
}

func (m model) status() string {
	regs := make([]string, 16)
	for i, r := range m.cpu.R {
		regs[i] = fmt.Sprintf("%x", r)
	}
	return fmt.Sprintf(`
 PC: %03x (%03x)
ACC: %x
 CY: %v
  R: %s
 SP: %d
 ST: %03x %03x %03x
UNK: %d
`,
		m.cpu.Pc, m.prevPc,
		m.cpu.Acc,
		m.cpu.Cy,
		strings.Join(regs, " "),
		m.cpu.Sp,
		m.cpu.Stack[0], m.cpu.Stack[1], m.cpu.Stack[2],
		m.cpu.UnknownCount,
	)
}

func (m model) pageTable() string {
	header := "adr | "
	for b := range 16 {
		header += fmt.Sprintf("  %01x  ", b)
	}

	rows := []string{header}
	base := m.cpu.Pc &^ 0xFF
	for i := -2; i <= 2; i++ {
		row := int(base) + i*16
		if row < 0 || row >= mem.ProgramSize {
			continue
		}
		rows = append(rows, m.renderPage(uint16(row)))
	}
	return strings.Join(rows, "\n")
}

// View renders the page table, register status, and the decoded instruction
// at the current Pc.
func (m model) View() string {
	opcode := m.rom.ReadByte(m.cpu.Pc)
	next := m.rom.ReadByte((m.cpu.Pc + 1) & 0x0FFF)
	instr, _ := isa.Decode(opcode, &next)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			m.pageTable(),
			m.status(),
		),
		"",
		spew.Sdump(instr),
	)
}

// Debug starts an interactive TUI stepping c one instruction at a time,
// disassembling from rom for display.
func Debug(c *Cpu, rom *mem.Rom) error {
	result, err := tea.NewProgram(model{cpu: c, rom: rom}).Run()
	if err != nil {
		return err
	}
	final := result.(model)
	return final.err
}
