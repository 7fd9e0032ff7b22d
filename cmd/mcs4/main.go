// Command mcs4 runs the emulator core against a ROM image supplied on disk
// or a built-in demo program.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mcs4/cpu"
	"mcs4/devices"
	"mcs4/mem"
)

// demoROM mirrors the call/return worked example: LDM 0; JMS 0x010; JUN
// 0x020; ...; 010: IAC; BBL 0; ...; 020: LDM 5.
var demoROM = func() []byte {
	rom := make([]byte, 0x021)
	rom[0x000] = 0xD0 // LDM 0
	rom[0x001] = 0x50 // JMS 0x010
	rom[0x002] = 0x10
	rom[0x003] = 0x40 // JUN 0x020
	rom[0x004] = 0x20
	rom[0x010] = 0xF2 // IAC
	rom[0x011] = 0xC0 // BBL 0
	rom[0x020] = 0xD5 // LDM 5
	return rom
}()

func main() {
	var romPath string
	var steps int
	var deviceKinds []string
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "mcs4",
		Short: "mcs4 emulates an MCS-4-style 4-bit microprocessor",
		RunE: func(cmd *cobra.Command, args []string) error {
			rom, err := loadROM(romPath)
			if err != nil {
				return fmt.Errorf("mcs4: %w", err)
			}

			data := mem.NewDataRam()
			if err := attachDevices(data, deviceKinds); err != nil {
				return fmt.Errorf("mcs4: %w", err)
			}

			bus := mem.NewSimpleBus(rom, data)
			c := cpu.New(bus)

			if debug {
				return cpu.Debug(c, rom)
			}

			if err := c.RunSteps(steps); err != nil {
				return fmt.Errorf("mcs4: %w", err)
			}
			return nil
		},
	}

	rootCmd.Flags().StringVar(&romPath, "rom", "", "path to a raw binary ROM image (default: built-in demo)")
	rootCmd.Flags().IntVar(&steps, "steps", 35, "number of steps to execute")
	rootCmd.Flags().StringArrayVar(&deviceKinds, "device", nil, "attach a device to the data chip's port (repeatable; recognized: terminal)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "start an interactive step debugger instead of running to completion")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadROM(path string) (*mem.Rom, error) {
	if path == "" {
		return mem.NewRom(demoROM), nil
	}
	return mem.NewRomFromFile(path)
}

func attachDevices(data *mem.DataRam, kinds []string) error {
	for i, kind := range kinds {
		switch kind {
		case "terminal":
			data.AttachPort(i%mem.ChipsPerBank, devices.NewTerminal())
		default:
			return fmt.Errorf("unrecognized device kind %q", kind)
		}
	}
	return nil
}
