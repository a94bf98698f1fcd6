package console

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"

	"github.com/golang/glog"
)

// RunDebugREPL drives the machine interactively instead of through
// the ebiten game loop: single-step, inspect memory and the stack,
// set breakpoints and free-run until one is hit or ctx is cancelled.
// Both stepping and running advance a whole frame at a time, and the
// PC is compared with the breakpoints only between frames, so a run
// stops only when the PC holds a breakpoint address at a frame
// boundary.
func (m *Machine) RunDebugREPL(ctx context.Context) {
	in := bufio.NewReader(os.Stdin)
	breaks := make(map[uint16]struct{})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Printf("%s\n\n", m)
		fmt.Println("(B)reak - add breakpoint")
		fmt.Println("(C)lear - clear breakpoints")
		fmt.Println("(R)un - run to completion or next breakpoint")
		fmt.Println("(S)tep - step one frame")
		fmt.Println("R(e)set - hit the reset button")
		fmt.Println("(M)emory - display a memory range")
		fmt.Println("S(t)ack - show top of the stack")
		fmt.Println("(Q)uit")
		fmt.Print("Choice: ")

		line, err := in.ReadString('\n')
		if err != nil {
			glog.Warningf("debug repl: read failed: %v", err)
			return
		}
		if len(line) == 0 {
			continue
		}

		switch line[0] {
		case 'b', 'B':
			breaks[readAddress(in, "Breakpoint (eg: ff15): ")] = struct{}{}
		case 'c', 'C':
			breaks = make(map[uint16]struct{})
		case 'q', 'Q':
			return
		case 'r', 'R':
			m.runUntilBreak(ctx, breaks)
		case 's', 'S':
			m.Step()
		case 'e', 'E':
			m.Reset()
		case 't', 'T':
			fmt.Println()
			base := m.cpu.StackAddr()
			for i := uint16(0); i < 3 && base+i <= 0x01FF; i++ {
				addr := base + i
				fmt.Printf("0x%04x: 0x%02x ", addr, m.Read(addr))
			}
			fmt.Printf("\n\n")
		case 'm', 'M':
			fmt.Println()
			low := readAddress(in, "Low address (eg f00d): ")
			high := readAddress(in, "High address (eg beef): ")
			fmt.Println()

			col := 0
			for i := low; ; i++ {
				fmt.Printf("0x%04x: 0x%02x ", i, m.Read(i))
				col++
				if col%5 == 0 {
					fmt.Println()
				}
				if i == high || i == math.MaxUint16 {
					break
				}
			}
			fmt.Printf("\n\n")
		}
	}
}

func (m *Machine) runUntilBreak(ctx context.Context, breaks map[uint16]struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		m.Step()
		if _, hit := breaks[m.cpu.PC()]; hit {
			glog.Infof("breakpoint hit at pc=%#04x", m.cpu.PC())
			return
		}
	}
}

func readAddress(in *bufio.Reader, prompt string) uint16 {
	fmt.Print(prompt)
	line, _ := in.ReadString('\n')
	var a uint16
	fmt.Sscanf(line, "%04x", &a)
	return a
}
