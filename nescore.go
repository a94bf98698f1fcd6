// Command nescore runs an iNES ROM against the emulator core.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bdwalton/nescore/console"
	"github.com/bdwalton/nescore/internal/config"
	"github.com/bdwalton/nescore/mappers"
	"github.com/bdwalton/nescore/nesrom"
	"github.com/golang/glog"
	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/sync/errgroup"
)

var (
	romFile    = flag.String("nes_rom", "", "Path to an iNES ROM to run.")
	configFile = flag.String("config", "", "Path to a JSON config file; defaults are used if empty.")
	dump       = flag.Bool("dump", false, "Print the ROM header and exit without running it.")
	debug      = flag.Bool("debug", false, "Drop into the interactive debugger instead of the GUI.")
)

// displaySink holds the most recently composited frame; Draw reads it
// back out on ebiten's render goroutine.
type displaySink struct {
	mu  sync.Mutex
	img *image.RGBA
}

func (d *displaySink) Present(frame *image.RGBA) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.img = frame
}

func (d *displaySink) snapshot() *image.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.img
}

type game struct {
	*console.Machine
	sink *displaySink
}

func (g *game) Draw(screen *ebiten.Image) {
	if img := g.sink.snapshot(); img != nil {
		screen.WritePixels(img.Pix)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, "Invalid or unsupported rom.")
	glog.Errorf(format, args...)
	os.Exit(1)
}

func main() {
	flag.Parse()
	defer glog.Flush()

	if *romFile == "" {
		fail("no -nes_rom given")
	}

	rom, err := nesrom.Load(*romFile)
	if err != nil {
		fail("loading %s: %v", *romFile, err)
	}

	if *dump {
		fmt.Println(rom)
		return
	}

	m, err := mappers.Get(rom)
	if err != nil {
		fail("getting mapper for %s: %v", *romFile, err)
	}

	cfg := config.New()
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
		if err != nil {
			glog.Fatalf("loading config %s: %v", *configFile, err)
		}
	}

	sink := &displaySink{}
	machine := console.New(m, sink)
	machine.Reset() // load success implies a reset

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *debug || cfg.Debug.EnableREPL {
		machine.RunDebugREPL(ctx)
		return
	}

	w, h := cfg.WindowSize()
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle("nescore")
	ebiten.SetFullscreen(cfg.Window.Fullscreen)
	if cfg.Window.Resizable {
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	} else {
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeDisabled)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel() // unblock the signal watcher once the window closes
		return ebiten.RunGame(&game{Machine: machine, sink: sink})
	})
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			return fmt.Errorf("received shutdown signal")
		case <-gctx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil {
		glog.Errorf("run: %v", err)
	}
}
