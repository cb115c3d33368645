package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"

	"govm/pkg/grid"
	"govm/pkg/runner"
	"govm/pkg/utils"
	"govm/pkg/vm"
)

const (
	displayWidth  = 64
	displayHeight = 64
	statusHeight  = 18
)

type Game struct {
	display vm.DisplayInfo
	scale   int
	frames  <-chan []uint32
	done    <-chan error
	cancel  context.CancelFunc

	frame       []uint32
	graphicsImg *ebiten.Image
	status      string
	statusColor color.RGBA
	hover       string
	shots       int
}

func newGame(display vm.DisplayInfo, scale int, frames <-chan []uint32, done <-chan error, cancel context.CancelFunc) *Game {
	return &Game{
		display:     display,
		scale:       scale,
		frames:      frames,
		done:        done,
		cancel:      cancel,
		frame:       make([]uint32, display.Pixels()),
		status:      "running",
		statusColor: color.RGBA{0, 220, 90, 255},
	}
}

// pollFrames keeps the newest snapshot without blocking.
func (g *Game) pollFrames() {
	for {
		select {
		case f, ok := <-g.frames:
			if !ok {
				g.frames = nil
				return
			}
			g.frame = f
		default:
			return
		}
	}
}

// pollDone records how the runner finished.
func (g *Game) pollDone() {
	select {
	case err := <-g.done:
		g.done = nil
		switch {
		case err == nil:
			g.status = "halted"
			g.statusColor = color.RGBA{190, 190, 190, 255}
		case errors.Is(err, context.Canceled):
			g.status = "stopped"
			g.statusColor = color.RGBA{190, 190, 190, 255}
		default:
			g.status = err.Error()
			g.statusColor = color.RGBA{230, 60, 60, 255}
		}
	default:
	}
}

func (g *Game) Update() error {
	g.pollFrames()
	g.pollDone()

	g.hover = g.hoverText(ebiten.CursorPosition())

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.cancel()
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.shots++
		name := fmt.Sprintf("screenshot_%03d.png", g.shots)
		if err := vm.WritePNG(name, g.frame, g.display); err != nil {
			log.Printf("screenshot failed: %v", err)
		} else {
			log.Printf("saved %s", name)
		}
	}
	return nil
}

// hoverText describes the display cell under the cursor at (cx, cy).
func (g *Game) hoverText(cx, cy int) string {
	x, y := int64(cx/g.scale), int64(cy/g.scale)
	w, h := int64(g.display.Width), int64(g.display.Height)
	if cx < 0 || cy < 0 || !grid.InBounds(x, y, w, h) {
		return ""
	}
	return fmt.Sprintf("(%d,%d) 0x%08X", x, y, g.frame[grid.GetGridIndex(x, y, w)])
}

func (g *Game) drawBitmap(screen *ebiten.Image) {
	if g.graphicsImg == nil {
		g.graphicsImg = ebiten.NewImage(g.display.Width, g.display.Height)
	}
	g.graphicsImg.WritePixels(vm.FramebufferRGBA(g.frame))

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(g.scale), float64(g.scale))
	screen.DrawImage(g.graphicsImg, op)
}

func (g *Game) drawStatusLine(screen *ebiten.Image) {
	y := g.display.Height * g.scale
	w := g.display.Width * g.scale
	ebitenutil.DrawRect(screen, 0, float64(y), float64(w), statusHeight, color.RGBA{0, 0, 0, 255})
	text.Draw(screen, g.status, basicfont.Face7x13, 4, y+13, g.statusColor)
	if g.hover != "" {
		hx := w - text.BoundString(basicfont.Face7x13, g.hover).Dx() - 4
		text.Draw(screen, g.hover, basicfont.Face7x13, hx, y+13, color.RGBA{190, 190, 190, 255})
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.drawBitmap(screen)
	g.drawStatusLine(screen)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.display.Width * g.scale, g.display.Height*g.scale + statusHeight
}

func main() {
	scale := flag.Int("scale", 8, "window pixels per display cell")
	hz := flag.Int("hz", 60, "display snapshots per second")
	showAsm := flag.Bool("show-asm", false, "print the generated assembly for C sources")
	flag.Parse()

	if flag.NArg() != 1 || *scale < 1 || *hz < 1 {
		fmt.Fprintln(os.Stderr, "usage: desktop [-scale N] [-hz N] [-show-asm] <program.c|program.asm|program.bin>")
		os.Exit(2)
	}

	code, assembly, err := utils.LoadProgram(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to load program: %v", err)
	}
	if *showAsm && assembly != "" {
		fmt.Print("Generated Assembly:\n", assembly, "\n")
	}

	display := vm.DisplayInfo{Width: displayWidth, Height: displayHeight}
	machine, err := vm.New(code, nil, display)
	if err != nil {
		log.Fatalf("Failed to create VM: %v", err)
	}

	r := runner.New(machine, runner.Options{
		FrameInterval: time.Second / time.Duration(*hz),
		Logger:        log.Default(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	game := newGame(display, *scale, r.Frames(), done, cancel)

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	w, h := game.Layout(0, 0)
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle("GoVM Desktop")
	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
	cancel()
}
