package vm

import "govm/pkg/grid"

// Host service codes for the Interrupt instruction.
const (
	IntPixel   byte = 0x00 // color, linear index
	IntPixelXY byte = 0x01 // color, y, x
)

type interruptHandler func(v *VM) error

var interruptTable = map[byte]interruptHandler{
	IntPixel:   intPixel,
	IntPixelXY: intPixelXY,
}

func (v *VM) interrupt(code byte) error {
	h, ok := interruptTable[code]
	if !ok {
		return newFault(FaultUnknownInterrupt, v.pc, "unknown interrupt 0x%02x", code)
	}
	return h(v)
}

func intPixel(v *VM) error {
	if err := v.need(FaultInterruptArgument, "color", "pixel index"); err != nil {
		return err
	}
	color, idx := v.peek(0), v.peek(1)
	if idx < 0 || idx >= int64(len(v.Framebuffer)) {
		return newFault(FaultPixelOutOfBounds, v.pc, "pixel index %d outside framebuffer of %d", idx, len(v.Framebuffer))
	}
	v.Framebuffer[idx] = uint32(color)
	v.drop(2)
	return nil
}

func intPixelXY(v *VM) error {
	if err := v.need(FaultInterruptArgument, "color", "y position", "x position"); err != nil {
		return err
	}
	color, y, x := v.peek(0), v.peek(1), v.peek(2)
	w, h := int64(v.Display.Width), int64(v.Display.Height)
	if !grid.InBounds(x, y, w, h) {
		return newFault(FaultPixelOutOfBounds, v.pc, "pixel (%d,%d) outside %dx%d display", x, y, w, h)
	}
	idx := grid.GetGridIndex(x, y, w)
	if idx >= int64(len(v.Framebuffer)) {
		return newFault(FaultPixelOutOfBounds, v.pc, "pixel (%d,%d) outside framebuffer of %d", x, y, len(v.Framebuffer))
	}
	v.Framebuffer[idx] = uint32(color)
	v.drop(3)
	return nil
}
