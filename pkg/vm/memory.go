package vm

import "encoding/binary"

const (
	// MemorySize is the fixed capacity of the address space. The program
	// image occupies the low bytes; the remainder is zeroed headroom.
	MemorySize = 65536

	// Stores into [DisplayBase, DisplayEnd) are redirected to the
	// framebuffer, one cell per byte address.
	DisplayBase = 0x8000
	DisplayEnd  = 0x9000
)

// InDisplayWindow reports whether addr falls inside the memory-mapped display.
func InDisplayWindow(addr int64) bool {
	return addr >= DisplayBase && addr < DisplayEnd
}

// BroadcastByte replicates val into all four channels of a 32-bit pixel.
func BroadcastByte(val byte) uint32 {
	v := uint32(val)
	return v | v<<8 | v<<16 | v<<24
}

// ReadByte reads one byte of plain memory. The display window reads the
// underlying memory, not the framebuffer.
func (v *VM) ReadByte(addr int64) (byte, error) {
	if addr < 0 || addr >= MemorySize {
		return 0, newFault(FaultAddressOutOfBounds, v.pc, "load from 0x%x out of bounds", addr)
	}
	return v.Memory[addr], nil
}

// WriteByte stores val at addr, honouring the display alias.
func (v *VM) WriteByte(addr int64, val byte) error {
	if InDisplayWindow(addr) {
		cell := addr - DisplayBase
		if cell >= int64(len(v.Framebuffer)) {
			return newFault(FaultAddressOutOfBounds, v.pc, "display cell %d beyond framebuffer of %d", cell, len(v.Framebuffer))
		}
		v.Framebuffer[cell] = BroadcastByte(val)
		return nil
	}
	if addr < 0 || addr >= MemorySize {
		return newFault(FaultAddressOutOfBounds, v.pc, "store to 0x%x out of bounds", addr)
	}
	v.Memory[addr] = val
	return nil
}

func (v *VM) readImmediate64() (int64, error) {
	start := v.pc + 1
	if start+8 > MemorySize {
		return 0, newFault(FaultOperandOutOfBounds, v.pc, "64-bit operand out of bounds")
	}
	return int64(binary.LittleEndian.Uint64(v.Memory[start : start+8])), nil
}

func (v *VM) readImmediate8() (byte, error) {
	start := v.pc + 1
	if start >= MemorySize {
		return 0, newFault(FaultOperandOutOfBounds, v.pc, "8-bit operand out of bounds")
	}
	return v.Memory[start], nil
}
