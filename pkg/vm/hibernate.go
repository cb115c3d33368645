package vm

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// humanReadableState is the JSON-serializable snapshot of the machine's
// control state. Memory and the framebuffer travel as separate binary entries.
type humanReadableState struct {
	PC          uint64       `json:"pc"`
	Paused      bool         `json:"paused"`
	Steps       uint64       `json:"steps"`
	ProgramSize int          `json:"program_size"`
	Stack       []int64      `json:"stack"`
	CallStack   []uint64     `json:"call_stack"`
	Display     displayState `json:"display"`
	Fault       *faultState  `json:"fault,omitempty"`
}

type displayState struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type faultState struct {
	Kind    FaultKind `json:"kind"`
	Message string    `json:"message"`
	Addr    uint64    `json:"addr"`
}

// HibernateToBytes serialises the complete machine into an in-memory ZIP
// archive: vm_state.json, memory.bin and framebuffer.bin.
func (v *VM) HibernateToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	state := humanReadableState{
		PC:          v.pc,
		Paused:      v.Paused,
		Steps:       v.Steps,
		ProgramSize: v.programSize,
		Stack:       append([]int64{}, v.Stack...),
		CallStack:   make([]uint64, len(v.CallStack)),
		Display:     displayState{Width: v.Display.Width, Height: v.Display.Height},
	}
	for i, f := range v.CallStack {
		state.CallStack[i] = f.ReturnAddr
	}
	if v.Fault != nil {
		state.Fault = &faultState{Kind: v.Fault.Kind, Message: v.Fault.Message, Addr: v.Fault.Addr}
	}

	jsonData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal vm_state: %w", err)
	}
	if err := writeZipEntry(zw, "vm_state.json", jsonData); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "memory.bin", v.Memory[:]); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "framebuffer.bin", uint32SliceToLE(v.Framebuffer)); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreFromBytes rebuilds a machine from an archive produced by
// HibernateToBytes.
func RestoreFromBytes(data []byte) (*VM, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	fileMap := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileMap[f.Name] = f
	}

	jsonData, err := readZipEntry(fileMap, "vm_state.json")
	if err != nil {
		return nil, err
	}
	var state humanReadableState
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return nil, fmt.Errorf("unmarshal vm_state: %w", err)
	}

	display := DisplayInfo{Width: state.Display.Width, Height: state.Display.Height}
	if err := display.Validate(); err != nil {
		return nil, err
	}
	fbData, err := readZipEntry(fileMap, "framebuffer.bin")
	if err != nil {
		return nil, err
	}
	if len(fbData) != display.Pixels()*4 {
		return nil, fmt.Errorf("%w: framebuffer.bin holds %d bytes for %dx%d", ErrDisplaySize, len(fbData), display.Width, display.Height)
	}
	if state.ProgramSize < 0 || state.ProgramSize > MemorySize {
		return nil, fmt.Errorf("%w: program_size %d", ErrProgramTooLarge, state.ProgramSize)
	}

	v, err := New(nil, nil, display)
	if err != nil {
		return nil, err
	}
	leToUint32Slice(fbData, v.Framebuffer)
	v.pc = state.PC
	v.Paused = state.Paused
	v.Steps = state.Steps
	v.programSize = state.ProgramSize
	v.Stack = state.Stack
	for _, addr := range state.CallStack {
		v.CallStack = append(v.CallStack, StackFrame{ReturnAddr: addr})
	}
	if state.Fault != nil {
		v.Fault = &Fault{Kind: state.Fault.Kind, Message: state.Fault.Message, Addr: state.Fault.Addr}
	}

	memData, err := readZipEntry(fileMap, "memory.bin")
	if err != nil {
		return nil, err
	}
	if len(memData) != MemorySize {
		return nil, fmt.Errorf("memory.bin holds %d bytes, want %d", len(memData), MemorySize)
	}
	copy(v.Memory[:], memData)

	return v, nil
}

// HibernateToFile writes the hibernation archive to the given file path.
func (v *VM) HibernateToFile(path string) error {
	data, err := v.HibernateToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RestoreFromFile reads a hibernation archive from the given file path.
func RestoreFromFile(path string) (*VM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return RestoreFromBytes(data)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("zip entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %q: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func uint32SliceToLE(src []uint32) []byte {
	out := make([]byte, len(src)*4)
	for i, val := range src {
		binary.LittleEndian.PutUint32(out[i*4:], val)
	}
	return out
}

func leToUint32Slice(src []byte, dst []uint32) {
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(src[i*4:])
	}
}
