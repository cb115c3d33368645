package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"govm/pkg/asm"
	"govm/pkg/compiler"
)

// GetPathInfo resolves relPath to an absolute path and its directory.
func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}
	parentDir = filepath.Dir(fullPath)
	return fullPath, parentDir, nil
}

// LoadProgram reads a program image from path. C sources (.c) are compiled,
// assembly sources (.asm, .s) are assembled and anything else is loaded
// verbatim as a binary image. The generated assembly is returned for C
// sources when available.
func LoadProgram(path string) (code []byte, assembly string, err error) {
	fullPath, _, err := GetPathInfo(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %q: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(fullPath)) {
	case ".c":
		asmText, mc, err := compiler.Compile(string(data))
		if asmText != nil {
			assembly = *asmText
		}
		if err != nil {
			return nil, assembly, fmt.Errorf("compilation failed: %w", err)
		}
		return mc, assembly, nil
	case ".asm", ".s":
		mc, _, err := asm.Assemble(string(data))
		if err != nil {
			return nil, "", fmt.Errorf("assembly failed: %w", err)
		}
		return mc, string(data), nil
	}
	return data, "", nil
}
