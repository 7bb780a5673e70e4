//go:build silero

package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ortLibFilename is the platform-specific ONNX Runtime shared library name.
func ortLibFilename() string {
	switch runtime.GOOS {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}

// ortLibCandidates lists the relative paths a "lib/<goos>-<goarch>/<file>"
// layout might live at, in priority order: beside the binary, then one
// directory up (a bin/ + lib/ sibling layout).
func ortLibCandidates() []string {
	platformDir := filepath.Join("lib", runtime.GOOS+"-"+runtime.GOARCH)
	filename := ortLibFilename()
	return []string{
		filepath.Join(platformDir, filename),
		filepath.Join("..", platformDir, filename),
	}
}

// resolveORTLibPath locates the ONNX Runtime shared library on disk.
//
// VAD_ORT_LIB_PATH, if set, always wins. Otherwise the search walks
// ortLibCandidates() relative to the running executable's directory and,
// only when VAD_DEV_MODE=1, relative to the current working directory.
// CWD lookup stays opt-in: resolving a shared library from a writable
// working directory by default would let an attacker-controlled cwd load
// arbitrary code into the process.
func resolveORTLibPath() (string, error) {
	if override := os.Getenv("VAD_ORT_LIB_PATH"); override != "" {
		return validateLibFile(override)
	}

	candidates := ortLibCandidates()

	if exePath, err := os.Executable(); err == nil {
		if found, ok := firstExisting(filepath.Dir(exePath), candidates); ok {
			return found, nil
		}
	}

	if os.Getenv("VAD_DEV_MODE") == "1" {
		if cwd, err := os.Getwd(); err == nil {
			if found, ok := firstExisting(cwd, candidates); ok {
				return found, nil
			}
		}
	}

	return "", fmt.Errorf("ort: shared library %q not found under lib/<os>-<arch>/ relative to the executable (set VAD_ORT_LIB_PATH to override, or VAD_DEV_MODE=1 to also search the working directory)", ortLibFilename())
}

// firstExisting joins base with each candidate in order and returns the
// first one that exists on disk.
func firstExisting(base string, candidates []string) (string, bool) {
	for _, rel := range candidates {
		path := filepath.Join(base, rel)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// validateLibFile confirms an explicit override path exists and names a
// regular file rather than a directory.
func validateLibFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("ort: VAD_ORT_LIB_PATH=%q does not exist", path)
	}
	if info.IsDir() {
		return "", fmt.Errorf("ort: VAD_ORT_LIB_PATH=%q is a directory, expected a file", path)
	}
	return path, nil
}
