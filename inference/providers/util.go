// Package providers - Utility functions.
package providers

import (
	"os"
	"runtime"
	"strconv"
)

// SharedLibEnv overrides the shared library location.
const SharedLibEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// GetSharedLibPath returns the path to the ONNX Runtime shared library.
//
// Arguments:
//   - override: An explicit path; used when non-empty.
//
// Returns:
//   - string: override, else $ONNXRUNTIME_SHARED_LIBRARY_PATH, else the
//     bundled third_party library for the current platform.
func GetSharedLibPath(override string) string {
	if override != "" {
		return override
	}
	if env := os.Getenv(SharedLibEnv); env != "" {
		return env
	}
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		return "third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
