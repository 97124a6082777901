/* pkg/logger/paths.go */

package logger

import (
	"os"
	"path/filepath"
	"runtime"
)

const logFileName = "borgmatic-exporter.log"

// PlatformLogPaths returns candidate log paths in order of priority for the platform.
func PlatformLogPaths() []string {
	if p := os.Getenv("BORGMATIC_EXPORTER_LOG_FILE"); p != "" {
		return []string{p}
	}

	switch runtime.GOOS {
	case "linux":
		return []string{
			filepath.Join("/var/log/borgmatic-exporter", logFileName),
			xdgStatePath(logFileName),
			filepath.Join(os.TempDir(), "borgmatic-exporter", logFileName),
		}
	case "darwin":
		return []string{
			xdgStatePath(logFileName),
			filepath.Join(os.TempDir(), "borgmatic-exporter", logFileName),
		}
	default:
		return []string{filepath.Join(".", logFileName)}
	}
}

func xdgStatePath(name string) string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "borgmatic-exporter", name)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "borgmatic-exporter", name)
	}
	return filepath.Join(home, ".local", "state", "borgmatic-exporter", name)
}
