package supervisor

import (
	"os"
	"strconv"

	"github.com/saneproj/sane-net/internal/logger"
)

// writePIDFile records the current process ID at path (spec §4.6
// "standalone": "write pidfile"). A blank path is a no-op.
func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

// removePIDFile deletes the pidfile written by writePIDFile, logging
// (rather than failing) if removal fails; a file that is already gone is
// not reported.
func removePIDFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove pid file", "path", path, "error", err)
	}
}
