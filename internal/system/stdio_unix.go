//go:build unix

package system

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// RedirectStdIO points the stdout and stderr file descriptors at path so panics
// and prints from any goroutine land in the file, even while the console is
// in graphics mode.
func RedirectStdIO(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open stdio log: %w", err)
	}
	defer f.Close()

	for _, std := range []*os.File{os.Stdout, os.Stderr} {
		if err := unix.Dup2(int(f.Fd()), int(std.Fd())); err != nil {
			return fmt.Errorf("dup2 onto fd %d: %w", std.Fd(), err)
		}
	}
	return nil
}
