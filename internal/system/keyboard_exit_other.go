//go:build !linux

package system

import "context"

const KeyF4 = 62

// WatchExitKey is a no-op outside linux.
func WatchExitKey(ctx context.Context, logger Logger, key uint16, onExit func()) {
	if logger != nil {
		logger.Infof("input", "exit key watch not supported on this platform")
	}
}
