//go:build linux

package system

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

const (
	evKey = 0x01

	// Linux input-event-codes.h
	KeyF4 = 62
)

// WatchExitKey watches Linux evdev devices under /dev/input/event* and invokes
// onExit once when key is pressed. It returns immediately.
//
// It is best-effort: if no input devices are available, it logs and returns.
func WatchExitKey(ctx context.Context, logger Logger, key uint16, onExit func()) {
	if onExit == nil {
		return
	}

	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil || len(paths) == 0 {
		if logger != nil {
			logger.Infof("input", "no evdev devices found for exit key")
		}
		return
	}

	var once sync.Once
	trigger := func() {
		once.Do(func() {
			if logger != nil {
				logger.Infof("input", "exit key %d pressed", key)
			}
			onExit()
		})
	}

	tvSize := binary.Size(unix.Timeval{})
	for _, path := range paths {
		go watchDevice(ctx, path, tvSize, key, trigger)
	}
}

func watchDevice(ctx context.Context, path string, tvSize int, key uint16, trigger func()) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return
	}
	f := os.NewFile(uintptr(fd), path)
	defer f.Close()

	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pollFds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		if _, err := unix.Poll(pollFds, 250); err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if pollFds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return
		}
		if keyPressed(buf[:n], tvSize, key) {
			trigger()
			return
		}
	}
}

// keyPressed reports whether buf, a sequence of input_event records
// (timeval + u16 type + u16 code + s32 value), holds a press of key.
func keyPressed(buf []byte, tvSize int, key uint16) bool {
	eventSize := tvSize + 2 + 2 + 4
	for off := 0; off+eventSize <= len(buf); off += eventSize {
		rec := buf[off : off+eventSize]
		typ := binary.LittleEndian.Uint16(rec[tvSize : tvSize+2])
		code := binary.LittleEndian.Uint16(rec[tvSize+2 : tvSize+4])
		value := int32(binary.LittleEndian.Uint32(rec[tvSize+4 : tvSize+8]))
		if typ == evKey && code == key && value == 1 {
			return true
		}
	}
	return false
}
