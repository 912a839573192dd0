//go:build !windows

package main

import (
	"errors"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

// keyboard owns raw-mode stdin and feeds single key bytes to the main
// loop. Stop restores the terminal; it must run before the process exits
// or the shell is left in raw mode.
type keyboard struct {
	fd       int
	oldState *term.State
	keys     chan byte
	stopCh   chan struct{}
	done     chan struct{}
	stopped  sync.Once
}

func startKeyboard() (*keyboard, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("stdin is not a terminal")
	}

	// Raw mode disables OS-level echo and line buffering so single key
	// presses arrive immediately.
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	if err := syscall.SetNonblock(fd, true); err != nil {
		_ = term.Restore(fd, oldState)
		return nil, err
	}

	k := &keyboard{
		fd:       fd,
		oldState: oldState,
		keys:     make(chan byte, 16),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go k.loop()
	return k, nil
}

func (k *keyboard) loop() {
	defer close(k.done)
	defer close(k.keys)
	buf := make([]byte, 1)

	for {
		select {
		case <-k.stopCh:
			return
		default:
		}

		n, err := syscall.Read(k.fd, buf)
		if n > 0 {
			select {
			case k.keys <- buf[0]:
			case <-k.stopCh:
				return
			}
			continue
		}
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if err != nil || n == 0 {
			return
		}
	}
}

// Keys returns the key stream. The channel closes when stdin ends or the
// keyboard is stopped.
func (k *keyboard) Keys() <-chan byte { return k.keys }

// Stop terminates the reader goroutine and restores stdin to blocking
// cooked mode. Safe to call more than once.
func (k *keyboard) Stop() {
	k.stopped.Do(func() {
		close(k.stopCh)
		<-k.done
		_ = syscall.SetNonblock(k.fd, false)
		_ = term.Restore(k.fd, k.oldState)
	})
}
