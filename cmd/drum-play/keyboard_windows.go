//go:build windows

package main

import (
	"errors"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// keyboard owns raw-mode stdin and feeds single key bytes to the main
// loop. The Windows console has no non-blocking read, so the reader may
// stay parked in Read until one more key arrives; Stop restores the
// terminal without waiting for it.
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

	oldState, err := term.MakeRaw(fd)
	if err != nil {
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

		n, err := os.Stdin.Read(buf)
		if n > 0 {
			select {
			case k.keys <- buf[0]:
			case <-k.stopCh:
				return
			}
		}
		if err != nil {
			return
		}
		if n == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// Keys returns the key stream. The channel closes when stdin ends or the
// keyboard is stopped.
func (k *keyboard) Keys() <-chan byte { return k.keys }

// Stop restores stdin to cooked mode. Safe to call more than once.
func (k *keyboard) Stop() {
	k.stopped.Do(func() {
		close(k.stopCh)
		_ = term.Restore(k.fd, k.oldState)
	})
}
