// Package scanner delivers decoded wristband codes to the session controller.
package scanner

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned when codes are pushed into a stopped feed.
var ErrStopped = errors.New("scanner stopped")

// Scanner is a source of decoded codes. While paused, codes are discarded so
// a result on screen is never replaced by a stray scan.
type Scanner interface {
	Codes() <-chan string
	Pause()
	Resume()
	Paused() bool
	Stop()
}

// Feed is a channel-backed scanner. A camera or NFC bridge, or the HTTP API,
// pushes raw codes into it.
type Feed struct {
	mu      sync.Mutex
	paused  bool
	stopped bool
	codes   chan string
	dropped int
}

func NewFeed(buffer int) *Feed {
	if buffer < 1 {
		buffer = 1
	}
	return &Feed{codes: make(chan string, buffer)}
}

func (f *Feed) Codes() <-chan string { return f.codes }

// Push offers a code. It returns false when the code was dropped because the
// feed is paused or its buffer is full.
func (f *Feed) Push(ctx context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return false, ErrStopped
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if f.paused {
		f.dropped++
		return false, nil
	}
	select {
	case f.codes <- code:
		return true, nil
	default:
		f.dropped++
		return false, nil
	}
}

func (f *Feed) Pause() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
}

func (f *Feed) Resume() {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
}

func (f *Feed) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

// Dropped counts codes discarded while paused or full.
func (f *Feed) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Stop closes the code channel. Further pushes fail.
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	f.stopped = true
	close(f.codes)
}
