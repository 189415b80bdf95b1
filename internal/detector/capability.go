package detector

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// CaptureDisplayMedia is the screen-capture acquisition entry point.
const CaptureDisplayMedia = "display_media"

var (
	ErrUnknownCapability  = errors.New("unknown capability")
	ErrAlreadyIntercepted = errors.New("capability already intercepted")
	ErrCaptureBlocked     = errors.New("screen capture is blocked during the exam")
)

// EntryPoint is a capability the client must acquire through the server.
type EntryPoint func(ctx context.Context) error

// CapabilityTable holds the capability entry points of one session.
// It is owned by a single session and dies with it.
type CapabilityTable struct {
	mu          sync.Mutex
	entries     map[string]EntryPoint
	intercepted map[string]EntryPoint
}

// NewCapabilityTable returns a table with the default, permissive entry points.
func NewCapabilityTable() *CapabilityTable {
	return &CapabilityTable{
		entries: map[string]EntryPoint{
			CaptureDisplayMedia: func(context.Context) error { return nil },
		},
		intercepted: make(map[string]EntryPoint),
	}
}

// Invoke calls the current entry point for name.
func (t *CapabilityTable) Invoke(ctx context.Context, name string) error {
	t.mu.Lock()
	fn, ok := t.entries[name]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	return fn(ctx)
}

// Intercept replaces the entry point for name and returns a release func that
// restores the original. Release is idempotent.
func (t *CapabilityTable) Intercept(name string, replacement EntryPoint) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	original, ok := t.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	if _, busy := t.intercepted[name]; busy {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyIntercepted, name)
	}

	t.intercepted[name] = original
	t.entries[name] = replacement

	var once sync.Once
	release := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.entries[name] = t.intercepted[name]
			delete(t.intercepted, name)
		})
	}
	return release, nil
}

// Intercepted reports whether name is currently patched.
func (t *CapabilityTable) Intercepted(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.intercepted[name]
	return ok
}
