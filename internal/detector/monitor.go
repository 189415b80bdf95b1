package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Armer is a detector that must acquire a capability while the session runs.
type Armer interface {
	Arm(table *CapabilityTable, publish func(Outcome)) (release func(), err error)
}

// ScreenCapture intercepts the display-media entry point: every acquisition
// attempt is blocked and reported.
type ScreenCapture struct{}

func (ScreenCapture) Capability() Capability { return CapabilityScreenCaptureAttempt }

func (ScreenCapture) Observes(SignalKind) bool { return false }

func (ScreenCapture) Inspect(Signal) Outcome { return Outcome{} }

func (ScreenCapture) Arm(table *CapabilityTable, publish func(Outcome)) (func(), error) {
	return table.Intercept(CaptureDisplayMedia, func(context.Context) error {
		publish(Outcome{Suppress: true, Reason: model.ReasonScreenshot, Detail: "screen capture requested"})
		return ErrCaptureBlocked
	})
}

// Defaults returns one detector per capability.
func Defaults(policy KeyPolicy) []Detector {
	return []Detector{
		TabHidden{},
		WindowBlur{},
		NewForbiddenKey(policy),
		ClipboardImage{},
		ScreenCapture{},
		FullscreenExit{},
	}
}

// Sink receives published violations. It must not block.
type Sink func(model.Violation)

// Monitor fans browser signals out to its detectors and publishes violations.
type Monitor struct {
	detectors []Detector
	table     *CapabilityTable
	sink      Sink
	now       func() time.Time

	mu       sync.Mutex
	armed    bool
	releases []func()
}

// NewMonitor creates a disarmed monitor over the given detectors.
func NewMonitor(table *CapabilityTable, sink Sink, now func() time.Time, detectors ...Detector) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		detectors: detectors,
		table:     table,
		sink:      sink,
		now:       now,
	}
}

// Arm activates every detector. If any capability cannot be acquired, those
// already acquired are released before returning.
func (m *Monitor) Arm() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.armed {
		return nil
	}

	for _, d := range m.detectors {
		armer, ok := d.(Armer)
		if !ok {
			continue
		}
		capability := d.Capability()
		release, err := armer.Arm(m.table, func(out Outcome) { m.publish(capability, out) })
		if err != nil {
			m.releaseLocked()
			return fmt.Errorf("arm %s: %w", capability, err)
		}
		m.releases = append(m.releases, release)
	}
	m.armed = true
	return nil
}

// Dispatch routes a signal to every detector observing its kind. Each
// violating detector publishes its own violation; the merged outcome is returned
// so the caller can apply suppression. A disarmed monitor ignores signals.
func (m *Monitor) Dispatch(sig Signal) Outcome {
	m.mu.Lock()
	armed := m.armed
	m.mu.Unlock()
	if !armed {
		return Outcome{}
	}

	var merged Outcome
	for _, d := range m.detectors {
		if !d.Observes(sig.Kind) {
			continue
		}
		out := d.Inspect(sig)
		if out.Violates() {
			m.publish(d.Capability(), out)
		}
		merged = merge(merged, out)
	}
	return merged
}

func (m *Monitor) publish(capability Capability, out Outcome) {
	if !out.Violates() || m.sink == nil {
		return
	}
	m.mu.Lock()
	armed := m.armed
	m.mu.Unlock()
	if !armed {
		return
	}
	m.sink(model.Violation{
		Capability: string(capability),
		Reason:     out.Reason,
		Detail:     out.Detail,
		At:         m.now(),
	})
}

// Armed reports whether detectors are active.
func (m *Monitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

// Disarm deregisters every detector and restores intercepted capabilities.
// Safe to call repeatedly.
func (m *Monitor) Disarm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
	m.armed = false
}

func (m *Monitor) releaseLocked() {
	for i := len(m.releases) - 1; i >= 0; i-- {
		m.releases[i]()
	}
	m.releases = nil
}
