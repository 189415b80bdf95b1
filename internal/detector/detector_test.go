package detector_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stemsi/exstem-proctor/internal/detector"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu         sync.Mutex
	violations []model.Violation
}

func (r *recorder) sink(v model.Violation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations = append(r.violations, v)
}

func (r *recorder) all() []model.Violation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Violation(nil), r.violations...)
}

func newArmedMonitor(t *testing.T) (*detector.Monitor, *detector.CapabilityTable, *recorder) {
	t.Helper()
	rec := &recorder{}
	table := detector.NewCapabilityTable()
	m := detector.NewMonitor(table, rec.sink, nil, detector.Defaults(detector.DefaultKeyPolicy())...)
	require.NoError(t, m.Arm())
	t.Cleanup(m.Disarm)
	return m, table, rec
}

func TestMonitor_SignalsMapToReasons(t *testing.T) {
	cases := []struct {
		name     string
		sig      detector.Signal
		reason   model.FinalizeReason
		suppress bool
	}{
		{"tab hidden", detector.Signal{Kind: detector.SignalVisibilityChange, Hidden: true}, model.ReasonFocus, false},
		{"tab visible", detector.Signal{Kind: detector.SignalVisibilityChange, Hidden: false}, "", false},
		{"blur", detector.Signal{Kind: detector.SignalBlur}, model.ReasonFocus, false},
		{"fullscreen exit", detector.Signal{Kind: detector.SignalFullscreenChange, Fullscreen: false}, model.ReasonFullscreen, false},
		{"fullscreen enter", detector.Signal{Kind: detector.SignalFullscreenChange, Fullscreen: true}, "", false},
		{"print screen", detector.Signal{Kind: detector.SignalKeyDown, Key: "PrintScreen"}, model.ReasonScreenshot, true},
		{"mac screenshot", detector.Signal{Kind: detector.SignalKeyDown, Key: "4", Shift: true, Meta: true}, model.ReasonScreenshot, true},
		{"ctrl c", detector.Signal{Kind: detector.SignalKeyDown, Key: "c", Ctrl: true}, "", true},
		{"devtools", detector.Signal{Kind: detector.SignalKeyDown, Key: "i", Ctrl: true, Shift: true}, "", true},
		{"plain key", detector.Signal{Kind: detector.SignalKeyDown, Key: "a"}, "", false},
		{"context menu", detector.Signal{Kind: detector.SignalContextMenu}, "", true},
		{"copy", detector.Signal{Kind: detector.SignalCopy}, "", true},
		{"cut", detector.Signal{Kind: detector.SignalCut}, "", true},
		{"paste text", detector.Signal{Kind: detector.SignalPaste, MimeTypes: []string{"text/plain"}}, "", false},
		{"paste image", detector.Signal{Kind: detector.SignalPaste, MimeTypes: []string{"text/html", "Image/PNG"}}, model.ReasonScreenshot, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, _, rec := newArmedMonitor(t)

			out := m.Dispatch(tc.sig)

			assert.Equal(t, tc.reason, out.Reason)
			assert.Equal(t, tc.suppress, out.Suppress)
			if tc.reason == "" {
				assert.Empty(t, rec.all())
				return
			}
			require.Len(t, rec.all(), 1)
			assert.Equal(t, tc.reason, rec.all()[0].Reason)
		})
	}
}

func TestMonitor_ScreenCaptureInterceptedWhileArmed(t *testing.T) {
	rec := &recorder{}
	table := detector.NewCapabilityTable()
	m := detector.NewMonitor(table, rec.sink, nil, detector.Defaults(detector.DefaultKeyPolicy())...)

	require.NoError(t, table.Invoke(context.Background(), detector.CaptureDisplayMedia))

	require.NoError(t, m.Arm())
	assert.True(t, table.Intercepted(detector.CaptureDisplayMedia))

	err := table.Invoke(context.Background(), detector.CaptureDisplayMedia)
	assert.ErrorIs(t, err, detector.ErrCaptureBlocked)
	require.Len(t, rec.all(), 1)
	assert.Equal(t, model.ReasonScreenshot, rec.all()[0].Reason)
	assert.Equal(t, string(detector.CapabilityScreenCaptureAttempt), rec.all()[0].Capability)

	m.Disarm()
	m.Disarm()

	assert.False(t, table.Intercepted(detector.CaptureDisplayMedia))
	assert.NoError(t, table.Invoke(context.Background(), detector.CaptureDisplayMedia))
	assert.Len(t, rec.all(), 1)
}

func TestMonitor_DisarmedIgnoresSignals(t *testing.T) {
	m, _, rec := newArmedMonitor(t)
	m.Disarm()

	out := m.Dispatch(detector.Signal{Kind: detector.SignalBlur})

	assert.False(t, out.Violates())
	assert.Empty(t, rec.all())
	assert.False(t, m.Armed())
}

func TestCapabilityTable_InterceptTwiceFails(t *testing.T) {
	table := detector.NewCapabilityTable()
	release, err := table.Intercept(detector.CaptureDisplayMedia, func(context.Context) error { return nil })
	require.NoError(t, err)

	_, err = table.Intercept(detector.CaptureDisplayMedia, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, detector.ErrAlreadyIntercepted)

	release()
	release()
	_, err = table.Intercept("webcam", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, detector.ErrUnknownCapability)
}

func TestMonitor_ArmFailureReleasesAcquired(t *testing.T) {
	table := detector.NewCapabilityTable()
	other, err := table.Intercept(detector.CaptureDisplayMedia, func(context.Context) error { return nil })
	require.NoError(t, err)
	defer other()

	m := detector.NewMonitor(table, nil, nil, detector.ScreenCapture{})
	assert.ErrorIs(t, m.Arm(), detector.ErrAlreadyIntercepted)
	assert.False(t, m.Armed())
}

func TestSignal_Chord(t *testing.T) {
	sig := detector.Signal{Key: "s", Shift: true, Meta: true}
	assert.Equal(t, "Shift+Meta+S", sig.Chord())
	assert.Equal(t, "F12", detector.Signal{Key: "F12"}.Chord())
}
