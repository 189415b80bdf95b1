package detector

import (
	"strings"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// SignalKind is the class of browser event reported by the client.
type SignalKind string

const (
	SignalVisibilityChange SignalKind = "visibility_change"
	SignalBlur             SignalKind = "blur"
	SignalKeyDown          SignalKind = "keydown"
	SignalContextMenu      SignalKind = "context_menu"
	SignalCopy             SignalKind = "copy"
	SignalCut              SignalKind = "cut"
	SignalPaste            SignalKind = "paste"
	SignalFullscreenChange SignalKind = "fullscreen_change"
)

// Signal is one browser-level integrity signal as observed by the client.
type Signal struct {
	Kind       SignalKind `json:"kind"`
	Hidden     bool       `json:"hidden,omitempty"`
	Fullscreen bool       `json:"fullscreen,omitempty"`
	Key        string     `json:"key,omitempty"`
	Ctrl       bool       `json:"ctrl,omitempty"`
	Shift      bool       `json:"shift,omitempty"`
	Alt        bool       `json:"alt,omitempty"`
	Meta       bool       `json:"meta,omitempty"`
	MimeTypes  []string   `json:"mime_types,omitempty"`
	At         time.Time  `json:"-"`
}

// Chord renders the key combination in a canonical "Ctrl+Shift+Meta+Alt+KEY" form.
func (s Signal) Chord() string {
	var b strings.Builder
	if s.Ctrl {
		b.WriteString("Ctrl+")
	}
	if s.Shift {
		b.WriteString("Shift+")
	}
	if s.Meta {
		b.WriteString("Meta+")
	}
	if s.Alt {
		b.WriteString("Alt+")
	}
	b.WriteString(normalizeKey(s.Key))
	return b.String()
}

func normalizeKey(key string) string {
	if len(key) == 1 {
		return strings.ToUpper(key)
	}
	return key
}

// Capability names a class of integrity monitor.
type Capability string

const (
	CapabilityTabHidden            Capability = "tab_hidden"
	CapabilityWindowBlur           Capability = "window_blur"
	CapabilityForbiddenKey         Capability = "forbidden_key"
	CapabilityClipboardImage       Capability = "clipboard_image"
	CapabilityScreenCaptureAttempt Capability = "screen_capture_attempt"
	CapabilityFullscreenExit       Capability = "fullscreen_exit"
)

// Outcome is a detector's verdict on a signal.
// Suppress is applied regardless of whether Reason is set.
type Outcome struct {
	Suppress bool
	Reason   model.FinalizeReason
	Detail   string
}

// Violates reports whether the outcome carries a finalize reason.
func (o Outcome) Violates() bool {
	return o.Reason != ""
}

func merge(a, b Outcome) Outcome {
	out := Outcome{Suppress: a.Suppress || b.Suppress, Reason: a.Reason, Detail: a.Detail}
	if out.Reason == "" {
		out.Reason = b.Reason
		out.Detail = b.Detail
	}
	return out
}
