package detector

import (
	"strings"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Detector observes one class of browser signal.
type Detector interface {
	Capability() Capability
	Observes(kind SignalKind) bool
	Inspect(sig Signal) Outcome
}

// TabHidden fires when the exam tab becomes hidden.
type TabHidden struct{}

func (TabHidden) Capability() Capability { return CapabilityTabHidden }

func (TabHidden) Observes(kind SignalKind) bool { return kind == SignalVisibilityChange }

func (TabHidden) Inspect(sig Signal) Outcome {
	if !sig.Hidden {
		return Outcome{}
	}
	return Outcome{Reason: model.ReasonFocus, Detail: "tab hidden"}
}

// WindowBlur fires when the exam window loses focus.
type WindowBlur struct{}

func (WindowBlur) Capability() Capability { return CapabilityWindowBlur }

func (WindowBlur) Observes(kind SignalKind) bool { return kind == SignalBlur }

func (WindowBlur) Inspect(Signal) Outcome {
	return Outcome{Reason: model.ReasonFocus, Detail: "window blur"}
}

// FullscreenExit fires when the browser leaves fullscreen.
type FullscreenExit struct{}

func (FullscreenExit) Capability() Capability { return CapabilityFullscreenExit }

func (FullscreenExit) Observes(kind SignalKind) bool { return kind == SignalFullscreenChange }

func (FullscreenExit) Inspect(sig Signal) Outcome {
	if sig.Fullscreen {
		return Outcome{}
	}
	return Outcome{Reason: model.ReasonFullscreen, Detail: "fullscreen exited"}
}

// KeyPolicy lists the chords a ForbiddenKey detector acts on, in Signal.Chord form.
type KeyPolicy struct {
	// Finalize chords are suppressed and force a screenshot finalize.
	Finalize []string
	// Suppress chords are only blocked.
	Suppress []string
}

// DefaultKeyPolicy blocks screenshot, print, save, view-source and devtools chords.
func DefaultKeyPolicy() KeyPolicy {
	return KeyPolicy{
		Finalize: []string{
			"PrintScreen",
			"Shift+Meta+3",
			"Shift+Meta+4",
			"Shift+Meta+5",
			"Shift+Meta+S",
		},
		Suppress: []string{
			"Ctrl+C", "Ctrl+X", "Ctrl+P", "Ctrl+S", "Ctrl+U", "Ctrl+A",
			"Meta+C", "Meta+X", "Meta+P", "Meta+S", "Meta+U", "Meta+A",
			"F12",
			"Ctrl+Shift+I", "Ctrl+Shift+J", "Ctrl+Shift+C",
			"Shift+Meta+Alt+I", "Shift+Meta+Alt+J", "Shift+Meta+Alt+C",
			"Meta+Alt+I", "Meta+Alt+J", "Meta+Alt+C",
		},
	}
}

// ForbiddenKey suppresses the context menu and forbidden chords.
type ForbiddenKey struct {
	finalize map[string]struct{}
	suppress map[string]struct{}
}

// NewForbiddenKey builds a ForbiddenKey detector from a key policy.
func NewForbiddenKey(policy KeyPolicy) *ForbiddenKey {
	d := &ForbiddenKey{
		finalize: make(map[string]struct{}, len(policy.Finalize)),
		suppress: make(map[string]struct{}, len(policy.Suppress)),
	}
	for _, c := range policy.Finalize {
		d.finalize[c] = struct{}{}
	}
	for _, c := range policy.Suppress {
		d.suppress[c] = struct{}{}
	}
	return d
}

func (d *ForbiddenKey) Capability() Capability { return CapabilityForbiddenKey }

func (d *ForbiddenKey) Observes(kind SignalKind) bool {
	return kind == SignalKeyDown || kind == SignalContextMenu
}

func (d *ForbiddenKey) Inspect(sig Signal) Outcome {
	if sig.Kind == SignalContextMenu {
		return Outcome{Suppress: true}
	}

	chord := sig.Chord()
	if _, ok := d.finalize[chord]; ok {
		return Outcome{Suppress: true, Reason: model.ReasonScreenshot, Detail: "key " + chord}
	}
	if _, ok := d.suppress[chord]; ok {
		return Outcome{Suppress: true}
	}
	return Outcome{}
}

// ClipboardImage suppresses copy and cut, and fires on pasting an image.
type ClipboardImage struct{}

func (ClipboardImage) Capability() Capability { return CapabilityClipboardImage }

func (ClipboardImage) Observes(kind SignalKind) bool {
	return kind == SignalCopy || kind == SignalCut || kind == SignalPaste
}

func (ClipboardImage) Inspect(sig Signal) Outcome {
	switch sig.Kind {
	case SignalCopy, SignalCut:
		return Outcome{Suppress: true}
	case SignalPaste:
		for _, mt := range sig.MimeTypes {
			if strings.HasPrefix(strings.ToLower(mt), "image/") {
				return Outcome{Suppress: true, Reason: model.ReasonScreenshot, Detail: "image pasted"}
			}
		}
	}
	return Outcome{}
}
