package websocket

import (
	"encoding/json"

	"github.com/stemsi/exstem-proctor/internal/detector"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer    Action = "answer"
	ActionFlag      Action = "flag"
	ActionNavigate  Action = "navigate"
	ActionTranslate Action = "translate"
	ActionSignal    Action = "signal"
	ActionCapture   Action = "capture"
	ActionViolation Action = "violation"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action          `json:"action" binding:"required"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// AnswerRequest selects an option for the current question.
type AnswerRequest struct {
	Option *int `json:"option" binding:"required,min=0"`
}

// NavigateRequest moves between questions. Target is used by "jump" only.
type NavigateRequest struct {
	Direction model.NavDirection `json:"direction" binding:"required,oneof=prev next jump"`
	Target    int                `json:"target" binding:"min=0"`
}

// SignalRequest forwards a browser signal to the detectors.
type SignalRequest struct {
	Kind       detector.SignalKind `json:"kind" binding:"required"`
	Hidden     bool                `json:"hidden"`
	Fullscreen bool                `json:"fullscreen"`
	Key        string              `json:"key" binding:"max=32"`
	Ctrl       bool                `json:"ctrl"`
	Shift      bool                `json:"shift"`
	Alt        bool                `json:"alt"`
	Meta       bool                `json:"meta"`
	MimeTypes  []string            `json:"mime_types" binding:"max=16"`
}

// Signal converts the request to a detector signal.
func (r SignalRequest) Signal() detector.Signal {
	return detector.Signal{
		Kind:       r.Kind,
		Hidden:     r.Hidden,
		Fullscreen: r.Fullscreen,
		Key:        r.Key,
		Ctrl:       r.Ctrl,
		Shift:      r.Shift,
		Alt:        r.Alt,
		Meta:       r.Meta,
		MimeTypes:  r.MimeTypes,
	}
}

// ViolationRequest reports a violation observed by the client outside the
// built-in detectors, such as a lost camera feed.
type ViolationRequest struct {
	Reason model.FinalizeReason `json:"reason" binding:"required,oneof=camera focus fullscreen screenshot"`
	Detail string               `json:"detail" binding:"max=256"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError Event = "error"
	EventAck   Event = "ack"
	EventPong  Event = "pong"
)

// AckResponse confirms an action. Suppress tells the client to cancel the
// default browser behaviour of a signal.
type AckResponse struct {
	Event    Event  `json:"event"`
	Action   Action `json:"action"`
	Suppress bool   `json:"suppress,omitempty"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Code   string            `json:"code"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
