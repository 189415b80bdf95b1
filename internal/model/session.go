package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionState enumerates the lifecycle states of a live attempt.
type SessionState string

const (
	SessionStateLoading    SessionState = "LOADING"
	SessionStateActive     SessionState = "ACTIVE"
	SessionStateFinalizing SessionState = "FINALIZING"
	SessionStateTerminal   SessionState = "TERMINAL"
)

// FinalizeReason is the cause attached to a finalize.
type FinalizeReason string

const (
	ReasonTime       FinalizeReason = "time"
	ReasonFocus      FinalizeReason = "focus"
	ReasonCamera     FinalizeReason = "camera"
	ReasonFullscreen FinalizeReason = "fullscreen"
	ReasonScreenshot FinalizeReason = "screenshot"
	// ReasonManual marks a voluntary early submit.
	ReasonManual FinalizeReason = "manual"
)

// Valid reports whether r is a known finalize reason.
func (r FinalizeReason) Valid() bool {
	switch r {
	case ReasonTime, ReasonFocus, ReasonCamera, ReasonFullscreen, ReasonScreenshot, ReasonManual:
		return true
	}
	return false
}

// SessionContext identifies the attempt and its place in a chain.
type SessionContext struct {
	StudentID        int               `json:"student_id"`
	ExamID           uuid.UUID         `json:"exam_id"`
	SetID            uuid.UUID         `json:"set_id"`
	SetNumber        int               `json:"set_number"`
	IsChain          bool              `json:"is_chain"`
	ChainLength      int               `json:"chain_length,omitempty"`
	SetNumberToSetID map[int]uuid.UUID `json:"set_number_to_set_id,omitempty"`
	SessionStart     time.Time         `json:"session_start"`
}

// NavigationKind is the destination class after a finalize.
type NavigationKind string

const (
	NavigateResult      NavigationKind = "result"
	NavigateNextSet     NavigationKind = "next_set"
	NavigateChainResult NavigationKind = "chain_result"
)

// NavigationState is the transient state carried to the single-set result view.
type NavigationState struct {
	Score     int    `json:"score"`
	TimeTaken string `json:"time_taken"`
	Total     int    `json:"total"`
}

// Navigation is the single hop performed once a session reaches Terminal.
type Navigation struct {
	Kind       NavigationKind   `json:"kind"`
	Path       string           `json:"path"`
	Notice     string           `json:"notice,omitempty"`
	Warning    string           `json:"warning,omitempty"`
	State      *NavigationState `json:"state,omitempty"`
	ChainToken string           `json:"chain_token,omitempty"`
}

// NavDirection is a question navigation request.
type NavDirection string

const (
	NavPrev NavDirection = "prev"
	NavNext NavDirection = "next"
	NavJump NavDirection = "jump"
)

// SessionSnapshot is the client-visible state of a live attempt.
type SessionSnapshot struct {
	State            SessionState         `json:"state"`
	Context          SessionContext       `json:"context"`
	Set              QuestionSet          `json:"set"`
	Questions        []QuestionForStudent `json:"questions"`
	Answers          []*int               `json:"answers"`
	Flags            []bool               `json:"flags"`
	Current          int                  `json:"current"`
	Translated       bool                 `json:"translated"`
	RemainingSeconds float64              `json:"remaining_seconds"`
	CanSubmitEarly   bool                 `json:"can_submit_early"`
}
