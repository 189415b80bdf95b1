package session

import "errors"

// Error taxonomy of a session. Load-time errors are fatal; the rest are
// reported as non-blocking notices.
var (
	ErrAccessDenied       = errors.New("access denied")
	ErrLoadFailure        = errors.New("question set could not be loaded")
	ErrTranslationFailure = errors.New("translation unavailable")
	ErrPersistenceFailure = errors.New("result could not be saved")
	ErrAlreadySubmitted   = errors.New("attempt already submitted")

	ErrNotActive      = errors.New("session is not active")
	ErrInvalidOption  = errors.New("option index out of range")
	ErrInvalidTarget  = errors.New("question index out of range")
	ErrEarlySubmit    = errors.New("early submit is not available for this question")
	ErrInvalidReason  = errors.New("invalid violation reason")
	ErrAlreadyStarted = errors.New("session already started")
	ErrClosed         = errors.New("session closed")
)
