package service

import "errors"

// Domain Errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrNotChain          = errors.New("exam is not a chain")
	ErrInvalidChain      = errors.New("chain definition is not numbered 1..N without gaps")
	ErrSetNotInChain     = errors.New("set does not belong to the exam chain")
	ErrSetLocked         = errors.New("set is locked")
	ErrChainTokenInvalid = errors.New("chain token is invalid")
	ErrTranslateDisabled = errors.New("translation endpoint not configured")
	ErrNoActiveSession   = errors.New("no active session")
	ErrSessionReplaced   = errors.New("session opened on another device")
)
