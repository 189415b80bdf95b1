package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-proctor/internal/detector"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
)

// errorCode maps a domain error to its HTTP status and API error code.
func errorCode(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, session.ErrAccessDenied):
		return http.StatusForbidden, response.ErrAccessDenied
	case errors.Is(err, session.ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrAlreadySubmitted
	case errors.Is(err, service.ErrSetLocked):
		return http.StatusForbidden, response.ErrSetLocked
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrSetNotInChain):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrInvalidChain), errors.Is(err, service.ErrNotChain):
		return http.StatusUnprocessableEntity, response.ErrChainInvalid
	case errors.Is(err, session.ErrLoadFailure):
		return http.StatusServiceUnavailable, response.ErrLoadFailure
	case errors.Is(err, session.ErrNotActive), errors.Is(err, session.ErrClosed):
		return http.StatusConflict, response.ErrSessionNotActive
	case errors.Is(err, session.ErrInvalidOption), errors.Is(err, session.ErrInvalidTarget),
		errors.Is(err, session.ErrInvalidReason):
		return http.StatusBadRequest, response.ErrInvalidOption
	case errors.Is(err, session.ErrEarlySubmit):
		return http.StatusConflict, response.ErrEarlySubmit
	case errors.Is(err, session.ErrTranslationFailure):
		return http.StatusBadGateway, response.ErrTranslationFailure
	case errors.Is(err, detector.ErrCaptureBlocked):
		return http.StatusForbidden, response.ErrCaptureBlocked
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failWith writes the error response for err. Access denials carry the
// purchase path the client redirects to.
func failWith(c *gin.Context, err error, purchasePath string) {
	status, code := errorCode(err)
	if code == response.ErrAccessDenied && purchasePath != "" {
		response.FailWithData(c, status, code, gin.H{"redirect": purchasePath})
		return
	}
	response.Fail(c, status, code)
}
