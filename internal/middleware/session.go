package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// CheckSingleDeviceSession keeps each student on one device. The token's JTI
// must match the one stored at login; a newer login elsewhere rejects older
// tokens. Rejections name the exam and set the request targeted so the client
// can tell the student which attempt moved to another device.
func CheckSingleDeviceSession(authService *service.AuthService, log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "single_device").Logger()

	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if claims.TokenType != service.TokenTypeStudent {
			c.Next()
			return
		}

		err := authService.ValidateStudentSession(c.Request.Context(), claims.UserID, claims.ID)
		if err == nil {
			c.Next()
			return
		}

		if !errors.Is(err, service.ErrNoActiveSession) && !errors.Is(err, service.ErrSessionReplaced) {
			// Session store unavailable; the login itself is not invalidated.
			log.Error().Err(err).Int("student_id", claims.UserID).Msg("Single-device check failed")
			response.AbortFail(c, http.StatusServiceUnavailable, response.ErrInternal)
			return
		}

		target := attemptTarget(c)
		event := log.Info()
		for k, v := range target {
			event = event.Str(k, v)
		}
		event.Err(err).
			Int("student_id", claims.UserID).
			Str("path", c.FullPath()).
			Msg("Rejected token without the current device session")

		if len(target) == 0 {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}
		response.AbortFailWithData(c, http.StatusUnauthorized, response.ErrSessionInvalidated, target)
	}
}

// attemptTarget collects the exam and set route params of the request.
func attemptTarget(c *gin.Context) map[string]string {
	target := make(map[string]string, 2)
	for _, p := range []string{"exam_id", "set_id"} {
		if v := c.Param(p); v != "" {
			target[p] = v
		}
	}
	return target
}
