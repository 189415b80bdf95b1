package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stemsi/exstem-proctor/internal/validator"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

// navigateSendWait bounds how long the final navigation waits for a slow client.
const navigateSendWait = 5 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams one exam session over a WebSocket.
type WSHandler struct {
	sessions    *service.SessionService
	translation *service.TranslationService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. translation may be nil.
func NewWSHandler(sessions *service.SessionService, translation *service.TranslationService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions:    sessions,
		translation: translation,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/exams/:exam_id/sets/:set_id/stream?token=...&chain_token=...&lang=...
// Opens the session for the set and relays actions and events until the
// session ends or the client leaves.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	setID, err := uuid.Parse(c.Param("set_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	go conn.WritePump()
	defer conn.Close()

	studentID := claims.UserID
	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("exam_id", examID.String()).
		Str("set_id", setID.String()).
		Logger()

	req := service.OpenRequest{
		StudentID:  studentID,
		ExamID:     examID,
		SetID:      setID,
		ChainToken: c.Query("chain_token"),
		Notify: func(ev session.Event) {
			if ev.Type == session.EventNavigate {
				if !conn.SendWait(ev, navigateSendWait) {
					h.log.Warn().Int("student_id", studentID).Msg("Navigation event not delivered")
				}
				return
			}
			conn.Send(ev)
		},
	}
	if h.translation != nil {
		req.Language = h.translation.ResolveLanguage(c.Query("lang"), c.GetHeader("Accept-Language"))
	}

	ctrl, err := h.sessions.Open(context.Background(), req)
	if err != nil {
		_, code := errorCode(err)
		if code == response.ErrInternal {
			wsLog.Error().Err(err).Msg("Failed to open session")
		} else {
			wsLog.Info().Err(err).Msg("Session refused")
		}
		conn.SendError(string(code), response.GetMessage(code), nil)
		return
	}
	defer h.sessions.Release(studentID, setID, ctrl)

	wsLog.Info().Msg("Student connected")

	// Terminal or replaced sessions end the connection after the final
	// events are flushed.
	go func() {
		select {
		case <-ctrl.Done():
		case <-ctrl.Closed():
		case <-conn.Done():
			return
		}
		conn.Close()
	}()

	// Cancelled when the client leaves so in-flight translations stop.
	streamCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	locales := []string{c.Query("lang")}
	for {
		var env ws.RequestEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}
		h.dispatch(streamCtx, conn, ctrl, wsLog, env, locales)
	}
}

// dispatch runs one client action against the controller. Translation runs
// in its own goroutine so signals sent meanwhile still reach the detectors.
func (h *WSHandler) dispatch(streamCtx context.Context, conn *ws.Conn, ctrl *session.Controller, log zerolog.Logger, env ws.RequestEnvelope, locales []string) {
	ctx := context.Background()

	var err error
	switch env.Action {
	case ws.ActionPing:
		conn.Send(ws.PongResponse{Event: ws.EventPong})
		return

	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if !decode(conn, env, &req, locales) {
			return
		}
		err = ctrl.SelectAnswer(ctx, *req.Option)

	case ws.ActionFlag:
		err = ctrl.ToggleFlag()

	case ws.ActionNavigate:
		var req ws.NavigateRequest
		if !decode(conn, env, &req, locales) {
			return
		}
		err = ctrl.Navigate(req.Direction, req.Target)

	case ws.ActionTranslate:
		go func() {
			reply(conn, log, env.Action, ctrl.ToggleTranslation(streamCtx))
		}()
		return

	case ws.ActionSignal:
		var req ws.SignalRequest
		if !decode(conn, env, &req, locales) {
			return
		}
		out := ctrl.HandleSignal(req.Signal())
		conn.Send(ws.AckResponse{Event: ws.EventAck, Action: env.Action, Suppress: out.Suppress})
		return

	case ws.ActionCapture:
		err = ctrl.RequestCapture(ctx)

	case ws.ActionViolation:
		var req ws.ViolationRequest
		if !decode(conn, env, &req, locales) {
			return
		}
		err = ctrl.ReportViolation(req.Reason, req.Detail)

	case ws.ActionSubmit:
		err = ctrl.SubmitEarly(ctx)

	default:
		log.Warn().Str("action", string(env.Action)).Msg("Unknown action")
		conn.SendError(string(response.ErrInvalidPayload), "unknown action: "+string(env.Action), nil)
		return
	}

	reply(conn, log, env.Action, err)
}

// reply acknowledges a finished action or reports its error.
func reply(conn *ws.Conn, log zerolog.Logger, action ws.Action, err error) {
	if err != nil {
		_, code := errorCode(err)
		if code == response.ErrInternal {
			log.Error().Err(err).Str("action", string(action)).Msg("Action failed")
		}
		conn.SendError(string(code), response.GetMessage(code), nil)
		return
	}
	conn.Send(ws.AckResponse{Event: ws.EventAck, Action: action})
}

// decode unmarshals and validates the action payload, reporting failures
// to the client.
func decode(conn *ws.Conn, env ws.RequestEnvelope, dst interface{}, locales []string) bool {
	if len(env.Data) == 0 || json.Unmarshal(env.Data, dst) != nil {
		conn.SendError(string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload), nil)
		return false
	}
	if fields := validator.Struct(dst, locales...); fields != nil {
		conn.SendError(string(response.ErrValidation), response.GetMessage(response.ErrValidation), fields)
		return false
	}
	return true
}
