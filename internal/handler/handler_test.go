package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/detector"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const studentID = 42

type fixture struct {
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	examID uuid.UUID
	sets   *fakeSets
	subs   *fakeSubmissions
	hub    *service.SessionService
	router *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithTranslation(t, "")
}

// newFixtureWithTranslation wires a translation endpoint; an empty url
// leaves translation disabled.
func newFixtureWithTranslation(t *testing.T, translateURL string) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zerolog.Nop()
	examID := uuid.New()
	sets := newFakeSets(examID, 2)
	subs := &fakeSubmissions{}
	exams := &fakeExams{exam: model.Exam{ID: examID, Title: "Tryout", Kind: model.ExamKindChain}}

	monitor := service.NewMonitorService(nil, rdb, log)
	tokens := service.NewChainTokenService("chain-secret", time.Hour)
	access := service.NewAccessService(fakeEntitlements{granted: true}, rdb, log)
	loader := service.NewLoaderService(sets, sets, rdb, time.Hour, log)
	continuity := service.NewContinuityService(sets, tokens, log)
	unlock := service.NewUnlockService(sets, subs, 30, log)
	results := service.NewResultService(subs, tokens, monitor, log)

	var translation *service.TranslationService
	if translateURL != "" {
		translation = service.NewTranslationService(translateURL, 10*time.Second, "en", rdb, log)
	}

	hub := service.NewSessionService(service.SessionServiceDeps{
		Exams:       exams,
		Loader:      loader,
		Continuity:  continuity,
		Unlock:      unlock,
		Access:      access,
		Attempts:    service.NewAttemptService(&fakeAttempts{}, subs, monitor, rdb, log),
		Results:     results,
		Autosave:    service.NewAutosaveService(fakeAnswers{}, rdb, log),
		Violations:  service.NewViolationService(rdb, monitor, log),
		Translation: translation,
	}, session.Config{TickInterval: time.Hour}, log)
	t.Cleanup(hub.Shutdown)

	portal := NewStudentPortalHandler(hub, access, loader, unlock, continuity, tokens, results, log)
	wsHandler := NewWSHandler(hub, translation, log, nil)
	system := NewSystemHandler(nil, rdb, hub, log)

	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	r.GET("/health", system.Health)
	student := r.Group("/", withStudent(studentID))
	student.GET("/exams/:exam_id/sets", portal.ListSets)
	student.GET("/exams/:exam_id/sets/:set_id/instructions", portal.GetInstructions)
	student.GET("/exams/:exam_id/result", portal.GetChainResult)
	student.GET("/results/:set_id", portal.GetSetResult)
	student.GET("/ws/exams/:exam_id/sets/:set_id/stream", wsHandler.SessionStream)

	return &fixture{mr: mr, rdb: rdb, examID: examID, sets: sets, subs: subs, hub: hub, router: r}
}

func withStudent(id int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeStudent, UserID: id})
		c.Next()
	}
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) *envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
	return &env
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   response.ErrCode
	}{
		{session.ErrAccessDenied, http.StatusForbidden, response.ErrAccessDenied},
		{session.ErrAlreadySubmitted, http.StatusConflict, response.ErrAlreadySubmitted},
		{fmt.Errorf("%w: opens in 5 minutes", service.ErrSetLocked), http.StatusForbidden, response.ErrSetLocked},
		{service.ErrSetNotInChain, http.StatusNotFound, response.ErrNotFound},
		{service.ErrInvalidChain, http.StatusUnprocessableEntity, response.ErrChainInvalid},
		{fmt.Errorf("%w: timeout", session.ErrLoadFailure), http.StatusServiceUnavailable, response.ErrLoadFailure},
		{session.ErrInvalidTarget, http.StatusBadRequest, response.ErrInvalidOption},
		{session.ErrEarlySubmit, http.StatusConflict, response.ErrEarlySubmit},
		{session.ErrClosed, http.StatusConflict, response.ErrSessionNotActive},
		{detector.ErrCaptureBlocked, http.StatusForbidden, response.ErrCaptureBlocked},
		{errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tc := range cases {
		status, code := errorCode(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestListSets(t *testing.T) {
	f := newFixture(t)

	w := f.get("/exams/" + f.examID.String() + "/sets")
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Sets []model.SetAvailability `json:"sets"`
	}
	decodeBody(t, w, &data)
	require.Len(t, data.Sets, 2)
	assert.False(t, data.Sets[0].Decision.Locked)
	assert.True(t, data.Sets[1].Decision.Locked)

	assert.Equal(t, http.StatusBadRequest, f.get("/exams/not-a-uuid/sets").Code)
	assert.Equal(t, http.StatusNotFound, f.get("/exams/"+uuid.NewString()+"/sets").Code)
}

func TestGetInstructionsIssuesChainToken(t *testing.T) {
	f := newFixture(t)

	w := f.get(fmt.Sprintf("/exams/%s/sets/%s/instructions", f.examID, f.sets.sets[0].ID))
	require.Equal(t, http.StatusOK, w.Code)

	var data model.InstructionsResponse
	decodeBody(t, w, &data)
	require.NotNil(t, data.Position)
	assert.Equal(t, 1, data.Position.SetNumber)
	assert.Equal(t, 2, data.Position.ChainLength)
	assert.NotEmpty(t, data.ChainToken)

	w = f.get(fmt.Sprintf("/exams/%s/sets/%s/instructions", f.examID, f.sets.sets[1].ID))
	require.Equal(t, http.StatusOK, w.Code)
	var locked model.InstructionsResponse
	decodeBody(t, w, &locked)
	assert.True(t, locked.Decision.Locked)
	assert.Empty(t, locked.ChainToken)

	w = f.get(fmt.Sprintf("/exams/%s/sets/%s/instructions", f.examID, uuid.New()))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetInstructionsSetLookup(t *testing.T) {
	t.Run("unknown set is not found", func(t *testing.T) {
		f := newFixture(t)
		w := f.get("/exams/" + f.examID.String() + "/sets/" + uuid.NewString() + "/instructions")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("set of another exam is not found", func(t *testing.T) {
		f := newFixture(t)
		f.sets.sets[0].ParentExamID = uuid.New()
		w := f.get("/exams/" + f.examID.String() + "/sets/" + f.sets.sets[0].ID.String() + "/instructions")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("database outage is an internal error", func(t *testing.T) {
		f := newFixture(t)
		f.sets.getErr = errors.New("connection refused")
		w := f.get("/exams/" + f.examID.String() + "/sets/" + f.sets.sets[0].ID.String() + "/instructions")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		env := decodeBody(t, w, nil)
		require.NotNil(t, env.Error)
		assert.Equal(t, string(response.ErrInternal), env.Error.Code)
	})
}

func TestGetSetResultNotFound(t *testing.T) {
	f := newFixture(t)

	w := f.get("/results/" + f.sets.sets[0].ID.String())
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decodeBody(t, w, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(response.ErrNotFound), env.Error.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusOK, f.get("/health").Code)

	f.mr.Close()
	assert.Equal(t, http.StatusServiceUnavailable, f.get("/health").Code)
}

func TestSystemMetricsReportQueues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, "a", "b").Err())
	require.NoError(t, f.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, "v").Err())

	m := NewSystemHandler(nil, f.rdb, f.hub, zerolog.Nop()).collect(ctx)

	assert.Equal(t, map[string]int64{"answers": 2, "violations": 1}, m.Queues)
	assert.Zero(t, m.LiveSessions)
	assert.Positive(t, m.Goroutines)
}

// ─── WebSocket ──────────────────────────────────────────────────────

func dialStream(t *testing.T, srv *httptest.Server, examID, setID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + fmt.Sprintf("/ws/exams/%s/sets/%s/stream", examID, setID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type wsMessage struct {
	Event    string          `json:"event"`
	Action   string          `json:"action"`
	Suppress bool            `json:"suppress"`
	Code     string          `json:"code"`
	Data     json.RawMessage `json:"data"`
}

func readUntil(t *testing.T, conn *websocket.Conn, event string) wsMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", event)
		if msg.Event == event {
			return msg
		}
	}
}

func sendAction(t *testing.T, conn *websocket.Conn, action string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": action, "data": data}))
}

func TestSessionStream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	set1 := f.sets.sets[0]
	conn := dialStream(t, srv, f.examID, set1.ID)

	var snap model.SessionSnapshot
	require.NoError(t, json.Unmarshal(readUntil(t, conn, "snapshot").Data, &snap))
	assert.Equal(t, model.SessionStateActive, snap.State)
	assert.Len(t, snap.Questions, 3)
	assert.Equal(t, 1, snap.Context.SetNumber)

	sendAction(t, conn, "ping", nil)
	readUntil(t, conn, "pong")

	sendAction(t, conn, "answer", map[string]int{"option": 0})
	readUntil(t, conn, "ack")

	sendAction(t, conn, "answer", map[string]int{"option": 9})
	assert.Equal(t, string(response.ErrInvalidOption), readUntil(t, conn, "error").Code)

	sendAction(t, conn, "navigate", map[string]string{"direction": "sideways"})
	assert.Equal(t, string(response.ErrValidation), readUntil(t, conn, "error").Code)

	sendAction(t, conn, "dance", nil)
	assert.Equal(t, string(response.ErrInvalidPayload), readUntil(t, conn, "error").Code)

	sendAction(t, conn, "submit", nil)
	assert.Equal(t, string(response.ErrEarlySubmit), readUntil(t, conn, "error").Code)

	sendAction(t, conn, "violation", map[string]string{"reason": "camera", "detail": "feed lost"})

	var nav model.Navigation
	require.NoError(t, json.Unmarshal(readUntil(t, conn, "navigate").Data, &nav))
	assert.Equal(t, model.NavigateNextSet, nav.Kind)
	assert.Contains(t, nav.Path, f.sets.sets[1].ID.String())
	assert.NotEmpty(t, nav.ChainToken)

	// The server closes the stream once the session is terminal.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	w := f.get("/results/" + set1.ID.String())
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Result model.SubmissionRecord `json:"result"`
		State  model.NavigationState  `json:"state"`
	}
	decodeBody(t, w, &data)
	assert.Equal(t, 1, data.Result.Score)
	assert.Equal(t, model.ReasonCamera, data.Result.Reason)
	assert.Equal(t, 3, data.State.Total)

	w = f.get("/exams/" + f.examID.String() + "/result")
	require.Equal(t, http.StatusOK, w.Code)
	var chainRes model.ChainResult
	decodeBody(t, w, &chainRes)
	assert.Equal(t, 2, chainRes.ChainLength)
	assert.Equal(t, 1, chainRes.Completed)
}

func TestSessionStreamSignalsFlowDuringTranslation(t *testing.T) {
	release := make(chan struct{})
	translator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer translator.Close()
	defer close(release)

	f := newFixtureWithTranslation(t, translator.URL)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	conn := dialStream(t, srv, f.examID, f.sets.sets[0].ID)
	readUntil(t, conn, "snapshot")

	sendAction(t, conn, "translate", nil)
	sendAction(t, conn, "signal", map[string]interface{}{"kind": "context_menu"})

	ack := readUntil(t, conn, "ack")
	assert.Equal(t, "signal", ack.Action)
	assert.True(t, ack.Suppress)

	sendAction(t, conn, "signal", map[string]interface{}{"kind": "visibility_change", "hidden": true})

	var nav model.Navigation
	require.NoError(t, json.Unmarshal(readUntil(t, conn, "navigate").Data, &nav))
	assert.Equal(t, model.NavigateNextSet, nav.Kind)
}

func TestSessionStreamRefusesSubmittedSet(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	set1 := f.sets.sets[0]
	require.NoError(t, f.subs.SubmitChainSetResult(context.Background(), f.examID, 1, &model.SubmissionRecord{
		StudentID: studentID,
		SetID:     set1.ID,
	}))

	conn := dialStream(t, srv, f.examID, set1.ID)
	assert.Equal(t, string(response.ErrAlreadySubmitted), readUntil(t, conn, "error").Code)
}

func TestSessionStreamRefusesLockedSet(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	conn := dialStream(t, srv, f.examID, f.sets.sets[1].ID)
	assert.Equal(t, string(response.ErrSetLocked), readUntil(t, conn, "error").Code)
	assert.Zero(t, f.hub.Live())
}
