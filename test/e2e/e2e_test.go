//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/seed"
	"github.com/stemsi/exstem-proctor/internal/service"
)

const defaultBaseURL = "http://localhost:8080"

var (
	baseURL      string
	studentToken string
	chain        *seed.Result
)

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	if err := setup(); err != nil {
		fmt.Printf("Setup failed: %v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// setup seeds a three-set chain with one entitled student and signs a
// student token with the server's secret.
func setup() error {
	ctx := context.Background()
	cfg := config.Load()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	chain, err = seed.Chain(ctx, pool, seed.ChainSpec{
		Title:           fmt.Sprintf("E2E %d", time.Now().UnixNano()),
		Kind:            model.ExamKindChain,
		Sets:            3,
		QuestionsPerSet: 4,
		SetMinutes:      30,
	})
	if err != nil {
		return fmt.Errorf("seed chain: %w", err)
	}

	ids, err := seed.Students(ctx, pool, chain.ExamID, []string{"E2E Student"})
	if err != nil {
		return fmt.Errorf("seed students: %w", err)
	}

	rdb, err := database.NewRedisClient(ctx, cfg, zerolog.Nop())
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer rdb.Close()

	studentToken, err = service.NewAuthService(cfg, rdb).IssueToken(ctx, service.TokenTypeStudent, ids[0])
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	return nil
}

type envelope[T any] struct {
	Data  T `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func TestChainFlow(t *testing.T) {
	var chainToken string

	t.Run("ListSets", func(t *testing.T) {
		resp := get(t, fmt.Sprintf("/api/v1/student/exams/%s/sets", chain.ExamID))
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body envelope[struct {
			Sets []model.SetAvailability `json:"sets"`
		}]
		decodeJSON(t, resp, &body)
		if len(body.Data.Sets) != 3 {
			t.Fatalf("expected 3 sets, got %d", len(body.Data.Sets))
		}
		if body.Data.Sets[0].Decision.Locked {
			t.Error("set 1 should be open")
		}
		if !body.Data.Sets[1].Decision.Locked {
			t.Error("set 2 should be locked before set 1 is submitted")
		}
	})

	t.Run("Instructions", func(t *testing.T) {
		resp := get(t, fmt.Sprintf("/api/v1/student/exams/%s/sets/%s/instructions", chain.ExamID, chain.SetIDs[0]))
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body envelope[model.InstructionsResponse]
		decodeJSON(t, resp, &body)
		if body.Data.Position == nil || body.Data.Position.SetNumber != 1 {
			t.Fatalf("unexpected position: %+v", body.Data.Position)
		}
		chainToken = body.Data.ChainToken
		if chainToken == "" {
			t.Fatal("chain token missing")
		}
	})

	t.Run("SessionFinalizesOnFocusLoss", func(t *testing.T) {
		conn := dial(t, chain.SetIDs[0], chainToken)
		defer conn.Close()

		snapshot := readEvent(t, conn, "snapshot")
		var snap model.SessionSnapshot
		if err := json.Unmarshal(snapshot, &snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if snap.State != model.SessionStateActive || len(snap.Questions) != 4 {
			t.Fatalf("unexpected snapshot: state=%s questions=%d", snap.State, len(snap.Questions))
		}

		send(t, conn, "answer", map[string]int{"option": 0})
		readEvent(t, conn, "ack")

		send(t, conn, "signal", map[string]interface{}{"kind": "visibility_change", "hidden": true})

		raw := readEvent(t, conn, "navigate")
		var nav model.Navigation
		if err := json.Unmarshal(raw, &nav); err != nil {
			t.Fatalf("decode navigation: %v", err)
		}
		if nav.Kind != model.NavigateNextSet {
			t.Fatalf("expected next_set, got %s", nav.Kind)
		}
		if !strings.Contains(nav.Path, chain.SetIDs[1].String()) {
			t.Errorf("navigation path %q does not point at set 2", nav.Path)
		}
	})

	t.Run("SetResult", func(t *testing.T) {
		resp := get(t, fmt.Sprintf("/api/v1/student/results/%s", chain.SetIDs[0]))
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body envelope[struct {
			Result model.SubmissionRecord `json:"result"`
		}]
		decodeJSON(t, resp, &body)
		if body.Data.Result.Reason != model.ReasonFocus {
			t.Errorf("expected focus reason, got %s", body.Data.Result.Reason)
		}
		if body.Data.Result.Score != 1 {
			t.Errorf("expected score 1, got %d", body.Data.Result.Score)
		}
	})

	t.Run("ResubmitRefused", func(t *testing.T) {
		conn := dial(t, chain.SetIDs[0], "")
		defer conn.Close()

		raw := readEvent(t, conn, "error")
		var body struct {
			Code string `json:"code"`
		}
		_ = json.Unmarshal(raw, &body)
		if body.Code != "ALREADY_SUBMITTED" {
			t.Errorf("expected ALREADY_SUBMITTED, got %s", body.Code)
		}
	})

	t.Run("NextSetStillLocked", func(t *testing.T) {
		resp := get(t, fmt.Sprintf("/api/v1/student/exams/%s/sets/%s/instructions", chain.ExamID, chain.SetIDs[1]))
		defer resp.Body.Close()

		var body envelope[model.InstructionsResponse]
		decodeJSON(t, resp, &body)
		if !body.Data.Decision.Locked {
			t.Error("set 2 should stay locked until set 1's duration has elapsed")
		}
		if body.Data.ChainToken != "" {
			t.Error("locked sets must not carry a chain token")
		}
	})
}

// Helpers

func get(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, baseURL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+studentToken)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func dial(t *testing.T, setID fmt.Stringer, chainToken string) *websocket.Conn {
	t.Helper()
	u, _ := url.Parse(baseURL)
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = fmt.Sprintf("/ws/v1/student/exams/%s/sets/%s/stream", chain.ExamID, setID)
	q := url.Values{"token": {studentToken}}
	if chainToken != "" {
		q.Set("chain_token", chainToken)
	}
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		if resp != nil {
			t.Fatalf("dial: %v (status %d: %s)", err, resp.StatusCode, readBody(resp))
		}
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, action string, data interface{}) {
	t.Helper()
	if err := conn.WriteJSON(map[string]interface{}{"action": action, "data": data}); err != nil {
		t.Fatalf("write %s: %v", action, err)
	}
}

// readEvent skips ticks and other events until one named want arrives and
// returns its payload. Error events carry their fields at the top level.
func readEvent(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		var ev struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(msg, &ev); err != nil {
			continue
		}
		if ev.Event != want {
			continue
		}
		if ev.Data == nil {
			return msg
		}
		return ev.Data
	}
	t.Fatalf("timed out waiting for %s", want)
	return nil
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("json decode: %v", err)
	}
}
