package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func newTranslateServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req translateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make([]string, len(req.Q))
		for i, q := range req.Q {
			out[i] = req.Target + ":" + strings.ToUpper(q)
		}
		_ = json.NewEncoder(w).Encode(translateResponse{TranslatedText: out})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTranslationService_TranslateAndCache(t *testing.T) {
	_, rdb := newTestRedis(t)
	var calls atomic.Int32
	srv := newTranslateServer(t, &calls)
	svc := NewTranslationService(srv.URL, time.Second, "id", rdb, zerolog.Nop())
	ctx := context.Background()

	out, err := svc.Translate(ctx, []string{"soal", "jawab"}, language.English)
	require.NoError(t, err)
	assert.Equal(t, []string{"en:SOAL", "en:JAWAB"}, out)
	assert.EqualValues(t, 1, calls.Load())

	out, err = svc.For(language.English).Translate(ctx, []string{"jawab", "baru"})
	require.NoError(t, err)
	assert.Equal(t, []string{"en:JAWAB", "en:BARU"}, out)
	assert.EqualValues(t, 2, calls.Load())

	_, err = svc.Translate(ctx, []string{"soal", "baru"}, language.English)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestTranslationService_Failures(t *testing.T) {
	_, rdb := newTestRedis(t)

	disabled := NewTranslationService("", time.Second, "id", rdb, zerolog.Nop())
	_, err := disabled.Translate(context.Background(), []string{"x"}, language.English)
	assert.ErrorIs(t, err, ErrTranslateDisabled)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	broken := NewTranslationService(srv.URL, time.Second, "id", rdb, zerolog.Nop())
	_, err = broken.Translate(context.Background(), []string{"x"}, language.English)
	assert.Error(t, err)
}

func TestTranslationService_ResolveLanguage(t *testing.T) {
	_, rdb := newTestRedis(t)
	svc := NewTranslationService("", time.Second, "id", rdb, zerolog.Nop())

	assert.Equal(t, "en", baseCode(svc.ResolveLanguage("en", "id")))
	assert.Equal(t, "fr", baseCode(svc.ResolveLanguage("", "fr-CH, fr;q=0.9, en;q=0.8")))
	assert.Equal(t, "id", baseCode(svc.ResolveLanguage("", "")))
	assert.Equal(t, "id", baseCode(svc.ResolveLanguage("!!", "")))
}
