package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/session"
	"golang.org/x/text/language"
)

const translationTTL = 24 * time.Hour

type translateRequest struct {
	Q      []string `json:"q"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Format string   `json:"format"`
}

type translateResponse struct {
	TranslatedText []string `json:"translatedText"`
}

// TranslationService calls the external translation endpoint and caches
// every translated text in Redis.
type TranslationService struct {
	url      string
	client   *http.Client
	rdb      *redis.Client
	fallback language.Tag
	log      zerolog.Logger
}

// NewTranslationService creates a new TranslationService. An empty url
// disables translation.
func NewTranslationService(url string, timeout time.Duration, fallback string, rdb *redis.Client, log zerolog.Logger) *TranslationService {
	tag, err := language.Parse(fallback)
	if err != nil {
		tag = language.Indonesian
	}
	return &TranslationService{
		url:      url,
		client:   &http.Client{Timeout: timeout},
		rdb:      rdb,
		fallback: tag,
		log:      log.With().Str("component", "translation_service").Logger(),
	}
}

// Enabled reports whether a translation endpoint is configured.
func (s *TranslationService) Enabled() bool {
	return s.url != ""
}

// Translate returns texts translated to lang, preserving order.
func (s *TranslationService) Translate(ctx context.Context, texts []string, lang language.Tag) ([]string, error) {
	if !s.Enabled() {
		return nil, ErrTranslateDisabled
	}
	if len(texts) == 0 {
		return []string{}, nil
	}

	target := baseCode(lang)
	keys := make([]string, len(texts))
	for i, t := range texts {
		sum := sha256.Sum256([]byte(t))
		keys[i] = config.CacheKey.TranslationKey(target, hex.EncodeToString(sum[:]))
	}

	out := make([]string, len(texts))
	var missing []int

	cached, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		s.log.Warn().Err(err).Msg("Redis error reading translations, calling endpoint for all")
		cached = nil
	}
	for i := range texts {
		if cached != nil {
			if v, ok := cached[i].(string); ok {
				out[i] = v
				continue
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}
	translated, err := s.call(ctx, batch, target)
	if err != nil {
		return nil, err
	}

	pipe := s.rdb.Pipeline()
	for j, i := range missing {
		out[i] = translated[j]
		pipe.Set(ctx, keys[i], translated[j], translationTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache translations")
	}
	return out, nil
}

func (s *TranslationService) call(ctx context.Context, texts []string, target string) ([]string, error) {
	body, err := json.Marshal(translateRequest{Q: texts, Source: "auto", Target: target, Format: "text"})
	if err != nil {
		return nil, fmt.Errorf("marshal translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("translate returned %s", resp.Status)
	}

	var result translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode translate response: %w", err)
	}
	if len(result.TranslatedText) != len(texts) {
		return nil, errors.New("translate response length mismatch")
	}
	return result.TranslatedText, nil
}

// For binds the service to a target language.
func (s *TranslationService) For(lang language.Tag) session.Translator {
	return boundTranslator{svc: s, lang: lang}
}

type boundTranslator struct {
	svc  *TranslationService
	lang language.Tag
}

func (b boundTranslator) Translate(ctx context.Context, texts []string) ([]string, error) {
	return b.svc.Translate(ctx, texts, b.lang)
}

// ResolveLanguage picks the target language from an explicit query value,
// then the Accept-Language header, then the configured fallback.
func (s *TranslationService) ResolveLanguage(query, acceptLanguage string) language.Tag {
	if query != "" {
		if tag, err := language.Parse(query); err == nil {
			return tag
		}
	}
	if acceptLanguage != "" {
		tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err == nil && len(tags) > 0 {
			return tags[0]
		}
	}
	return s.fallback
}

func baseCode(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}
