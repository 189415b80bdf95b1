package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's single-device login
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// SetPayloadKey returns the cache key for a set's student-facing payload
func (r *CacheKeyStruct) SetPayloadKey(setID string) string {
	return fmt.Sprintf("set:%s:payload", setID)
}

// SetAnswerKey returns the cache key for a set's correct option indexes
func (r *CacheKeyStruct) SetAnswerKey(setID string) string {
	return fmt.Sprintf("set:%s:key", setID)
}

// ChainDefinitionKey returns the cache key for an exam's chain definition
func (r *CacheKeyStruct) ChainDefinitionKey(examID string) string {
	return fmt.Sprintf("exam:%s:chain", examID)
}

// AttemptStartKey returns the cache key for the start time of a student's attempt at a set
func (r *CacheKeyStruct) AttemptStartKey(setID string, studentID int) string {
	return fmt.Sprintf("student:%d:set:%s:session_start", studentID, setID)
}

// AttemptAnswersKey returns the cache key for a student's autosaved answers of a set
func (r *CacheKeyStruct) AttemptAnswersKey(setID string, studentID int) string {
	return fmt.Sprintf("student:%d:set:%s:answers", studentID, setID)
}

// EntitlementKey returns the cache key for a student's access to an exam
func (r *CacheKeyStruct) EntitlementKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:access", studentID, examID)
}

// TranslationKey returns the cache key for a translated text
func (r *CacheKeyStruct) TranslationKey(lang, digest string) string {
	return fmt.Sprintf("translate:%s:%s", lang, digest)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

// RateLimitKey returns the counter key of a client within a rate-limit window
func (r *CacheKeyStruct) RateLimitKey(scope, client string, window int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", scope, client, window)
}

var CacheKey = NewCacheKeyStruct()
