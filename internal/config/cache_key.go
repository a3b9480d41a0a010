package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestPayloadKey returns the cache key for a test's student-facing payload
// (sections and questions without correct answers).
func (r *CacheKeyStruct) TestPayloadKey(testID string) string {
	return fmt.Sprintf("test:%s:payload", testID)
}

// TestAnswerKey returns the cache key for a test's answer key and marking
// scheme. Never included in any student-facing payload.
func (r *CacheKeyStruct) TestAnswerKey(testID string) string {
	return fmt.Sprintf("test:%s:key", testID)
}

// StudentActiveAttemptKey returns the cache key for a student's currently
// active attempt. The WebSocket stream reads it to confirm ownership
// without a database round trip.
func (r *CacheKeyStruct) StudentActiveAttemptKey(studentID int64) string {
	return fmt.Sprintf("student:%d:active_attempt", studentID)
}

var CacheKey = NewCacheKeyStruct()
