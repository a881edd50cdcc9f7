package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AdaptiveSessionKey returns the cache key holding an adaptive session's state
func (r *CacheKeyStruct) AdaptiveSessionKey(studentID, subjectID int, assessmentID string) string {
	return fmt.Sprintf("student:%d:subject:%d:assessment:%s:adaptive_session", studentID, subjectID, assessmentID)
}

// AdaptiveSessionLockKey returns the cache key used to serialize submissions for a session
func (r *CacheKeyStruct) AdaptiveSessionLockKey(studentID, subjectID int, assessmentID string) string {
	return fmt.Sprintf("student:%d:subject:%d:assessment:%s:lock", studentID, subjectID, assessmentID)
}

var CacheKey = NewCacheKeyStruct()
