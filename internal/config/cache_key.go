package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestPayloadKey returns the cache key for a test's candidate-facing payload.
func (r *CacheKeyStruct) TestPayloadKey(testID string) string {
	return fmt.Sprintf("test:%s:payload", testID)
}

// SessionDraftKey returns the cache key for a session's draft answer buffer.
// Drafts are a convenience buffer for the client; the write-once answers
// record on the session row is only ever set at finalization.
func (r *CacheKeyStruct) SessionDraftKey(sessionID string) string {
	return fmt.Sprintf("session:%s:drafts", sessionID)
}

// TestLeaderboardKey returns the ZSET key holding a test's completed-session
// leaderboard (member = session id, score = final score).
func (r *CacheKeyStruct) TestLeaderboardKey(testID string) string {
	return fmt.Sprintf("test:%s:leaderboard", testID)
}

var CacheKey = NewCacheKeyStruct()
