package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/skillevaluator/backend/internal/config"
)

// draftTTL bounds how long an abandoned draft buffer lingers in Redis.
const draftTTL = 24 * time.Hour

// DraftService buffers in-progress answers in a Redis hash per session.
// Drafts are a client convenience for reconnects; the write-once answers
// record on the session row is set only at finalization and never from here.
type DraftService struct {
	rdb *redis.Client
}

// NewDraftService creates a new DraftService.
func NewDraftService(rdb *redis.Client) *DraftService {
	return &DraftService{rdb: rdb}
}

// Save stores one draft answer and refreshes the buffer's TTL.
func (s *DraftService) Save(ctx context.Context, sessionID uuid.UUID, questionID, answer string) error {
	key := config.CacheKey.SessionDraftKey(sessionID.String())
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, questionID, answer)
	pipe.Expire(ctx, key, draftTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Load returns every draft answer buffered for a session.
func (s *DraftService) Load(ctx context.Context, sessionID uuid.UUID) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, config.CacheKey.SessionDraftKey(sessionID.String())).Result()
}

// Clear drops a session's draft buffer.
func (s *DraftService) Clear(ctx context.Context, sessionID uuid.UUID) error {
	return s.rdb.Del(ctx, config.CacheKey.SessionDraftKey(sessionID.String())).Err()
}
