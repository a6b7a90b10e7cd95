package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skillevaluator/backend/internal/config"
	"github.com/skillevaluator/backend/internal/model"
)

type completedSessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	FindCompletedByTest(ctx context.Context, testID uuid.UUID) ([]model.Session, error)
}

// LeaderboardEntry is one row of a test's cached leaderboard.
type LeaderboardEntry struct {
	SessionID uuid.UUID `json:"session_id"`
	Score     int       `json:"score"`
	Rank      int       `json:"rank"`
}

// RankingService derives rank and percentile for completed sessions and
// maintains the per-test leaderboard ZSET in Redis.
//
// The authoritative ranking is always computed from the store; the ZSET is a
// denormalized cache rebuilt by the background worker after each submission.
type RankingService struct {
	sessions completedSessionStore
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewRankingService creates a new RankingService.
func NewRankingService(sessions completedSessionStore, rdb *redis.Client) *RankingService {
	return &RankingService{
		sessions: sessions,
		rdb:      rdb,
		log:      log.With().Str("component", "ranking_service").Logger(),
	}
}

// GetRank returns a completed session's standing among every terminal
// session of the same test. Ranking is by score descending; equal scores
// rank the earlier submission higher, so the ordering is deterministic
// regardless of store return order.
func (s *RankingService) GetRank(ctx context.Context, sessionID, candidateID uuid.UUID) (*model.RankResponse, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.CandidateID != candidateID {
		return nil, ErrUnauthorized
	}
	if !session.Status.IsTerminal() {
		return nil, ErrSessionNotCompleted
	}

	completed, err := s.sessions.FindCompletedByTest(ctx, session.TestID)
	if err != nil {
		return nil, fmt.Errorf("find completed sessions: %w", err)
	}
	total := len(completed)
	if total == 0 {
		return nil, ErrNoRankData
	}

	sortByStanding(completed)

	rank := 0
	for i := range completed {
		if completed[i].ID == sessionID {
			rank = i + 1
			break
		}
	}
	if rank == 0 {
		// The target session did not come back in the completed set.
		return nil, ErrNoRankData
	}

	percentile := round2(float64(total-rank) / float64(total) * 100)

	return &model.RankResponse{
		Rank:            rank,
		TotalCandidates: total,
		Percentile:      percentile,
	}, nil
}

// CompletedSessions returns every terminal session of a test in standing
// order, for the recruiter results view.
func (s *RankingService) CompletedSessions(ctx context.Context, testID uuid.UUID) ([]model.Session, error) {
	completed, err := s.sessions.FindCompletedByTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("find completed sessions: %w", err)
	}
	sortByStanding(completed)
	return completed, nil
}

// EnqueueRefresh asks the background worker to rebuild a test's leaderboard.
func (s *RankingService) EnqueueRefresh(ctx context.Context, testID uuid.UUID) error {
	return s.rdb.LPush(ctx, config.WorkerKey.LeaderboardRefreshQueue, testID.String()).Err()
}

// RebuildLeaderboard recomputes a test's leaderboard ZSET from the store.
// Called by the background worker, never on the request path.
func (s *RankingService) RebuildLeaderboard(ctx context.Context, testID uuid.UUID) error {
	completed, err := s.sessions.FindCompletedByTest(ctx, testID)
	if err != nil {
		return fmt.Errorf("find completed sessions: %w", err)
	}

	key := config.CacheKey.TestLeaderboardKey(testID.String())
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, key)
	for i := range completed {
		sess := &completed[i]
		score := 0
		if sess.Score != nil {
			score = *sess.Score
		}
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(score),
			Member: sess.ID.String(),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rebuild leaderboard: %w", err)
	}

	s.log.Debug().
		Str("test_id", testID.String()).
		Int("sessions", len(completed)).
		Msg("Leaderboard rebuilt")
	return nil
}

// GetLeaderboard returns the top N cached leaderboard entries for a test,
// falling back to a rebuild when the ZSET is cold.
func (s *RankingService) GetLeaderboard(ctx context.Context, testID uuid.UUID, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	key := config.CacheKey.TestLeaderboardKey(testID.String())

	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("check leaderboard: %w", err)
	}
	if exists == 0 {
		if err := s.RebuildLeaderboard(ctx, testID); err != nil {
			return nil, err
		}
	}

	zs, err := s.rdb.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		id, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			SessionID: id,
			Score:     int(z.Score),
			Rank:      i + 1,
		})
	}
	return entries, nil
}

// sortByStanding orders sessions by score descending, breaking ties by the
// earlier submission time, then by id for sessions submitted the same
// instant.
func sortByStanding(sessions []model.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		si, sj := 0, 0
		if sessions[i].Score != nil {
			si = *sessions[i].Score
		}
		if sessions[j].Score != nil {
			sj = *sessions[j].Score
		}
		if si != sj {
			return si > sj
		}
		ti, tj := sessions[i].SubmittedAt, sessions[j].SubmittedAt
		switch {
		case ti == nil && tj == nil:
			return sessions[i].ID.String() < sessions[j].ID.String()
		case ti == nil:
			return false
		case tj == nil:
			return true
		case !ti.Equal(*tj):
			return ti.Before(*tj)
		}
		return sessions[i].ID.String() < sessions[j].ID.String()
	})
}

// round2 rounds to two decimal places.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
