package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skillevaluator/backend/internal/config"
	"github.com/skillevaluator/backend/internal/service"
)

const (
	leaderboardPollTimeout = 1 * time.Second
	// A burst of submissions for the same test collapses into one rebuild.
	leaderboardDebounce = 500 * time.Millisecond
)

// LeaderboardWorker consumes leaderboard refresh requests off a Redis list
// and rebuilds the per-test ZSET from the session store. Keeping the rebuild
// off the request path means a submission never waits on a full-test scan.
type LeaderboardWorker struct {
	rdb     *redis.Client
	ranking *service.RankingService
	log     zerolog.Logger
}

// NewLeaderboardWorker creates a new LeaderboardWorker.
func NewLeaderboardWorker(rdb *redis.Client, ranking *service.RankingService) *LeaderboardWorker {
	return &LeaderboardWorker{
		rdb:     rdb,
		ranking: ranking,
		log:     log.With().Str("component", "leaderboard_worker").Logger(),
	}
}

// Start runs the consume loop until the context is cancelled.
func (w *LeaderboardWorker) Start(ctx context.Context) {
	w.log.Info().Msg("LeaderboardWorker started")

	pending := make(map[uuid.UUID]struct{})
	lastDrain := time.Now()

	for {
		if len(pending) > 0 && time.Since(lastDrain) >= leaderboardDebounce {
			w.drain(ctx, pending)
			pending = make(map[uuid.UUID]struct{})
			lastDrain = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Draining pending rebuilds...")
			w.drain(context.Background(), pending)
			return

		default:
			item, err := w.rdb.BLPop(ctx, leaderboardPollTimeout, config.WorkerKey.LeaderboardRefreshQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			testID, err := uuid.Parse(item[1])
			if err != nil {
				w.log.Error().Str("raw", item[1]).Msg("Invalid test id on refresh queue")
				continue
			}
			pending[testID] = struct{}{}
		}
	}
}

func (w *LeaderboardWorker) drain(ctx context.Context, pending map[uuid.UUID]struct{}) {
	for testID := range pending {
		if err := w.ranking.RebuildLeaderboard(ctx, testID); err != nil {
			w.log.Error().Err(err).Str("test_id", testID.String()).Msg("Leaderboard rebuild failed")
			continue
		}
	}
}
