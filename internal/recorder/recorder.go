// Package recorder subscribes to engine events and persists crash results:
// round archives go to postgres, the recent-results strip to redis. The
// engine never waits on either write.
package recorder

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"crashgame/internal/database"
	"crashgame/internal/game"
)

const (
	resultsKey   = "crash:results"
	writeTimeout = 3 * time.Second
)

type Recorder struct {
	store       *database.RoundStore
	redisClient *redis.Client
	historySize int
}

func New(store *database.RoundStore, redisClient *redis.Client, historySize int) *Recorder {
	return &Recorder{
		store:       store,
		redisClient: redisClient,
		historySize: historySize,
	}
}

// Emit implements game.Emitter. Only crash events carry durable state; the
// write happens off the engine goroutine.
func (r *Recorder) Emit(event game.Event) {
	if event.Type != game.EventRoundCrashed {
		return
	}
	crashed, ok := event.Data.(game.RoundCrashedEvent)
	if !ok {
		return
	}
	go r.record(crashed)
}

func (r *Recorder) record(crashed game.RoundCrashedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if r.store != nil {
		rec := database.RoundRecord{
			RoundID:         crashed.RoundID,
			ServerSeed:      crashed.ServerSeed,
			ClientSeed:      crashed.ClientSeed,
			HashCommitment:  game.HashCommitment(crashed.ServerSeed),
			Nonce:           crashed.Nonce,
			CrashMultiplier: crashed.CrashMultiplier,
			EndTime:         crashed.EndTime,
		}
		if err := r.store.SaveRound(ctx, rec); err != nil {
			log.Printf("[RECORDER] Failed to archive round %s: %v", crashed.RoundID, err)
		}
	}

	if r.redisClient != nil {
		pipe := r.redisClient.Pipeline()
		pipe.LPush(ctx, resultsKey, crashed.CrashMultiplier)
		pipe.LTrim(ctx, resultsKey, 0, int64(r.historySize-1))
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("[RECORDER] Failed to push result for round %s: %v", crashed.RoundID, err)
		}
	}
}
