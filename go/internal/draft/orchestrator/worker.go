package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/draft"
)

// worker processes auto-pick jobs from the work channel
func (o *Orchestrator) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			log.Debug().
				Str("instance", o.instanceID).
				Int("worker_id", workerID).
				Msg("worker shutting down")
			return
		case j := <-o.workCh:
			if err := o.handle(ctx, j); err != nil {
				log.Error().
					Err(err).
					Str("room_id", j.roomID).
					Str("user_id", j.userID).
					Int("pick_index", j.pickIndex).
					Str("reason", j.reason).
					Int("worker_id", workerID).
					Msg("auto-pick job failed")
			}
			o.done(j.roomID)
		}
	}
}

// handle runs one job. Jobs for a turn that has already moved on are dropped.
func (o *Orchestrator) handle(ctx context.Context, j job) error {
	room, err := o.svc.Room(j.roomID)
	if err != nil {
		return err
	}
	if j.reason == draft.ReasonTimer && !room.IsTimerExpired() {
		return nil
	}

	res, err := o.svc.AutoPickTurn(ctx, j.roomID, j.userID, j.pickIndex, j.reason)
	switch {
	case errors.Is(err, draft.ErrNotYourTurn), errors.Is(err, draft.ErrPaused):
		log.Debug().Err(err).Str("room_id", j.roomID).Int("pick_index", j.pickIndex).Msg("stale auto-pick job dropped")
		return nil
	case err != nil:
		return err
	}

	log.Debug().
		Str("room_id", j.roomID).
		Str("user_id", j.userID).
		Int("pick_index", j.pickIndex).
		Bool("skipped", res.Skipped).
		Str("reason", j.reason).
		Msg("auto-pick job done")
	return nil
}
