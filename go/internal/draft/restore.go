package draft

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/catalog"
	"github.com/mcdev12/puckdraft/go/internal/models"
	"github.com/mcdev12/puckdraft/go/internal/persistence"
)

// Restore rebuilds every persisted room from its record and pick log and
// returns how many rooms it restored. Replaying the same log twice leaves the
// rooms unchanged.
func Restore(ctx context.Context, manager *Manager, store *catalog.Store, repo persistence.Repository) (int, error) {
	rooms, err := repo.ListRooms(ctx)
	if err != nil {
		return 0, fmt.Errorf("list rooms: %w", err)
	}

	restored := 0
	for _, rec := range rooms {
		if err := ctx.Err(); err != nil {
			return restored, err
		}
		picks, err := repo.ListPicks(ctx, rec.RoomID)
		if err != nil {
			return restored, fmt.Errorf("list picks for %s: %w", rec.RoomID, err)
		}

		snake := rec.SnakeDraft
		cfg := Config{
			RoomID:     rec.RoomID,
			PickOrder:  rec.PickOrder,
			TimerSec:   rec.TimerSec,
			SnakeDraft: &snake,
		}
		if err := cfg.Validate(); err != nil {
			log.Warn().Err(err).Str("room_id", rec.RoomID).Msg("skipping unrestorable room")
			continue
		}

		for _, id := range cfg.PickOrder {
			store.EnsureTeam(id, "Team "+id, "default-logo")
		}
		room, _ := manager.GetOrCreate(cfg)
		room.Start()

		n := 0
		err = store.Update(func(players map[string]*models.Player, teams map[string]*models.Team) error {
			for _, p := range picks {
				ok, rerr := room.Replay(p, players, teams)
				if rerr != nil {
					log.Debug().Err(rerr).
						Str("room_id", p.RoomID).
						Int("pick_index", p.PickIndex).
						Str("player_id", p.PlayerID).
						Msg("pick could not be replayed, recorded as skipped")
				}
				if ok {
					n++
				}
			}
			return nil
		})
		if err != nil {
			return restored, err
		}
		restored++
		log.Info().
			Str("room_id", rec.RoomID).
			Int("picks", len(picks)).
			Int("applied", n).
			Msg("draft room restored")
	}
	return restored, nil
}

// Replay applies one persisted pick. Records whose index is not the room's
// next pick index are ignored, which makes replay idempotent. A record that
// no longer validates against the catalog still consumes its turn as a skip
// so later records keep their places.
func (r *Room) Replay(rec persistence.PickRecord, players map[string]*models.Player, teams map[string]*models.Team) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || rec.PickIndex != r.pickIndex || r.stateLocked().Completed {
		return false, nil
	}
	wasPaused := r.paused
	r.paused = false
	defer func() { r.paused = wasPaused }()

	if rec.Skipped || rec.PlayerID == "" {
		r.skipLocked(r.stateLocked().ActiveUserID, rec.CreatedAt)
		r.timerStartedAt = r.clock.Now()
		return true, nil
	}

	active := r.stateLocked().ActiveUserID
	if active != rec.UserID {
		r.skipLocked(active, rec.CreatedAt)
		r.timerStartedAt = r.clock.Now()
		return true, fmt.Errorf("%w: record for %s, turn belongs to %s", ErrNotYourTurn, rec.UserID, active)
	}
	if _, err := r.makePickLocked(rec.UserID, rec.PlayerID, players, teams, rec.Autopick); err != nil {
		r.skipLocked(rec.UserID, rec.CreatedAt)
		r.timerStartedAt = r.clock.Now()
		return true, err
	}
	if !rec.CreatedAt.IsZero() {
		r.picks[len(r.picks)-1].Timestamp = rec.CreatedAt
	}
	return true, nil
}
