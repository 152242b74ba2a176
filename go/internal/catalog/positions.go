package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/models"
)

// PositionsProvider resolves which roster positions a player may fill.
type PositionsProvider interface {
	EligiblePositions(ctx context.Context, player *models.Player) ([]models.Position, error)
}

// PrimaryOnlyProvider returns just the player's listed position.
type PrimaryOnlyProvider struct{}

func (PrimaryOnlyProvider) EligiblePositions(_ context.Context, player *models.Player) ([]models.Position, error) {
	return []models.Position{player.Position}, nil
}

// OverridesProvider serves hand-maintained multi-position lists keyed by player id.
type OverridesProvider struct {
	overrides map[string][]models.Position
}

// NewOverridesProvider drops unknown positions from every entry.
func NewOverridesProvider(overrides map[string][]models.Position) *OverridesProvider {
	valid := make(map[string][]models.Position, len(overrides))
	for id, list := range overrides {
		for _, p := range list {
			if p.Valid() {
				valid[id] = append(valid[id], p)
			}
		}
	}
	return &OverridesProvider{overrides: valid}
}

// LoadOverridesFromFile reads a {"playerId": ["C","LW"]} JSON document.
func LoadOverridesFromFile(path string) (*OverridesProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	var raw map[string][]models.Position
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal overrides: %w", err)
	}
	return NewOverridesProvider(raw), nil
}

func (o *OverridesProvider) EligiblePositions(_ context.Context, player *models.Player) ([]models.Position, error) {
	if list := o.overrides[player.ID]; len(list) > 0 {
		return list, nil
	}
	return []models.Position{player.Position}, nil
}

// CombinedProvider unions the answers of its providers in order.
// A failing provider is skipped.
type CombinedProvider []PositionsProvider

func (c CombinedProvider) EligiblePositions(ctx context.Context, player *models.Player) ([]models.Position, error) {
	seen := make(map[models.Position]bool)
	var merged []models.Position
	for _, p := range c {
		list, err := p.EligiblePositions(ctx, player)
		if err != nil {
			log.Debug().Err(err).Str("player_id", player.ID).Msg("positions provider failed")
			continue
		}
		for _, pos := range list {
			if !seen[pos] {
				seen[pos] = true
				merged = append(merged, pos)
			}
		}
	}
	if len(merged) == 0 {
		return []models.Position{player.Position}, nil
	}
	return merged, nil
}

// DefaultPositionsProvider combines the primary position with the overrides
// file when one can be read.
func DefaultPositionsProvider(overridesPath string) PositionsProvider {
	primary := PrimaryOnlyProvider{}
	if overridesPath == "" {
		return primary
	}
	overrides, err := LoadOverridesFromFile(overridesPath)
	if err != nil {
		log.Info().Err(err).Str("path", overridesPath).Msg("no eligible position overrides, using primary positions")
		return primary
	}
	return CombinedProvider{primary, overrides}
}

// PositionsUpdater periodically refreshes eligible positions in the store.
type PositionsUpdater struct {
	store    *Store
	provider PositionsProvider
	clock    clockwork.Clock
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPositionsUpdater builds an updater. Zero interval means three hours.
func NewPositionsUpdater(store *Store, provider PositionsProvider, clock clockwork.Clock, interval time.Duration) *PositionsUpdater {
	if interval <= 0 {
		interval = 3 * time.Hour
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PositionsUpdater{store: store, provider: provider, clock: clock, interval: interval}
}

// RunOnce applies the provider to every player and returns how many changed.
func (u *PositionsUpdater) RunOnce(ctx context.Context) int {
	updated := 0
	_ = u.store.Update(func(players map[string]*models.Player, _ map[string]*models.Team) error {
		for _, p := range players {
			next, err := u.provider.EligiblePositions(ctx, p)
			if err != nil {
				continue
			}
			if samePositions(p.EligiblePositions, next) {
				continue
			}
			p.EligiblePositions = append([]models.Position(nil), next...)
			updated++
		}
		return nil
	})
	log.Debug().Int("updated", updated).Msg("eligible positions refreshed")
	return updated
}

// Start runs once immediately and then on every interval until Stop.
func (u *PositionsUpdater) Start(ctx context.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cancel != nil {
		return
	}
	ctx, u.cancel = context.WithCancel(ctx)
	u.done = make(chan struct{})

	u.RunOnce(ctx)
	ticker := u.clock.NewTicker(u.interval)
	go func() {
		defer close(u.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				u.RunOnce(ctx)
			}
		}
	}()
}

// Stop halts the background loop and waits for it to exit.
func (u *PositionsUpdater) Stop() {
	u.mu.Lock()
	cancel, done := u.cancel, u.done
	u.cancel = nil
	u.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func samePositions(a, b []models.Position) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
