package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/models"
)

// LoadPlayersFromFile reads a JSON array of players and replaces the catalog.
func (s *Store) LoadPlayersFromFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read players file: %w", err)
	}
	var players []*models.Player
	if err := json.Unmarshal(data, &players); err != nil {
		return 0, fmt.Errorf("unmarshal players: %w", err)
	}
	if err := validatePlayers(players); err != nil {
		return 0, err
	}

	s.SetPlayers(players)
	log.Info().Int("count", len(players)).Str("path", path).Msg("loaded players from file")
	return len(players), nil
}

const selectPlayers = `
SELECT id, first_name, last_name, position, eligible_positions, cap_hit, nhl_team,
       games, goals, assists, points
FROM players
ORDER BY id`

// LoadPlayersFromPostgres reads the players table seeded by the seed_players tool.
func (s *Store) LoadPlayersFromPostgres(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	rows, err := pool.Query(ctx, selectPlayers)
	if err != nil {
		return 0, fmt.Errorf("query players: %w", err)
	}

	players, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Player, error) {
		var (
			p        models.Player
			position string
			eligible []string
		)
		if err := row.Scan(
			&p.ID, &p.FirstName, &p.LastName, &position, &eligible, &p.CapHit, &p.Team,
			&p.Stats.Games, &p.Stats.Goals, &p.Stats.Assists, &p.Stats.Points,
		); err != nil {
			return nil, err
		}
		p.Position = models.Position(position)
		for _, e := range eligible {
			p.EligiblePositions = append(p.EligiblePositions, models.Position(e))
		}
		return &p, nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan players: %w", err)
	}
	if err := validatePlayers(players); err != nil {
		return 0, err
	}

	s.SetPlayers(players)
	log.Info().Int("count", len(players)).Msg("loaded players from postgres")
	return len(players), nil
}

func validatePlayers(players []*models.Player) error {
	for _, p := range players {
		if p.ID == "" {
			return fmt.Errorf("player without id")
		}
		if !p.Position.Valid() {
			return fmt.Errorf("player %s: invalid position %q", p.ID, p.Position)
		}
		if p.CapHit <= 0 {
			return fmt.Errorf("player %s: cap hit must be positive", p.ID)
		}
	}
	return nil
}
