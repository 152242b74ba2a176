package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/puckdraft/go/internal/dbconfig"
	"github.com/mcdev12/puckdraft/go/internal/models"
)

const createPlayers = `
CREATE TABLE IF NOT EXISTS players (
  id                 TEXT PRIMARY KEY,
  first_name         TEXT NOT NULL,
  last_name          TEXT NOT NULL,
  position           TEXT NOT NULL,
  eligible_positions TEXT[] NOT NULL DEFAULT '{}',
  cap_hit            BIGINT NOT NULL,
  nhl_team           TEXT NOT NULL DEFAULT '',
  games              INT NOT NULL DEFAULT 0,
  goals              INT NOT NULL DEFAULT 0,
  assists            INT NOT NULL DEFAULT 0,
  points             INT NOT NULL DEFAULT 0
)`

const upsertPlayer = `
INSERT INTO players (
  id, first_name, last_name, position, eligible_positions, cap_hit, nhl_team,
  games, goals, assists, points
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  first_name = EXCLUDED.first_name,
  last_name = EXCLUDED.last_name,
  position = EXCLUDED.position,
  eligible_positions = EXCLUDED.eligible_positions,
  cap_hit = EXCLUDED.cap_hit,
  nhl_team = EXCLUDED.nhl_team,
  games = EXCLUDED.games,
  goals = EXCLUDED.goals,
  assists = EXCLUDED.assists,
  points = EXCLUDED.points`

func main() {
	ctx := context.Background()

	path := "data/players.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load players.json
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		os.Exit(1)
	}
	var players []models.Player
	if err := json.Unmarshal(data, &players); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal players: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect to DB
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, createPlayers); err != nil {
		fmt.Fprintf(os.Stderr, "create players table: %v\n", err)
		os.Exit(1)
	}

	// 3) Seed players
	total, written, errs := len(players), 0, 0
	for _, p := range players {
		eligible := make([]string, 0, len(p.EligiblePositions))
		for _, pos := range p.EligiblePositions {
			eligible = append(eligible, string(pos))
		}
		if len(eligible) == 0 {
			eligible = append(eligible, string(p.Position))
		}

		_, err := pool.Exec(ctx, upsertPlayer,
			p.ID, p.FirstName, p.LastName, string(p.Position), eligible, p.CapHit, p.Team,
			p.Stats.Games, p.Stats.Goals, p.Stats.Assists, p.Stats.Points,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed %s: %v\n", p.ID, err)
			errs++
			continue
		}
		written++
	}
	fmt.Printf("Players seed: total=%d written=%d errors=%d\n", total, written, errs)
	if errs > 0 {
		os.Exit(1)
	}
}
