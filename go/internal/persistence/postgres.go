package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/puckdraft/go/internal/sqlutil"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS draft_rooms (
	room_id     TEXT PRIMARY KEY,
	timer_sec   DOUBLE PRECISION NOT NULL,
	snake_draft BOOLEAN NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	pick_order  JSONB
);
CREATE TABLE IF NOT EXISTS draft_picks (
	room_id    TEXT NOT NULL,
	pick_index INTEGER NOT NULL,
	round      INTEGER NOT NULL,
	slot       INTEGER NOT NULL,
	user_id    TEXT NOT NULL,
	player_id  TEXT NOT NULL,
	autopick   BOOLEAN NOT NULL,
	skipped    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (room_id, pick_index)
);
`

// PostgresRepository stores records through database/sql and lib/pq.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository connects, pings and ensures the schema.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return newPostgresRepository(ctx, db)
}

func newPostgresRepository(ctx context.Context, db *sql.DB) (*PostgresRepository, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := sqlutil.ExecSchema(ctx, db, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	log.Info().Msg("postgres draft repository ready")
	return &PostgresRepository{db: db}, nil
}

func (p *PostgresRepository) SaveRoom(ctx context.Context, room RoomRecord) error {
	order, err := json.Marshal(room.PickOrder)
	if err != nil {
		return fmt.Errorf("marshal pick order: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO draft_rooms (room_id, timer_sec, snake_draft, created_at, pick_order)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id) DO UPDATE SET
			timer_sec = EXCLUDED.timer_sec,
			snake_draft = EXCLUDED.snake_draft,
			created_at = EXCLUDED.created_at,
			pick_order = EXCLUDED.pick_order`,
		room.RoomID, room.TimerSec, room.SnakeDraft, room.CreatedAt,
		pqtype.NullRawMessage{RawMessage: order, Valid: len(room.PickOrder) > 0})
	if err != nil {
		return fmt.Errorf("save room %s: %w", room.RoomID, err)
	}
	return nil
}

func (p *PostgresRepository) SavePick(ctx context.Context, pick PickRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO draft_picks (room_id, pick_index, round, slot, user_id, player_id, autopick, skipped, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (room_id, pick_index) DO UPDATE SET
			round = EXCLUDED.round,
			slot = EXCLUDED.slot,
			user_id = EXCLUDED.user_id,
			player_id = EXCLUDED.player_id,
			autopick = EXCLUDED.autopick,
			skipped = EXCLUDED.skipped,
			created_at = EXCLUDED.created_at`,
		pick.RoomID, pick.PickIndex, pick.Round, pick.Slot, pick.UserID, pick.PlayerID,
		pick.Autopick, pick.Skipped, pick.CreatedAt)
	if err != nil {
		return fmt.Errorf("save pick %s:%d: %w", pick.RoomID, pick.PickIndex, err)
	}
	return nil
}

func (p *PostgresRepository) GetRoom(ctx context.Context, roomID string) (RoomRecord, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT room_id, timer_sec, snake_draft, created_at, pick_order
		FROM draft_rooms WHERE room_id = $1`, roomID)
	room, err := scanPostgresRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RoomRecord{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return room, err
}

func (p *PostgresRepository) ListRooms(ctx context.Context) ([]RoomRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT room_id, timer_sec, snake_draft, created_at, pick_order
		FROM draft_rooms ORDER BY created_at, room_id`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []RoomRecord
	for rows.Next() {
		room, err := scanPostgresRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func (p *PostgresRepository) ListPicks(ctx context.Context, roomID string) ([]PickRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT room_id, pick_index, round, slot, user_id, player_id, autopick, skipped, created_at
		FROM draft_picks WHERE room_id = $1 ORDER BY pick_index ASC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}
	defer rows.Close()

	out := make([]PickRecord, 0)
	for rows.Next() {
		var pk PickRecord
		if err := rows.Scan(&pk.RoomID, &pk.PickIndex, &pk.Round, &pk.Slot, &pk.UserID, &pk.PlayerID,
			&pk.Autopick, &pk.Skipped, &pk.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		out = append(out, pk)
	}
	return out, rows.Err()
}

func (p *PostgresRepository) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresRepository) Close() error {
	return p.db.Close()
}

func scanPostgresRoom(row rowScanner) (RoomRecord, error) {
	var (
		r     RoomRecord
		order pqtype.NullRawMessage
	)
	if err := row.Scan(&r.RoomID, &r.TimerSec, &r.SnakeDraft, &r.CreatedAt, &order); err != nil {
		return RoomRecord{}, err
	}
	r.PickOrder = []string{}
	if order.Valid {
		if err := json.Unmarshal(order.RawMessage, &r.PickOrder); err != nil {
			return RoomRecord{}, fmt.Errorf("decode pick order for %s: %w", r.RoomID, err)
		}
	}
	return r, nil
}
