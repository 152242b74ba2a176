package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/sqlutil"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS draft_rooms (
	room_id     TEXT PRIMARY KEY,
	timer_sec   REAL NOT NULL,
	snake_draft INTEGER NOT NULL,
	created_at  INTEGER NOT NULL,
	pick_order  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS draft_picks (
	room_id    TEXT NOT NULL,
	pick_index INTEGER NOT NULL,
	round      INTEGER NOT NULL,
	slot       INTEGER NOT NULL,
	user_id    TEXT NOT NULL,
	player_id  TEXT NOT NULL,
	autopick   INTEGER NOT NULL,
	skipped    INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (room_id, pick_index)
);
CREATE INDEX IF NOT EXISTS idx_draft_picks_room ON draft_picks(room_id);
`

// SQLiteRepository is the embedded durable store.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (or creates) the database file in WAL mode.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if path == "" {
		path = filepath.Join("data", "draft.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps WAL happy without busy retries
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if err := sqlutil.ExecSchema(context.Background(), db, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Info().Str("path", path).Msg("sqlite draft repository ready")
	return &SQLiteRepository{db: db}, nil
}

func (s *SQLiteRepository) SaveRoom(ctx context.Context, room RoomRecord) error {
	order, err := json.Marshal(room.PickOrder)
	if err != nil {
		return fmt.Errorf("marshal pick order: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO draft_rooms (room_id, timer_sec, snake_draft, created_at, pick_order)
		VALUES (?, ?, ?, ?, ?)`,
		room.RoomID, room.TimerSec, sqlutil.BoolToInt(room.SnakeDraft), sqlutil.ToUnixMilli(room.CreatedAt), string(order))
	if err != nil {
		return fmt.Errorf("save room %s: %w", room.RoomID, err)
	}
	return nil
}

func (s *SQLiteRepository) SavePick(ctx context.Context, pick PickRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO draft_picks
			(room_id, pick_index, round, slot, user_id, player_id, autopick, skipped, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pick.RoomID, pick.PickIndex, pick.Round, pick.Slot, pick.UserID, pick.PlayerID,
		sqlutil.BoolToInt(pick.Autopick), sqlutil.BoolToInt(pick.Skipped), sqlutil.ToUnixMilli(pick.CreatedAt))
	if err != nil {
		return fmt.Errorf("save pick %s:%d: %w", pick.RoomID, pick.PickIndex, err)
	}
	return nil
}

func (s *SQLiteRepository) GetRoom(ctx context.Context, roomID string) (RoomRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT room_id, timer_sec, snake_draft, created_at, pick_order
		FROM draft_rooms WHERE room_id = ?`, roomID)
	room, err := scanSQLiteRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RoomRecord{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return room, err
}

func (s *SQLiteRepository) ListRooms(ctx context.Context) ([]RoomRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id, timer_sec, snake_draft, created_at, pick_order
		FROM draft_rooms ORDER BY created_at, room_id`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []RoomRecord
	for rows.Next() {
		room, err := scanSQLiteRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func (s *SQLiteRepository) ListPicks(ctx context.Context, roomID string) ([]PickRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id, pick_index, round, slot, user_id, player_id, autopick, skipped, created_at
		FROM draft_picks WHERE room_id = ? ORDER BY pick_index ASC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}
	defer rows.Close()

	out := make([]PickRecord, 0)
	for rows.Next() {
		var (
			p                 PickRecord
			autopick, skipped int
			created           int64
		)
		if err := rows.Scan(&p.RoomID, &p.PickIndex, &p.Round, &p.Slot, &p.UserID, &p.PlayerID, &autopick, &skipped, &created); err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		p.Autopick = sqlutil.IntToBool(autopick)
		p.Skipped = sqlutil.IntToBool(skipped)
		p.CreatedAt = sqlutil.FromUnixMilli(created)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteRepository) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteRepository) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRoom(row rowScanner) (RoomRecord, error) {
	var (
		r       RoomRecord
		snake   int
		created int64
		order   string
	)
	if err := row.Scan(&r.RoomID, &r.TimerSec, &snake, &created, &order); err != nil {
		return RoomRecord{}, err
	}
	r.SnakeDraft = sqlutil.IntToBool(snake)
	r.CreatedAt = sqlutil.FromUnixMilli(created)
	if err := json.Unmarshal([]byte(order), &r.PickOrder); err != nil {
		return RoomRecord{}, fmt.Errorf("decode pick order for %s: %w", r.RoomID, err)
	}
	return r, nil
}
