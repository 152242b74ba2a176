package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRepositoryContract(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	roomID := "room-" + uuid.NewString()
	created := time.Date(2025, 10, 1, 18, 30, 0, 0, time.UTC)

	require.NoError(t, repo.Ping(ctx))

	_, err := repo.GetRoom(ctx, roomID)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	room := RoomRecord{RoomID: roomID, TimerSec: 0.5, SnakeDraft: true, CreatedAt: created, PickOrder: []string{"u1", "u2"}}
	require.NoError(t, repo.SaveRoom(ctx, room))
	room.TimerSec = 60
	require.NoError(t, repo.SaveRoom(ctx, room), "save is an upsert")

	got, err := repo.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, 60.0, got.TimerSec)
	assert.True(t, got.SnakeDraft)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, []string{"u1", "u2"}, got.PickOrder)

	rooms, err := repo.ListRooms(ctx)
	require.NoError(t, err)
	found := false
	for _, r := range rooms {
		if r.RoomID == roomID {
			found = true
		}
	}
	assert.True(t, found)

	picks := []PickRecord{
		{RoomID: roomID, PickIndex: 2, Round: 2, Slot: 0, UserID: "u2", Autopick: true, Skipped: true, CreatedAt: created},
		{RoomID: roomID, PickIndex: 0, Round: 1, Slot: 0, UserID: "u1", PlayerID: "p1", CreatedAt: created},
		{RoomID: roomID, PickIndex: 1, Round: 1, Slot: 1, UserID: "u2", PlayerID: "p2", Autopick: true, CreatedAt: created},
	}
	for _, p := range picks {
		require.NoError(t, repo.SavePick(ctx, p))
	}
	// replayed write of the same index replaces rather than duplicates
	require.NoError(t, repo.SavePick(ctx, picks[1]))

	listed, err := repo.ListPicks(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i, p := range listed {
		assert.Equal(t, i, p.PickIndex)
	}
	assert.Equal(t, "p1", listed[0].PlayerID)
	assert.True(t, listed[1].Autopick)
	assert.True(t, listed[2].Skipped)
	assert.Empty(t, listed[2].PlayerID)

	empty, err := repo.ListPicks(ctx, "nobody-"+roomID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	runRepositoryContract(t, repo)
	require.NoError(t, repo.Close())
}

func TestSQLiteRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "draft.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	runRepositoryContract(t, repo)
	require.NoError(t, repo.Close())

	// data survives reopening
	reopened, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	defer reopened.Close()
	rooms, err := reopened.ListRooms(context.Background())
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	repo, err := NewPostgresRepository(context.Background(), dsn)
	require.NoError(t, err)
	defer repo.Close()
	runRepositoryContract(t, repo)
}

func TestMongoRepository(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	repo, err := NewMongoRepository(context.Background(), uri, "puckdraft_test")
	require.NoError(t, err)
	defer repo.Close()
	runRepositoryContract(t, repo)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	repo, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryRepository{}, repo)

	repo, err = Open(ctx, Options{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteRepository{}, repo)
	require.NoError(t, repo.Close())

	_, err = Open(ctx, Options{Driver: "cassandra"})
	assert.ErrorContains(t, err, "unknown storage driver")
}
