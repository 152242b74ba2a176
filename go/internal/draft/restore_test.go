package draft

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/puckdraft/go/internal/catalog"
	"github.com/mcdev12/puckdraft/go/internal/draft/outbox"
	"github.com/mcdev12/puckdraft/go/internal/models"
	"github.com/mcdev12/puckdraft/go/internal/persistence"
)

func freshStore(clock clockwork.Clock) *catalog.Store {
	store := catalog.NewStore(clock)
	var players []*models.Player
	for _, p := range testCatalog() {
		players = append(players, p)
	}
	store.SetPlayers(players)
	return store
}

func TestRestore_RebuildsRoomsThroughOutbox(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(epoch)
	repo := persistence.NewMemoryRepository()

	worker := outbox.NewWorker(repo, &outbox.RecordingPublisher{}, outbox.Config{
		QueueSize: 64, MaxRetries: 1, RetryDelay: time.Millisecond, DrainTimeout: time.Second,
	}, nil)
	require.NoError(t, worker.Start(ctx))

	store := freshStore(clock)
	svc := NewService(NewManager(clock), store, repo, worker, nil, clock)
	_, err := svc.StartDraft(ctx, Config{RoomID: "room-1", PickOrder: []string{"u1", "u2"}, TimerSec: 45})
	require.NoError(t, err)

	_, _, err = svc.MakePick(ctx, "room-1", "u1", "d0")
	require.NoError(t, err)
	_, err = svc.AutoPick(ctx, "room-1", "u2", ReasonTimer)
	require.NoError(t, err)
	require.NoError(t, store.Update(func(_ map[string]*models.Player, teams map[string]*models.Team) error {
		teams["u2"].SalaryTotal = models.SalaryCap
		return nil
	}))
	res, err := svc.AutoPick(ctx, "room-1", "u2", ReasonTimer)
	require.NoError(t, err)
	require.True(t, res.Skipped)
	require.NoError(t, worker.Stop())

	before, err := svc.State("room-1")
	require.NoError(t, err)

	restoredStore := freshStore(clock)
	manager := NewManager(clock)
	n, err := Restore(ctx, manager, restoredStore, repo)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	room, ok := manager.Get("room-1")
	require.True(t, ok)
	after := room.State()
	assert.Equal(t, before.PickIndex, after.PickIndex)
	assert.Equal(t, before.ActiveUserID, after.ActiveUserID)
	assert.Equal(t, 45.0, after.TimerSec)
	require.Len(t, after.Picks, 3)
	for i := range before.Picks {
		assert.Equal(t, before.Picks[i].PlayerID, after.Picks[i].PlayerID)
		assert.Equal(t, before.Picks[i].Skipped, after.Picks[i].Skipped)
		assert.Equal(t, before.Picks[i].AutoPick, after.Picks[i].AutoPick)
	}

	team, ok := restoredStore.Team("u1")
	require.True(t, ok)
	assert.Equal(t, []string{"d0"}, team.Players)
	p, err := restoredStore.Player("d0")
	require.NoError(t, err)
	require.NotNil(t, p.DraftedBy)
	assert.Equal(t, "u1", *p.DraftedBy)
}

func TestRestore_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(epoch)
	repo := persistence.NewMemoryRepository()
	require.NoError(t, repo.SaveRoom(ctx, persistence.RoomRecord{RoomID: "room-1", TimerSec: 30, SnakeDraft: true, PickOrder: []string{"u1", "u2"}}))
	for _, rec := range []persistence.PickRecord{
		{RoomID: "room-1", PickIndex: 0, Round: 1, Slot: 0, UserID: "u1", PlayerID: "c0", CreatedAt: epoch},
		{RoomID: "room-1", PickIndex: 1, Round: 1, Slot: 1, UserID: "u2", Autopick: true, Skipped: true, CreatedAt: epoch},
		{RoomID: "room-1", PickIndex: 2, Round: 2, Slot: 0, UserID: "u2", PlayerID: "g0", Autopick: true, CreatedAt: epoch},
	} {
		require.NoError(t, repo.SavePick(ctx, rec))
	}

	store := freshStore(clock)
	manager := NewManager(clock)
	n, err := Restore(ctx, manager, store, repo)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	room, _ := manager.Get("room-1")
	first := room.State()

	n, err = Restore(ctx, manager, store, repo)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st := room.State()
	assert.Equal(t, first, st)
	assert.Equal(t, 3, st.PickIndex)
	assert.Equal(t, "u1", st.ActiveUserID)
	assert.Len(t, st.Picks, 3)
	assert.Equal(t, epoch, st.Picks[2].Timestamp)

	team, _ := store.Team("u2")
	assert.Equal(t, []string{"g0"}, team.Players)
}

func TestRestore_InvalidRecordConsumesTurn(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(epoch)
	repo := persistence.NewMemoryRepository()
	require.NoError(t, repo.SaveRoom(ctx, persistence.RoomRecord{RoomID: "room-1", TimerSec: 30, SnakeDraft: true, PickOrder: []string{"u1", "u2"}}))
	require.NoError(t, repo.SavePick(ctx, persistence.PickRecord{RoomID: "room-1", PickIndex: 0, UserID: "u1", PlayerID: "retired"}))
	require.NoError(t, repo.SavePick(ctx, persistence.PickRecord{RoomID: "room-1", PickIndex: 1, UserID: "u2", PlayerID: "c0"}))

	manager := NewManager(clock)
	n, err := Restore(ctx, manager, freshStore(clock), repo)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	room, _ := manager.Get("room-1")
	st := room.State()
	require.Len(t, st.Picks, 2)
	assert.True(t, st.Picks[0].Skipped)
	assert.Equal(t, "c0", st.Picks[1].PlayerID)
}

func TestRestore_SkipsInvalidRoom(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewMemoryRepository()
	require.NoError(t, repo.SaveRoom(ctx, persistence.RoomRecord{RoomID: "broken", TimerSec: 30}))

	manager := NewManager(nil)
	n, err := Restore(ctx, manager, catalog.NewStore(nil), repo)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, ok := manager.Get("broken")
	assert.False(t, ok)
}
