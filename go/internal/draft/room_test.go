package draft

import (
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/puckdraft/go/internal/models"
)

var epoch = time.Date(2025, 10, 1, 19, 0, 0, 0, time.UTC)

func newPlayer(id string, pos models.Position, capHit int64, points int) *models.Player {
	return &models.Player{
		ID:        id,
		FirstName: "Skater",
		LastName:  id,
		Position:  pos,
		CapHit:    capHit,
		Stats:     models.PlayerStats{Games: 82, Points: points},
	}
}

// testCatalog has enough players at every position for three full rosters.
func testCatalog() map[string]*models.Player {
	players := make(map[string]*models.Player)
	add := func(prefix string, pos models.Position, n int) {
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("%s%d", prefix, i)
			players[id] = newPlayer(id, pos, 5_000_000, 100-i*3)
		}
	}
	add("lw", models.PositionLeftWing, 4)
	add("c", models.PositionCenter, 4)
	add("rw", models.PositionRightWing, 4)
	add("d", models.PositionDefense, 7)
	add("g", models.PositionGoaltender, 4)
	return players
}

func testTeams(owners ...string) map[string]*models.Team {
	teams := make(map[string]*models.Team, len(owners))
	for _, id := range owners {
		teams[id] = models.NewTeam(id, "Team "+id, "default-logo", 1)
	}
	return teams
}

func newStartedRoom(t *testing.T, clock clockwork.Clock, timerSec float64, order ...string) *Room {
	t.Helper()
	room := NewRoom(Config{RoomID: "room-1", PickOrder: order, TimerSec: timerSec}, clock)
	room.Start()
	return room
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]Config{
		"missing room":    {PickOrder: []string{"u1"}, TimerSec: 30},
		"empty order":     {RoomID: "r", TimerSec: 30},
		"duplicate user":  {RoomID: "r", PickOrder: []string{"u1", "u1"}, TimerSec: 30},
		"blank user":      {RoomID: "r", PickOrder: []string{""}, TimerSec: 30},
		"non-positive tm": {RoomID: "r", PickOrder: []string{"u1"}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
	assert.NoError(t, Config{RoomID: "r", PickOrder: []string{"u1"}, TimerSec: 0.1}.Validate())
}

func TestRoom_NotStartedState(t *testing.T) {
	room := NewRoom(Config{RoomID: "room-1", PickOrder: []string{"u1", "u2"}, TimerSec: 30}, clockwork.NewFakeClockAt(epoch))
	st := room.State()

	assert.False(t, st.Started)
	assert.Empty(t, st.ActiveUserID)
	assert.Nil(t, st.TimerRemainingMs)
	assert.True(t, st.SnakeDraft)
	assert.Equal(t, MaxRounds, st.MaxRounds)
	assert.Equal(t, 1, st.Round)
	assert.NotNil(t, st.Picks)
}

func TestRoom_SnakeOrder(t *testing.T) {
	room := newStartedRoom(t, clockwork.NewFakeClockAt(epoch), 30, "u1", "u2", "u3")

	var order []string
	for i := 0; i < 9; i++ {
		st := room.State()
		order = append(order, st.ActiveUserID)
		_, _, err := room.Skip(st.ActiveUserID)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"u1", "u2", "u3", "u3", "u2", "u1", "u1", "u2", "u3"}, order)

	st := room.State()
	assert.Equal(t, 4, st.Round)
	assert.Equal(t, 0, st.Slot)
	assert.Equal(t, 2, st.EffectiveSlot)
}

func TestRoom_LinearOrder(t *testing.T) {
	snake := false
	room := NewRoom(Config{RoomID: "room-1", PickOrder: []string{"u1", "u2"}, TimerSec: 30, SnakeDraft: &snake}, clockwork.NewFakeClockAt(epoch))
	room.Start()

	var order []string
	for i := 0; i < 4; i++ {
		active := room.State().ActiveUserID
		order = append(order, active)
		_, _, err := room.Skip(active)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"u1", "u2", "u1", "u2"}, order)
	assert.False(t, room.State().SnakeDraft)
}

func TestRoom_StartIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	room := newStartedRoom(t, clock, 30, "u1", "u2")
	_, _, err := room.Skip("u1")
	require.NoError(t, err)

	clock.Advance(5 * time.Second)
	room.Start()

	st := room.State()
	assert.Equal(t, 1, st.PickIndex)
	assert.Equal(t, int64(25_000), st.Remaining())
}

func TestRoom_MakePickValidation(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)

	t.Run("not started", func(t *testing.T) {
		room := NewRoom(Config{RoomID: "room-1", PickOrder: []string{"u1"}, TimerSec: 30}, clock)
		_, err := room.MakePick("u1", "c0", testCatalog(), testTeams("u1"), false)
		assert.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("paused", func(t *testing.T) {
		room := newStartedRoom(t, clock, 30, "u1")
		room.Pause()
		_, err := room.MakePick("u1", "c0", testCatalog(), testTeams("u1"), false)
		assert.ErrorIs(t, err, ErrPaused)
	})

	t.Run("player not found", func(t *testing.T) {
		room := newStartedRoom(t, clock, 30, "u1")
		_, err := room.MakePick("u1", "nobody", testCatalog(), testTeams("u1"), false)
		assert.ErrorIs(t, err, ErrPlayerNotFound)
	})

	t.Run("already picked", func(t *testing.T) {
		players, teams := testCatalog(), testTeams("u1", "u2")
		room := newStartedRoom(t, clock, 30, "u1", "u2")
		_, err := room.MakePick("u1", "c0", players, teams, false)
		require.NoError(t, err)
		_, err = room.MakePick("u2", "c0", players, teams, false)
		assert.ErrorIs(t, err, ErrAlreadyPicked)
	})

	t.Run("already picked wins over turn", func(t *testing.T) {
		players, teams := testCatalog(), testTeams("u1", "u2")
		owner := "someone"
		players["c0"].DraftedBy = &owner
		room := newStartedRoom(t, clock, 30, "u1", "u2")
		_, err := room.MakePick("u2", "c0", players, teams, false)
		assert.ErrorIs(t, err, ErrAlreadyPicked)
	})

	t.Run("not your turn", func(t *testing.T) {
		room := newStartedRoom(t, clock, 30, "u1", "u2")
		_, err := room.MakePick("u2", "c0", testCatalog(), testTeams("u1", "u2"), false)
		assert.ErrorIs(t, err, ErrNotYourTurn)
	})

	t.Run("team not found", func(t *testing.T) {
		room := newStartedRoom(t, clock, 30, "u1")
		_, err := room.MakePick("u1", "c0", testCatalog(), testTeams(), false)
		assert.ErrorIs(t, err, ErrTeamNotFound)
	})

	t.Run("team full", func(t *testing.T) {
		teams := testTeams("u1")
		teams["u1"].Players = []string{"a", "b", "c", "d", "e", "f"}
		room := newStartedRoom(t, clock, 30, "u1")
		_, err := room.MakePick("u1", "c0", testCatalog(), teams, false)
		assert.ErrorIs(t, err, ErrTeamFull)
	})

	t.Run("cap exceeded beats missing slot", func(t *testing.T) {
		players, teams := testCatalog(), testTeams("u1")
		goalie := "g1"
		teams["u1"].Slots[5].PlayerID = &goalie
		teams["u1"].Players = []string{goalie}
		teams["u1"].SalaryTotal = models.SalaryCap - 1
		room := newStartedRoom(t, clock, 30, "u1")
		_, err := room.MakePick("u1", "g0", players, teams, false)
		assert.ErrorIs(t, err, ErrSalaryCap)
	})

	t.Run("no slot", func(t *testing.T) {
		players, teams := testCatalog(), testTeams("u1")
		goalie := "g1"
		teams["u1"].Slots[5].PlayerID = &goalie
		teams["u1"].Players = []string{goalie}
		room := newStartedRoom(t, clock, 30, "u1")
		_, err := room.MakePick("u1", "g0", players, teams, false)
		assert.ErrorIs(t, err, ErrNoSlot)
	})
}

func TestRoom_FailedPickMutatesNothing(t *testing.T) {
	players, teams := testCatalog(), testTeams("u1")
	teams["u1"].SalaryTotal = models.SalaryCap - 1
	room := newStartedRoom(t, clockwork.NewFakeClockAt(epoch), 30, "u1")

	_, err := room.MakePick("u1", "c0", players, teams, false)
	require.ErrorIs(t, err, ErrSalaryCap)

	assert.Nil(t, players["c0"].DraftedBy)
	assert.Empty(t, teams["u1"].Players)
	assert.Nil(t, teams["u1"].Slots[1].PlayerID)
	assert.Equal(t, 0, room.State().PickIndex)
}

func TestRoom_MakePickAppliesEverything(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	players, teams := testCatalog(), testTeams("u1", "u2")
	room := newStartedRoom(t, clock, 30, "u1", "u2")

	clock.Advance(12 * time.Second)
	st, err := room.MakePick("u1", "d0", players, teams, false)
	require.NoError(t, err)

	require.NotNil(t, players["d0"].DraftedBy)
	assert.Equal(t, "u1", *players["d0"].DraftedBy)
	assert.Equal(t, 1, *players["d0"].DraftWeek)
	assert.Equal(t, []string{"d0"}, teams["u1"].Players)
	assert.Equal(t, int64(5_000_000), teams["u1"].SalaryTotal)
	assert.Equal(t, "d0", *teams["u1"].Slots[3].PlayerID)

	assert.Equal(t, 1, st.PickIndex)
	assert.Equal(t, "u2", st.ActiveUserID)
	assert.Equal(t, int64(30_000), st.Remaining(), "timer re-anchors on every pick")
	require.Len(t, st.Picks, 1)
	assert.Equal(t, models.DraftPick{
		RoomID: "room-1", PickIndex: 0, Round: 1, Slot: 0,
		UserID: "u1", PlayerID: "d0", Timestamp: epoch.Add(12 * time.Second),
	}, st.Picks[0])
}

func TestRoom_FullDraftCompletes(t *testing.T) {
	players, teams := testCatalog(), testTeams("u1", "u2")
	room := newStartedRoom(t, clockwork.NewFakeClockAt(epoch), 30, "u1", "u2")

	for i := 0; i < 2*MaxRounds; i++ {
		active := room.State().ActiveUserID
		require.NotEmpty(t, active, "pick %d", i)
		_, pick, err := room.MakeAutoPick(active, players, teams)
		require.NoError(t, err, "pick %d", i)
		assert.True(t, pick.AutoPick)
	}

	st := room.State()
	assert.True(t, st.Completed)
	assert.Empty(t, st.ActiveUserID)
	assert.Equal(t, MaxRounds+1, st.Round)
	assert.Len(t, st.Picks, 2*MaxRounds)

	seen := map[string]bool{}
	for _, owner := range []string{"u1", "u2"} {
		team := teams[owner]
		assert.Len(t, team.Players, models.MaxPlayersPerTeam)
		assert.LessOrEqual(t, team.SalaryTotal, models.SalaryCap)
		for _, slot := range team.Slots {
			require.NotNil(t, slot.PlayerID, "%s slot %s empty", owner, slot.Position)
			assert.False(t, seen[*slot.PlayerID], "player %s drafted twice", *slot.PlayerID)
			seen[*slot.PlayerID] = true
		}
	}

	_, _, err := room.MakeAutoPick("u1", players, teams)
	assert.ErrorIs(t, err, ErrNotYourTurn)
}

func TestSelectAutoPick_Ranking(t *testing.T) {
	players := map[string]*models.Player{
		"b":     newPlayer("b", models.PositionCenter, 2_000_000, 90),
		"a":     newPlayer("a", models.PositionLeftWing, 2_000_000, 90),
		"cheap": newPlayer("cheap", models.PositionRightWing, 1_000_000, 90),
		"low":   newPlayer("low", models.PositionDefense, 500_000, 10),
		"top":   newPlayer("top", models.PositionGoaltender, 90_000_000, 120),
	}
	teams := testTeams("u1")
	teams["u1"].SalaryTotal = 10_000_000

	choice, err := SelectAutoPick("u1", players, teams)
	require.NoError(t, err)
	assert.Equal(t, "cheap", choice.ID, "top is unaffordable, cheap wins the 90-point tie on cap")

	delete(players, "cheap")
	choice, err = SelectAutoPick("u1", players, teams)
	require.NoError(t, err)
	assert.Equal(t, "a", choice.ID, "equal points and cap fall back to id")
}

func TestSelectAutoPick_NoEligiblePlayer(t *testing.T) {
	players := map[string]*models.Player{
		"g0": newPlayer("g0", models.PositionGoaltender, 1_000_000, 50),
	}
	teams := testTeams("u1")
	goalie := "held"
	teams["u1"].Slots[5].PlayerID = &goalie
	teams["u1"].Players = []string{goalie}

	_, err := SelectAutoPick("u1", players, teams)
	assert.ErrorIs(t, err, ErrNoEligiblePlayer)

	_, err = SelectAutoPick("ghost", players, teams)
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestRoom_PauseResumePreservesRemaining(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	room := newStartedRoom(t, clock, 30, "u1", "u2")

	clock.Advance(10 * time.Second)
	room.Pause()
	st := room.State()
	assert.True(t, st.Paused)
	assert.Empty(t, st.ActiveUserID)
	assert.Nil(t, st.TimerStartedAt)
	assert.Equal(t, int64(20_000), st.Remaining())

	clock.Advance(5 * time.Minute)
	assert.False(t, room.IsTimerExpired())
	assert.Equal(t, int64(20_000), room.State().Remaining())

	room.Resume()
	st = room.State()
	assert.Equal(t, "u1", st.ActiveUserID)
	assert.Equal(t, int64(20_000), st.Remaining())
	require.NotNil(t, st.TimerStartedAt)
	assert.Equal(t, clock.Now().Add(-10*time.Second), *st.TimerStartedAt)

	clock.Advance(20 * time.Second)
	assert.True(t, room.IsTimerExpired())
}

func TestRoom_PauseResumeNoops(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	room := NewRoom(Config{RoomID: "room-1", PickOrder: []string{"u1"}, TimerSec: 30}, clock)
	room.Pause()
	room.Resume()
	assert.False(t, room.State().Paused)

	room.Start()
	room.Resume()
	clock.Advance(3 * time.Second)
	assert.Equal(t, int64(27_000), room.State().Remaining())

	room.Pause()
	clock.Advance(time.Second)
	room.Pause()
	room.Resume()
	assert.Equal(t, int64(27_000), room.State().Remaining())
}

func TestRoom_PauseResumeIgnoreCompletedRoom(t *testing.T) {
	players, teams := testCatalog(), testTeams("u1")
	room := newStartedRoom(t, clockwork.NewFakeClockAt(epoch), 30, "u1")
	for i := 0; i < MaxRounds; i++ {
		_, _, err := room.MakeAutoPick("u1", players, teams)
		require.NoError(t, err, "pick %d", i)
	}
	before := room.State()
	require.True(t, before.Completed)

	room.Pause()
	assert.False(t, room.State().Paused)
	room.Resume()
	assert.Equal(t, before, room.State())
}

func TestRoom_SubSecondTimerExpires(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	room := newStartedRoom(t, clock, 0.1, "u1")

	clock.Advance(99 * time.Millisecond)
	assert.False(t, room.IsTimerExpired())
	clock.Advance(time.Millisecond)
	assert.True(t, room.IsTimerExpired())
	assert.Equal(t, int64(0), room.State().Remaining())
}

func TestRoom_Skip(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	room := NewRoom(Config{RoomID: "room-1", PickOrder: []string{"u1", "u2"}, TimerSec: 30}, clock)

	_, _, err := room.Skip("u1")
	assert.ErrorIs(t, err, ErrNotStarted)

	room.Start()
	_, _, err = room.Skip("u2")
	assert.ErrorIs(t, err, ErrNotYourTurn)

	room.Pause()
	_, _, err = room.Skip("u1")
	assert.ErrorIs(t, err, ErrPaused)
	room.Resume()

	clock.Advance(30 * time.Second)
	st, pick, err := room.Skip("u1")
	require.NoError(t, err)
	assert.True(t, pick.Skipped)
	assert.True(t, pick.AutoPick)
	assert.Empty(t, pick.PlayerID)
	assert.Equal(t, "u2", st.ActiveUserID)
	assert.Equal(t, int64(30_000), st.Remaining())

	last, ok := room.LastPick()
	require.True(t, ok)
	assert.Equal(t, pick, last)
}

func TestState_Status(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  models.DraftStatus
	}{
		{name: "not started", state: State{}, want: models.DraftStatusNotStarted},
		{name: "running", state: State{Started: true}, want: models.DraftStatusInProgress},
		{name: "paused", state: State{Started: true, Paused: true}, want: models.DraftStatusPaused},
		{name: "completed", state: State{Started: true, Completed: true}, want: models.DraftStatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Status())
		})
	}
}
