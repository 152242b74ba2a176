package outbox

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/puckdraft/go/internal/persistence"
)

type flakyRepo struct {
	*persistence.MemoryRepository
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyRepo) SavePick(ctx context.Context, pick persistence.PickRecord) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return errors.New("disk busy")
	}
	return f.MemoryRepository.SavePick(ctx, pick)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Event) error { return errors.New("bus down") }

func testConfig() Config {
	return Config{QueueSize: 16, MaxRetries: 3, RetryDelay: time.Millisecond, DrainTimeout: time.Second}
}

func newPickEntry(t *testing.T, index int) Entry {
	t.Helper()
	ev, err := NewEvent("room-1", "pick_made", map[string]int{"pickIndex": index}, time.Now())
	require.NoError(t, err)
	return Entry{
		Pick:  &persistence.PickRecord{RoomID: "room-1", PickIndex: index, Round: 1, UserID: "u1", PlayerID: "p1"},
		Event: ev,
	}
}

func TestWorker_PersistsAndPublishes(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	pub := &RecordingPublisher{}
	w := NewWorker(repo, pub, testConfig(), nil)
	require.NoError(t, w.Start(context.Background()))

	started, err := NewEvent("room-1", "draft_started", map[string]string{"roomId": "room-1"}, time.Now())
	require.NoError(t, err)
	w.Enqueue(Entry{Room: &persistence.RoomRecord{RoomID: "room-1", TimerSec: 30, PickOrder: []string{"u1"}}, Event: started})
	w.Enqueue(newPickEntry(t, 0))

	require.NoError(t, w.Stop())

	room, err := repo.GetRoom(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, 30.0, room.TimerSec)

	picks, err := repo.ListPicks(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Len(t, picks, 1)

	assert.Equal(t, []string{"draft_started", "pick_made"}, pub.Types())
	stats := w.Stats()
	assert.Equal(t, uint64(2), stats.Processed)
	assert.Equal(t, uint64(2), stats.Published)
	assert.False(t, stats.LastEventTime.IsZero())
}

func TestWorker_RetriesPersistence(t *testing.T) {
	repo := &flakyRepo{MemoryRepository: persistence.NewMemoryRepository(), failures: 2}
	w := NewWorker(repo, &RecordingPublisher{}, testConfig(), nil)
	require.NoError(t, w.Start(context.Background()))

	w.Enqueue(newPickEntry(t, 0))
	require.NoError(t, w.Stop())

	picks, err := repo.ListPicks(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Len(t, picks, 1)
	assert.Equal(t, 3, repo.calls)
	assert.Equal(t, uint64(1), w.Stats().Processed)
}

func TestWorker_PublishFailureIsCounted(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	w := NewWorker(repo, failingPublisher{}, testConfig(), nil)
	require.NoError(t, w.Start(context.Background()))

	w.Enqueue(newPickEntry(t, 0))
	require.NoError(t, w.Stop())

	stats := w.Stats()
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(4), stats.PublishFailed)

	// the record is still saved
	picks, err := repo.ListPicks(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Len(t, picks, 1)
}

func TestWorker_FullQueueWritesInline(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	cfg := testConfig()
	cfg.QueueSize = 1
	w := NewWorker(repo, &RecordingPublisher{}, cfg, nil)

	w.Enqueue(newPickEntry(t, 0)) // queued, nobody draining
	w.Enqueue(newPickEntry(t, 1)) // inline

	picks, err := repo.ListPicks(context.Background(), "room-1")
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, 1, picks[0].PickIndex)
	assert.Equal(t, 1, w.Pending())
}

func TestWorker_StartStopErrors(t *testing.T) {
	w := NewWorker(persistence.NewMemoryRepository(), nil, testConfig(), nil)
	assert.Error(t, w.Stop())
	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
	assert.False(t, w.Running())
}

type stubBus struct{ up bool }

func (s stubBus) Connected() bool { return s.up }

func TestHealthChecker(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	w := NewWorker(repo, nil, testConfig(), nil)

	checker := NewWorkerHealthChecker(w, repo, stubBus{up: true}, nil, time.Minute)
	status := checker.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Errors, "outbox worker not running")

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	status = checker.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.RepositoryConnected)
	assert.True(t, status.NATSConnected)

	rec := httptest.NewRecorder()
	checker.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down := NewWorkerHealthChecker(w, repo, stubBus{up: false}, nil, time.Minute)
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "NATS disconnected")
}

func TestNewEvent(t *testing.T) {
	_, err := NewEvent("room", "", nil, time.Now())
	assert.Error(t, err)

	_, err = NewEvent("room", "x", make(chan int), time.Now())
	assert.Error(t, err)

	ev, err := NewEvent("room", "draft_paused", map[string]string{"reason": "admin"}, time.Now())
	require.NoError(t, err)
	assert.JSONEq(t, `{"reason":"admin"}`, string(ev.Payload))
}
