package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/persistence"
)

type Config struct {
	QueueSize    int
	MaxRetries   int
	RetryDelay   time.Duration
	DrainTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize:    1024,
		MaxRetries:   3,
		RetryDelay:   200 * time.Millisecond,
		DrainTimeout: 10 * time.Second,
	}
}

// Worker drains the outbox queue: each entry is saved to the repository and
// its event published, both with linear backoff.
type Worker struct {
	repo      persistence.Repository
	publisher EventPublisher
	config    Config
	clock     clockwork.Clock
	stats     *Stats
	metrics   MetricsCollector

	queue chan Entry

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewWorker(repo persistence.Repository, publisher EventPublisher, cfg Config, clock clockwork.Clock) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultConfig().DrainTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if publisher == nil {
		publisher = NewLogPublisher()
	}
	stats := &Stats{clock: clock}
	return &Worker{
		repo:      repo,
		publisher: publisher,
		config:    cfg,
		clock:     clock,
		stats:     stats,
		metrics:   stats,
		queue:     make(chan Entry, cfg.QueueSize),
	}
}

// Enqueue hands an entry to the worker without blocking. When the queue is
// full the entry is written inline, best effort.
func (w *Worker) Enqueue(e Entry) {
	select {
	case w.queue <- e:
	default:
		log.Warn().Str("kind", e.kind()).Msg("outbox queue full, writing inline")
		ctx, cancel := context.WithTimeout(context.Background(), w.config.DrainTimeout)
		defer cancel()
		w.process(ctx, e)
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Info().
		Int("queue_size", w.config.QueueSize).
		Int("max_retries", w.config.MaxRetries).
		Msg("outbox worker started")
	return nil
}

// Stop halts the worker after the queued entries have been processed.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker not running")
	}
	w.running = false
	close(w.stopChan)
	w.mu.Unlock()

	w.wg.Wait()
	log.Info().Msg("outbox worker stopped")
	return nil
}

// Running reports whether the drain loop is active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Pending is the number of queued entries.
func (w *Worker) Pending() int {
	return len(w.queue)
}

// Stats returns the worker counters.
func (w *Worker) Stats() StatsSnapshot {
	return w.stats.Snapshot()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case <-w.stopChan:
			w.drain()
			return
		case e := <-w.queue:
			w.process(ctx, e)
		}
	}
}

func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.DrainTimeout)
	defer cancel()
	for {
		select {
		case e := <-w.queue:
			w.process(ctx, e)
		default:
			return
		}
	}
}

func (w *Worker) process(ctx context.Context, e Entry) {
	start := w.clock.Now()
	err := w.persistWithRetry(ctx, e)
	if err != nil {
		log.Error().Err(err).Str("kind", e.kind()).Msg("outbox persist failed")
	}

	if e.Event != nil {
		if perr := w.publishWithRetry(ctx, *e.Event); perr != nil {
			log.Error().Err(perr).
				Str("event_id", e.Event.ID.String()).
				Str("event_type", e.Event.EventType).
				Str("room_id", e.Event.RoomID).
				Msg("failed to publish event")
			err = errors.Join(err, perr)
		}
	}

	w.metrics.RecordEntryProcessed(e.kind(), err == nil, w.clock.Since(start))
}

func (w *Worker) persistWithRetry(ctx context.Context, e Entry) error {
	var save func() error
	switch {
	case e.Room != nil:
		room := *e.Room
		save = func() error { return w.repo.SaveRoom(ctx, room) }
	case e.Pick != nil:
		pick := *e.Pick
		save = func() error { return w.repo.SavePick(ctx, pick) }
	default:
		return nil
	}

	err := w.retry(ctx, save, func(attempt int, err error) {
		log.Warn().Err(err).Str("kind", e.kind()).Int("attempt", attempt).Msg("persist failed, retrying")
	})
	if err == nil {
		if e.Room != nil {
			log.Debug().Str("room_id", e.Room.RoomID).Msg("persisted room")
		} else {
			log.Debug().Str("room_id", e.Pick.RoomID).Int("pick_index", e.Pick.PickIndex).Msg("persisted pick")
		}
	}
	return err
}

func (w *Worker) publishWithRetry(ctx context.Context, event Event) error {
	attempt := 0
	return w.retry(ctx, func() error {
		attempt++
		err := w.publisher.Publish(ctx, event)
		w.metrics.RecordPublishAttempt(event.EventType, attempt, err == nil)
		return err
	}, func(attempt int, err error) {
		log.Warn().Err(err).
			Str("event_id", event.ID.String()).
			Int("attempt", attempt).
			Msg("failed to publish event, retrying")
	})
}

func (w *Worker) retry(ctx context.Context, fn func() error, onFail func(attempt int, err error)) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.clock.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}
		if err := fn(); err != nil {
			lastErr = err
			onFail(attempt+1, err)
			continue
		}
		return nil
	}
	return fmt.Errorf("failed after %d attempts: %w", w.config.MaxRetries+1, lastErr)
}
