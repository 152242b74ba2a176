package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/puckdraft/go/internal/persistence"
)

type HealthStatus struct {
	Healthy             bool      `json:"healthy"`
	LastEventTime       time.Time `json:"lastEventTime"`
	EntriesProcessed    uint64    `json:"entriesProcessed"`
	EntriesFailed       uint64    `json:"entriesFailed"`
	PendingEntries      int       `json:"pendingEntries"`
	RepositoryConnected bool      `json:"repositoryConnected"`
	NATSConnected       bool      `json:"natsConnected"`
	WorkerRunning       bool      `json:"workerRunning"`
	Errors              []string  `json:"errors"`
}

type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// Connector is satisfied by publishers that hold a live connection.
type Connector interface {
	Connected() bool
}

// WorkerHealthChecker reports on the worker, its repository and the bus.
type WorkerHealthChecker struct {
	worker    *Worker
	repo      persistence.Repository
	bus       Connector // nil when publishing to the log
	clock     clockwork.Clock
	threshold time.Duration // max quiet time while entries are pending
}

func NewWorkerHealthChecker(worker *Worker, repo persistence.Repository, bus Connector, clock clockwork.Clock, threshold time.Duration) *WorkerHealthChecker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &WorkerHealthChecker{worker: worker, repo: repo, bus: bus, clock: clock, threshold: threshold}
}

func (h *WorkerHealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	stats := h.worker.Stats()
	status.EntriesProcessed = stats.Processed
	status.EntriesFailed = stats.Failed
	status.LastEventTime = stats.LastEventTime
	status.PendingEntries = h.worker.Pending()

	if err := h.repo.Ping(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("repository ping failed: %v", err))
	} else {
		status.RepositoryConnected = true
	}

	if h.bus != nil {
		status.NATSConnected = h.bus.Connected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	status.WorkerRunning = h.worker.Running()
	if !status.WorkerRunning {
		status.Healthy = false
		status.Errors = append(status.Errors, "outbox worker not running")
	}

	if status.PendingEntries > h.worker.config.QueueSize*3/4 {
		status.Errors = append(status.Errors, fmt.Sprintf("high pending entry count: %d", status.PendingEntries))
	}

	if status.PendingEntries > 0 && !status.LastEventTime.IsZero() && h.threshold > 0 {
		if quiet := h.clock.Since(status.LastEventTime); quiet > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no entries processed for %s", quiet))
		}
	}

	return status
}

func (h *WorkerHealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}
