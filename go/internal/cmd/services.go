package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/auth"
	"github.com/mcdev12/puckdraft/go/internal/catalog"
	"github.com/mcdev12/puckdraft/go/internal/draft"
	"github.com/mcdev12/puckdraft/go/internal/draft/gateway"
	"github.com/mcdev12/puckdraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/puckdraft/go/internal/draft/outbox"
	"github.com/mcdev12/puckdraft/go/internal/lobby"
	"github.com/mcdev12/puckdraft/go/internal/persistence"
)

type Services struct {
	Clock        clockwork.Clock
	Store        *catalog.Store
	Positions    *catalog.PositionsUpdater
	Repo         persistence.Repository
	NATS         *outbox.EmbeddedNATS
	Publisher    outbox.EventPublisher
	Outbox       *outbox.Worker
	Health       *outbox.WorkerHealthChecker
	Hub          *gateway.ConnectionManager
	Draft        *draft.Service
	Orchestrator *orchestrator.Orchestrator
	Grace        *orchestrator.Grace
	Lobbies      *lobby.Manager
	Gateway      *gateway.Gateway
	Admins       *auth.Admins
}

func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Catalog + repository → outbox → hub → draft service → timers, lobby, gateway
	s := &Services{Clock: clockwork.NewRealClock()}

	store, positions, err := setupCatalog(ctx, cfg.Catalog, s.Clock)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	s.Store, s.Positions = store, positions

	repo, err := setupRepository(ctx, cfg.Storage)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Repo = repo

	var bus outbox.Connector
	s.Publisher, bus, err = s.setupPublisher(ctx, cfg.Events)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Outbox = outbox.NewWorker(repo, s.Publisher, outbox.DefaultConfig(), s.Clock)
	s.Health = outbox.NewWorkerHealthChecker(s.Outbox, repo, bus, s.Clock, 30*time.Second)

	s.Hub = gateway.NewConnectionManager(connectionConfig(cfg.Server.CORSOrigin), s.Clock)
	s.Draft = draft.NewService(draft.NewManager(s.Clock), store, repo, s.Outbox, s.Hub, s.Clock)
	s.Draft.SetDefaultTimerSec(cfg.Draft.TimerSec)
	s.Orchestrator = orchestrator.New(s.Draft, s.Hub, s.Clock, orchestrator.Options{
		TickInterval: cfg.Draft.TickInterval(),
		BotPickDelay: cfg.Draft.BotPickDelay(),
	})
	s.Grace = orchestrator.NewGrace(s.Draft, s.Clock, cfg.Draft.ReconnectGrace())
	s.Lobbies = lobby.NewManager(s.Clock, s.Draft, s.Hub)
	s.Admins = auth.NewAdmins(cfg.Admin.UserIDs, store)

	s.Gateway = gateway.New(gateway.Deps{
		Hub:     s.Hub,
		Service: s.Draft,
		Lobbies: s.Lobbies,
		Bots:    s.Orchestrator,
		Grace:   s.Grace,
		Admins:  s.Admins,
	}, gateway.Config{
		LobbyRoomID:    cfg.Draft.LobbyRoomID,
		ReconnectGrace: cfg.Draft.ReconnectGrace(),
		LobbyShuffle:   cfg.Draft.LobbyShuffle,
		LobbyCountdown: cfg.Draft.LobbyCountdown(),
	})

	return s, nil
}

// setupPublisher connects the outbox to JetStream when a NATS URL is
// configured or an embedded server is requested, and logs events otherwise.
func (s *Services) setupPublisher(ctx context.Context, cfg EventsConfig) (outbox.EventPublisher, outbox.Connector, error) {
	url := cfg.NATSURL
	if cfg.NATSEmbedded {
		ns, err := outbox.StartEmbeddedNATS(outbox.EmbeddedNATSOptions{})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start embedded NATS: %w", err)
		}
		s.NATS = ns
		url = ns.ClientURL()
	}
	if url == "" {
		log.Info().Msg("no NATS configured, publishing draft events to the log")
		return outbox.NewLogPublisher(), nil, nil
	}

	jsCfg := outbox.DefaultJetStreamConfig()
	jsCfg.URL = url
	publisher, err := outbox.NewJetStreamPublisher(ctx, jsCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
	}
	log.Info().Str("nats_url", url).Msg("publishing draft events to JetStream")
	return publisher, publisher, nil
}

// Restore rebuilds persisted rooms before the server accepts connections.
func (s *Services) Restore(ctx context.Context) error {
	n, err := s.Draft.Restore(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore draft rooms: %w", err)
	}
	log.Info().Int("rooms", n).Msg("draft rooms restored")
	return nil
}

// Close releases everything setupServices opened, in reverse order.
func (s *Services) Close() {
	if s.Grace != nil {
		s.Grace.Stop()
	}
	if s.Outbox != nil && s.Outbox.Running() {
		if err := s.Outbox.Stop(); err != nil {
			log.Error().Err(err).Msg("outbox stop failed")
		}
	}
	if closer, ok := s.Publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Error().Err(err).Msg("publisher close failed")
		}
	}
	if s.NATS != nil {
		s.NATS.Shutdown()
	}
	if s.Repo != nil {
		if err := s.Repo.Close(); err != nil {
			log.Error().Err(err).Msg("repository close failed")
		}
	}
	if s.Positions != nil {
		s.Positions.Stop()
	}
}
