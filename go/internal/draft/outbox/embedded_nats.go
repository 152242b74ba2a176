package outbox

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/rs/zerolog/log"
)

// EmbeddedNATS runs a JetStream-enabled NATS server inside the process,
// for development and tests.
type EmbeddedNATS struct {
	server *server.Server
}

// EmbeddedNATSOptions configures the in-process server.
type EmbeddedNATSOptions struct {
	Port     int    // 0 picks a random free port
	StoreDir string // empty uses the server's temp dir
}

func StartEmbeddedNATS(opts EmbeddedNATSOptions) (*EmbeddedNATS, error) {
	port := opts.Port
	if port == 0 {
		port = server.RANDOM_PORT
	}

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      port,
		JetStream: true,
		StoreDir:  opts.StoreDir,
		NoSigs:    true,
		NoLog:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start within timeout")
	}

	log.Info().Str("url", ns.ClientURL()).Msg("embedded NATS server started")
	return &EmbeddedNATS{server: ns}, nil
}

// ClientURL is the address clients connect to.
func (e *EmbeddedNATS) ClientURL() string {
	return e.server.ClientURL()
}

func (e *EmbeddedNATS) Shutdown() {
	e.server.Shutdown()
	e.server.WaitForShutdown()
	log.Info().Msg("embedded NATS server shut down")
}
