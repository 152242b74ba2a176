package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJetStreamPublisher_EmbeddedServer(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ns, err := StartEmbeddedNATS(EmbeddedNATSOptions{StoreDir: t.TempDir()})
	require.NoError(t, err)
	defer ns.Shutdown()

	cfg := DefaultJetStreamConfig()
	cfg.URL = ns.ClientURL()
	cfg.Storage = jetstream.MemoryStorage
	pub, err := NewJetStreamPublisher(ctx, cfg)
	require.NoError(t, err)
	defer pub.Close()
	assert.True(t, pub.Connected())
	assert.Equal(t, "draft.events.pick_made", pub.Subject("pick_made"))

	ev, err := NewEvent("room-1", "pick_made", map[string]int{"pickIndex": 0}, time.Now())
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, *ev))
	// same id inside the duplicate window is dropped by the stream
	require.NoError(t, pub.Publish(ctx, *ev))

	stream, err := pub.JetStream().Stream(ctx, cfg.StreamName)
	require.NoError(t, err)
	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.State.Msgs)

	msg, err := stream.GetLastMsgForSubject(ctx, "draft.events.pick_made")
	require.NoError(t, err)
	assert.Equal(t, "room-1", msg.Header.Get("Room-ID"))
	assert.Equal(t, ev.ID.String(), msg.Header.Get("Event-ID"))
}
