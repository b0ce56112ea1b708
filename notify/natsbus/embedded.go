package natsbus

import (
	"errors"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

var ErrEmbeddedServerNotReady = errors.New("embedded nats server not ready for connections")

// EmbeddedServer wraps an embedded NATS server with JetStream enabled, so the sink can
// be exercised in tests without external dependencies.
type EmbeddedServer struct {
	server *server.Server
}

// StartEmbeddedServer starts an embedded NATS server on a random port with JetStream
// storage in a temporary directory.
func StartEmbeddedServer(storeDir string) (*EmbeddedServer, error) {
	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  storeDir,
	}

	s, err := server.NewServer(opts)
	if err != nil {
		return nil, err
	}

	go s.Start()

	if !s.ReadyForConnections(5 * time.Second) {
		return nil, ErrEmbeddedServerNotReady
	}

	return &EmbeddedServer{server: s}, nil
}

// URL returns the connection URL for the embedded server.
func (e *EmbeddedServer) URL() string {
	return e.server.ClientURL()
}

// Shutdown stops the embedded server and waits for it to finish.
func (e *EmbeddedServer) Shutdown() {
	e.server.Shutdown()
	e.server.WaitForShutdown()
}
