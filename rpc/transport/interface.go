package transport

import (
	"context"
	"time"

	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/pkg/errors"
)

var (
	ErrTimeout      = errors.New("transport: request timed out")
	ErrNoConnection = errors.New("transport: no active connection")
	ErrClosed       = errors.New("transport: closed")
)

// --------------------------------------------------------------------------
// Call Policy
// --------------------------------------------------------------------------

// CallPolicy controls deadline and retries of a single Send
type CallPolicy struct {
	// Timeout per attempt, 0 waits until the response arrives or ctx is done
	Timeout time.Duration
	// Attempts is the number of tries, values < 1 mean a single try
	Attempts int
}

// NewCallPolicy derives the policy for a request from the client configuration.
// Requests without timeout (e.g. checkpoints) get neither a deadline nor retries, they may
// legitimately run for a long time and must not be sent twice.
func NewCallPolicy(config common.ClientConfig, timeoutEnabled bool) CallPolicy {
	if !timeoutEnabled {
		return CallPolicy{Attempts: 1}
	}
	return CallPolicy{
		Timeout:  time.Duration(config.TimeoutSecond) * time.Second,
		Attempts: max(1, config.Transport.RetryCount),
	}
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes a shardId and a request frame as parameters and returns a response frame
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and blocks until Close is called
	Listen(config common.ServerConfig) error
	// Close stops listening, Listen returns nil afterwards
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request frame to a shard and returns the response frame.
	// Sending stops when ctx is done.
	Send(ctx context.Context, shardId uint64, req []byte, policy CallPolicy) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
