package base

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/ValentinKolb/dPS/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection based on the provided configuration
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientConnection represents a single net connection
type clientConnection struct {
	conn     net.Conn
	endpoint string
	pending  *xsync.MapOf[uint64, chan responseResult]
	connMu   sync.Mutex // Protects the connection itself
	parent   *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex uint64 // Atomic counter for Round Robin
	nextRequestID uint64 // Atomic counter for unique request IDs
	stopping      atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	endpoints := config.Transport.Endpoints
	if len(endpoints) == 0 {
		return errors.New("no endpoints provided")
	}

	// Close all existing connections
	t.closeConnections()

	t.config = config
	t.stopping.Store(false)

	connectionsPerEP := max(1, config.Transport.ConnectionsPerEndpoint)
	connections := make([]*clientConnection, 0, len(endpoints)*connectionsPerEP)

	for _, endpoint := range endpoints {
		// Create multiple connections per endpoint
		for i := 0; i < connectionsPerEP; i++ {
			clientConn := &clientConnection{
				endpoint: endpoint,
				pending:  xsync.NewMapOf[uint64, chan responseResult](),
				parent:   t,
			}

			// Establish the initial connection, this also starts the response reader
			if err := clientConn.reconnect(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}
			connections = append(connections, clientConn)
			Logger.Debugf("Connected to %s (connection %d/%d)", endpoint, i+1, connectionsPerEP)
		}
	}

	if len(connections) == 0 {
		return errors.Wrapf(transport.ErrNoConnection, "failed to connect to any of %v", endpoints)
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Infof("Connected to %d out of %d connections to %d endpoints using %s transport",
		len(connections), len(endpoints)*connectionsPerEP, len(endpoints), t.connector.GetName())
	return nil
}

func (t *clientTransport) Send(ctx context.Context, shardId uint64, req []byte, policy transport.CallPolicy) ([]byte, error) {
	if t.stopping.Load() {
		return nil, transport.ErrClosed
	}

	attempts := max(1, policy.Attempts)

	// Initial backoff duration in milliseconds
	backoffMs := 50
	var lastErr error

	for i := 0; i < attempts; i++ {
		conn := t.getNextConnection()
		if conn == nil {
			return nil, transport.ErrNoConnection
		}

		data, err := conn.send(ctx, shardId, req, policy.Timeout)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d to shard %d failed: %v", i+1, attempts, shardId, err)

		if i < attempts-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			select {
			case <-time.After(time.Duration(jitter) * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoffMs *= 2
		}
	}

	// All attempts failed
	return nil, errors.Wrapf(lastErr, "failed to send request after %d attempts", attempts)
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	if len(t.connections) == 0 {
		return nil
	}

	// Simple Round Robin algorithm
	var index uint64
	if len(t.connections) == 1 {
		// optimize for single connection
		index = 0
	} else {
		index = atomic.AddUint64(&t.nextConnIndex, 1) % uint64(len(t.connections))
	}
	return t.connections[index]
}

// closeConnections closes all active connections and fails their pending requests
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	connections := t.connections
	t.connections = nil
	t.connectionsMu.Unlock()

	for _, c := range connections {
		c.connMu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()
		c.failPending(transport.ErrClosed)
	}
}

// send writes one request frame and waits for its response
func (c *clientConnection) send(ctx context.Context, shardID uint64, payload []byte, timeout time.Duration) ([]byte, error) {
	requestID := atomic.AddUint64(&c.parent.nextRequestID, 1)

	// Register the request before writing, the response may arrive immediately
	respCh := make(chan responseResult, 1)
	c.pending.Store(requestID, respCh)
	defer c.pending.Delete(requestID)

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		// the reader lost the connection and could not restore it
		if err := c.reconnect(); err != nil {
			return nil, errors.Wrap(transport.ErrNoConnection, err.Error())
		}
	}

	// Lock the connection only for writing
	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		return nil, transport.ErrNoConnection
	}
	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	} else {
		_ = c.conn.SetWriteDeadline(time.Time{})
	}
	err := writeFrame(c.conn, shardID, requestID, payload)
	c.connMu.Unlock()

	if err != nil {
		return nil, err
	}

	// Wait for response, timeout or cancellation. A nil channel never triggers.
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-timeoutCh:
		return nil, transport.ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readResponses reads responses from conn and distributes them to waiting requests.
// It runs until conn fails, then it fails all pending requests and restores the connection.
func (c *clientConnection) readResponses(conn net.Conn) {
	for {
		shardID, requestID, data, err := readFrame(conn, nil)
		if err != nil {
			c.connectionLost(conn, err)
			return
		}

		respCh, found := c.pending.Load(requestID)
		if !found {
			// The request timed out or was canceled before
			Logger.Warningf("Received response for unknown request ID %d with shard ID %d", requestID, shardID)
			continue
		}
		respCh <- responseResult{data: data}
	}
}

// connectionLost handles a failed read on conn
func (c *clientConnection) connectionLost(conn net.Conn, cause error) {
	c.connMu.Lock()
	if c.conn != conn {
		// already replaced or closed
		c.connMu.Unlock()
		return
	}
	_ = conn.Close()
	c.conn = nil
	c.connMu.Unlock()

	c.failPending(errors.Wrap(cause, "connection lost"))

	if c.parent.stopping.Load() {
		return
	}
	Logger.Warningf("Lost connection to %s: %v", c.endpoint, cause)
	if err := c.reconnect(); err != nil {
		Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)
	}
}

// failPending completes all pending requests of the connection with err
func (c *clientConnection) failPending(err error) {
	c.pending.Range(func(requestID uint64, respCh chan responseResult) bool {
		c.pending.Delete(requestID)
		select {
		case respCh <- responseResult{err: err}:
		default:
		}
		return true
	})
}

// reconnect establishes or restores a lost connection to the endpoint and starts its reader
func (c *clientConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	// Another sender restored the connection in the meantime
	if c.conn != nil {
		return nil
	}

	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", c.endpoint)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		_ = conn.Close()
		return errors.Wrapf(err, "failed to upgrade connection to %s", c.endpoint)
	}

	c.conn = conn
	go c.readResponses(conn)
	return nil
}
