// Package base provides the protocol independent part of the stream transports (TCP and
// Unix sockets) between worker agents and parameter servers. Protocol specifics are added
// with connectors.
//
// The package focuses on:
//   - Frame-based message protocol with shardID and requestID tracking
//   - Response correlation, so many requests share one connection
//   - Deadlines and retries per call, controlled by transport.CallPolicy
//   - Reconnection after a lost connection
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     (dialing, listening, socket options).
//
//   - clientTransport: Manages several connections per endpoint with round-robin load
//     balancing. Calls without timeout wait until the response arrives or their context
//     is done and are never retried.
//
//   - serverTransport: Accepts connections and passes every frame to the handler, with a
//     bounded number of concurrent workers per connection. Close stops the accept loop and
//     closes all open connections.
//
// Frame layout (big endian): [u64 shardID][u64 requestID][u32 length][payload].
//
// Performance Optimizations:
//
//   - Connection Pooling: Multiple connections per endpoint improve throughput for large
//     row updates. For small messages a single connection per endpoint may perform better.
//
//   - Buffer Pooling: The server uses a sync.Pool to reuse read buffers.
//
//   - Frame Batching: net.Buffers combines header and payload into a single write.
//
// Thread Safety:
//
//	All public methods are thread-safe.
package base
