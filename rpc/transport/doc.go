// Package transport defines the interfaces and abstractions for RPC communication
// between agents and parameter servers. It provides a common contract that all transport
// implementations must fulfill, enabling protocol-agnostic communication.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Supporting shard-based request routing (one shard per parameter server)
//   - Enabling multiple transport implementations (HTTP, TCP, Unix sockets)
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and routes them to appropriate handlers.
//
//   - CallPolicy: Deadline and retry settings of a single call. Derived from the
//     TimeoutEnabled flag of a request, requests without timeout are sent once and
//     wait as long as needed.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
// Transports move opaque frames, the codec lives in the serializer package.
package transport
