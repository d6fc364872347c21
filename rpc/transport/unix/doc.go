// Package unix implements the transport between a worker agent and parameter servers
// running on the same machine, using Unix domain sockets.
//
// It extends the base transport layer with Unix socket-specific connectors and inherits
// framing, request correlation and retries from the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners, removing a stale socket file first
//
// Default buffer size is 64 KB.
package unix
