// Package tcp implements the TCP socket transport between worker agents and parameter
// servers. It provides concrete implementations of the base package's connector
// interfaces and applies the socket options (no delay, buffer sizes, keep alive,
// linger) of the configuration to every connection.
//
// Framing, request correlation, retries and the per-connection worker pool live in the
// base package, see its documentation for details.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// The default server buffer size is 512 KB, which fits typical row update messages
// without allocating a temporary buffer.
package tcp
