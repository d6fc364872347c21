// Package common provides types and utilities shared across the RPC layer.
//
// Key Components:
//
//   - TransportMethod: Enumeration of all request types. It is the first field of
//     every encoded request and response.
//
//   - ServerConfig and ClientConfig: Configuration of parameter server nodes and
//     agents, including the socket options of their transports.
//
//   - Metrics: Prometheus counters and histograms of encoded messages and handled
//     requests, exposed with WriteMetrics.
//
//   - Logger: Custom logging implementation that plugs into the Dragonboat
//     logger facade, so every package logs with the same format and level.
package common
