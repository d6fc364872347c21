// Package http implements an HTTP transport between worker agents and parameter servers.
// Each request is a POST of the encoded message to /{shardId}, the response body is the
// encoded response.
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport. Selects endpoints round robin and
//     retries according to the CallPolicy of the call, rebuilding the request body for every
//     attempt.
//
//   - httpServerTransport: Implements IRPCServerTransport. Routes requests to the handler
//     by the shard id of the URL path. Close shuts the server down gracefully.
//
// Thread Safety:
//
//	The client transport is thread-safe and can be used concurrently. It uses
//	atomic operations for the round-robin counter.
package http
