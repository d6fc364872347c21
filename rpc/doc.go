// Package rpc is the communication layer between workers (agents) and
// parameter servers. Requests and responses are encoded into a compact
// big endian binary format with exactly precomputed sizes and moved over
// pluggable transports.
//
// The package is organized into several subpackages:
//
//   - common: Transport methods, configuration structures, metrics and logging.
//
//   - split: Row updates and their per partition splits, including the
//     threshold filter applied while encoding.
//
//   - param: Partitioned node feature batches.
//
//   - request: The request envelope, all request types and responses.
//
//   - serializer: Frames requests and responses behind their method tag.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - client: The agent, cutting row updates into requests and merging row reads.
//
//   - server: The RPC server dispatching requests to the stores of its parameter servers.
package rpc
