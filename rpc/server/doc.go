// Package server implements the parameter server side of dPS. It decodes request frames,
// dispatches them by TransportMethod to an adapter and encodes the response.
//
// The package focuses on:
//   - One shard per hosted parameter server, each with its own partition store and
//     checkpointer
//   - Adapter pattern to decouple request execution from decoding and transport
//   - Responses for every frame, including frames that could not be decoded
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that executes a decoded request against a shard.
//
//   - NewPartitionServerAdapter: Adapter for row updates (Update), update functions
//     (UpdatePSF) and row reads (GetRowSplit). Row reads are answered with a sparse double
//     split of the stored row.
//
//   - NewCheckpointServerAdapter: Adapter for checkpoint requests. Checkpoints run
//     without a deadline, since the request type disables timeouts.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Servers:   []int32{0, 1},
//	  Transport: common.ServerTransportConf{Endpoint: ":8080"},
//	}
//
//	s := server.NewRPCServer(config, layout, tcp.NewTCPServerTransport(), serializer.NewBinarySerializer())
//	if err := s.Serve(); err != nil {
//	  log.Fatal(err)
//	}
//
// Errors of the store with RetCNotFound are answered with StatusNotFound, all other errors
// with StatusError. The error message is sent to the agent.
package server
