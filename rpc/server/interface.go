package server

import (
	"context"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/store"
	"github.com/ValentinKolb/dPS/rpc/request"
)

// serverShard is one parameter server hosted by the node, with its own partitions and checkpoints
type serverShard struct {
	ID           partition.ServerID
	Store        store.IStore
	Checkpointer store.Checkpointer
}

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for executing a decoded request against a shard
type IRPCServerAdapter interface {
	// Handle executes req on shard.
	// It returns the payload of the response (nil for methods without one) or an error,
	// which is sent back to the agent.
	Handle(ctx context.Context, req request.Request, shard *serverShard) (request.Payload, error)
}

// CheckpointerFactory creates the checkpointer of a shard
type CheckpointerFactory func(id partition.ServerID) store.Checkpointer
