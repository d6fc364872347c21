// Package client implements the worker side of dPS, the Agent.
//
// The agent knows the matrix layout and turns operations on whole rows into requests for
// the partitions the row is cut into. Requests for different partitions are encoded and
// sent in parallel (errgroup), every request goes to the shard of the parameter server
// owning the partition.
//
// Operations:
//
//   - UpdateRow: Splits a dense or sparse row update by partition column range and sends
//     one Update request per partition. Sparse updates can be filtered by a threshold.
//
//   - InitNodeFeats: Splits node feature vectors by partition and sends UpdatePSF requests.
//
//   - GetRow: Reads the row splits of all partitions and merges them into one vector
//     indexed by global column.
//
//   - Checkpoint: Sends a checkpoint request to every server of a matrix. Checkpoints run
//     without deadline and are never retried.
//
// Latency of every operation is recorded in go-metrics timers, see Agent.Timer and
// Agent.WriteStats.
//
// Usage Example:
//
//	agent, err := client.NewAgent(layout, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer agent.Close()
//
//	u, _ := split.NewSparseUpdate(0, []int32{3, 7}, []float64{0.5, -1})
//	err = agent.UpdateRow(ctx, 1, u, 0.01)
package client
