package client

import (
	"context"
	"io"
	"time"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/vector"
	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/ValentinKolb/dPS/rpc/param"
	"github.com/ValentinKolb/dPS/rpc/request"
	"github.com/ValentinKolb/dPS/rpc/serializer"
	"github.com/ValentinKolb/dPS/rpc/split"
	"github.com/ValentinKolb/dPS/rpc/transport"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownMatrix is returned for matrices missing from the layout
var ErrUnknownMatrix = errors.New("agent: unknown matrix")

// Agent is the worker side of dPS. It cuts row updates and batches into per partition
// requests, sends them to the owning parameter servers in parallel and merges row reads.
type Agent struct {
	rpcClientAdapter
	layout   *partition.Layout
	registry metrics.Registry
}

// NewAgent creates a new agent
// The function takes the matrix layout, a config, a transport and a serializer as parameters.
// It connects the transport.
func NewAgent(
	layout *partition.Layout,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*Agent, error) {
	if layout == nil {
		return nil, errors.New("agent: no layout")
	}

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &Agent{
		rpcClientAdapter: rpcClientAdapter{
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
		layout:   layout,
		registry: metrics.NewRegistry(),
	}, nil
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// NoFilter disables the threshold filter of UpdateRow
const NoFilter = -1.0

// UpdateRow adds u to the stored row. With threshold >= 0, entries with abs(value) <= threshold
// are not sent (sparse updates only), so a threshold of 0 drops exact zeros. A negative
// threshold (NoFilter) sends every entry.
func (a *Agent) UpdateRow(ctx context.Context, matrixID int32, u *split.RowUpdate, threshold float64) error {
	defer a.timer("update").UpdateSince(time.Now())

	m, ok := a.layout.Matrix(matrixID)
	if !ok {
		return errors.Wrapf(ErrUnknownMatrix, "%d", matrixID)
	}
	parts := m.RowPartitions(u.RowIndex)
	if len(parts) == 0 {
		return errors.Errorf("row %d is outside of matrix %d", u.RowIndex, matrixID)
	}

	keys := make([]partition.Key, len(parts))
	for i, p := range parts {
		keys[i] = m.Key(p)
	}
	splits, err := split.Split(u, keys)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, s := range splits {
		if s == nil {
			continue
		}
		ctxSplit := partition.NewSplitContext(keys[i])
		if threshold >= 0 {
			ctxSplit = ctxSplit.WithFilter(threshold)
		}
		req := request.NewUpdateRequest(a.newUserRequestID(), partition.ServerID{Index: parts[i].Server}, ctxSplit, []*split.RowUpdateSplit{s})
		g.Go(func() error {
			_, err := a.invokeRPCRequest(ctx, req)
			return err
		})
	}
	return g.Wait()
}

// InitNodeFeats stores feature vectors of nodes. A node is a column of the matrix, nodes
// must be ascending. Nil or empty vectors are skipped.
func (a *Agent) InitNodeFeats(ctx context.Context, matrixID int32, nodes []int32, feats []*vector.Vector[float32]) error {
	defer a.timer("initNodeFeats").UpdateSince(time.Now())

	m, ok := a.layout.Matrix(matrixID)
	if !ok {
		return errors.Wrapf(ErrUnknownMatrix, "%d", matrixID)
	}
	parts := m.RowPartitions(0)
	keys := make([]partition.Key, len(parts))
	for i, p := range parts {
		keys[i] = m.Key(p)
	}

	params, err := param.Split(matrixID, nodes, feats, keys)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range params {
		if p == nil || p.Len() == 0 {
			continue
		}
		req := request.NewUpdatePSFRequest(a.newUserRequestID(), partition.ServerID{Index: parts[i].Server}, p)
		g.Go(func() error {
			_, err := a.invokeRPCRequest(ctx, req)
			return err
		})
	}
	return g.Wait()
}

// GetRow reads a full row. The result is a sparse vector of dimension Cols of the matrix,
// indexed by global column. Partitions that were never written are read as empty.
func (a *Agent) GetRow(ctx context.Context, matrixID int32, row int32) (*vector.Vector[float64], error) {
	defer a.timer("getRow").UpdateSince(time.Now())

	m, ok := a.layout.Matrix(matrixID)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownMatrix, "%d", matrixID)
	}
	parts := m.RowPartitions(row)
	if len(parts) == 0 {
		return nil, errors.Errorf("row %d is outside of matrix %d", row, matrixID)
	}

	results := make([]*request.RowResult, len(parts))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range parts {
		req := request.NewGetRowSplitRequest(a.newUserRequestID(), partition.ServerID{Index: p.Server}, m.Key(p), row)
		g.Go(func() error {
			resp, err := a.invokeRPCRequest(ctx, req)
			if resp != nil && resp.Status == request.StatusNotFound {
				return nil
			}
			if err != nil {
				return err
			}
			result, ok := resp.Payload.(*request.RowResult)
			if !ok {
				return errors.Wrapf(ErrUnexpectedResponse, "%s without row", resp.Method)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := vector.NewSparse[float64](int(m.Cols), 0)
	for _, result := range results {
		if result == nil {
			continue
		}
		v := result.Row.Vector()
		if v == nil {
			continue
		}
		startCol := int32(result.Key.StartCol)
		v.ForEachFloat64(func(index int32, value float64) {
			out.Set(startCol+index, value)
		})
	}
	return out, nil
}

// Checkpoint asks every server holding a partition of the matrix to checkpoint it.
// Checkpoints are sent without deadline and are not retried.
func (a *Agent) Checkpoint(ctx context.Context, matrixID int32) error {
	defer a.timer("checkpoint").UpdateSince(time.Now())

	m, ok := a.layout.Matrix(matrixID)
	if !ok {
		return errors.Wrapf(ErrUnknownMatrix, "%d", matrixID)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range m.Servers() {
		req := request.NewCheckpointRequest(a.newUserRequestID(), id, matrixID)
		g.Go(func() error {
			_, err := a.invokeRPCRequest(ctx, req)
			return err
		})
	}
	return g.Wait()
}

// Timer returns the latency timer of an operation (update, initNodeFeats, getRow, checkpoint)
func (a *Agent) Timer(op string) metrics.Timer {
	return a.timer(op)
}

// WriteStats writes the latency statistics of all operations to w
func (a *Agent) WriteStats(w io.Writer) {
	metrics.WriteOnce(a.registry, w)
}

// Close closes the transport
func (a *Agent) Close() error {
	return a.transport.Close()
}

func (a *Agent) timer(op string) metrics.Timer {
	return metrics.GetOrRegisterTimer("agent."+op, a.registry)
}
