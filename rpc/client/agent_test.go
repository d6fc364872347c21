package client

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/vector"
	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/ValentinKolb/dPS/rpc/param"
	"github.com/ValentinKolb/dPS/rpc/request"
	"github.com/ValentinKolb/dPS/rpc/serializer"
	"github.com/ValentinKolb/dPS/rpc/server"
	"github.com/ValentinKolb/dPS/rpc/split"
	"github.com/ValentinKolb/dPS/rpc/transport"
	"github.com/ValentinKolb/dPS/rpc/transport/unix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLayout has one 4x200 matrix, columns [0,100) on ps-0 and [100,200) on ps-1
func testLayout() *partition.Layout {
	return &partition.Layout{Matrices: []partition.MatrixLayout{partition.EvenLayout(1, 4, 200, 2, 2)}}
}

// startCluster runs both parameter servers behind one unix socket and connects an agent
func startCluster(t *testing.T) (*Agent, *server.RPCServer) {
	t.Helper()
	layout := testLayout()
	socket := filepath.Join(t.TempDir(), "dps.sock")

	srv := server.NewRPCServer(
		common.ServerConfig{Servers: []int32{0, 1}, TimeoutSecond: 10, Transport: common.ServerTransportConf{Endpoint: socket}},
		layout,
		unix.NewUnixDefaultServerTransport(),
		serializer.NewBinarySerializer(),
	)
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	config := common.ClientConfig{
		TimeoutSecond: 2,
		Transport:     common.ClientTransportConf{Endpoints: []string{socket}, RetryCount: 2, ConnectionsPerEndpoint: 2},
	}

	var agent *Agent
	require.Eventually(t, func() bool {
		var err error
		agent, err = NewAgent(layout, config, unix.NewUnixClientTransport(), serializer.NewBinarySerializer())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		assert.NoError(t, agent.Close())
		assert.NoError(t, srv.Close())
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return agent, srv
}

func TestUpdateRowAndGetRow(t *testing.T) {
	agent, _ := startCluster(t)
	ctx := context.Background()

	u, err := split.NewSparseUpdate(2, []int32{3, 7, 9, 120, 199}, []float64{0.01, 5, -0.02, 2, -1})
	require.NoError(t, err)
	require.NoError(t, agent.UpdateRow(ctx, 1, u, 0.05))
	require.NoError(t, agent.UpdateRow(ctx, 1, split.NewDenseUpdate(2, make([]float32, 200)), NoFilter))

	row, err := agent.GetRow(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 200, row.Dim())
	assert.Equal(t, 5.0, row.Get(7))
	assert.Equal(t, 2.0, row.Get(120))
	assert.Equal(t, -1.0, row.Get(199))
	assert.Equal(t, 0.0, row.Get(3))

	// row 3 was never written
	empty, err := agent.GetRow(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 200, empty.Dim())

	assert.Equal(t, int64(2), agent.Timer("update").Count())
	var stats bytes.Buffer
	agent.WriteStats(&stats)
	assert.Contains(t, stats.String(), "agent.update")
}

func TestUpdateRowZeroThreshold(t *testing.T) {
	agent, _ := startCluster(t)
	ctx := context.Background()

	u, err := split.NewSparseUpdate(1, []int32{4, 8, 130}, []float64{0, 1, 0})
	require.NoError(t, err)

	// a zero threshold drops exact zeros
	require.NoError(t, agent.UpdateRow(ctx, 1, u, 0))
	row, err := agent.GetRow(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int32{8}, row.Indices())

	// without filter the zeros are stored as well
	require.NoError(t, agent.UpdateRow(ctx, 1, u, NoFilter))
	row, err = agent.GetRow(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int32{4, 8, 130}, row.Indices())
	assert.Equal(t, []float64{0, 2, 0}, row.Values())
}

func TestUpdateRowErrors(t *testing.T) {
	agent, _ := startCluster(t)
	ctx := context.Background()

	u, err := split.NewSparseUpdate(0, []int32{1}, []float64{1})
	require.NoError(t, err)
	assert.ErrorIs(t, agent.UpdateRow(ctx, 9, u, NoFilter), ErrUnknownMatrix)

	outside, err := split.NewSparseUpdate(4, []int32{1}, []float64{1})
	require.NoError(t, err)
	assert.Error(t, agent.UpdateRow(ctx, 1, outside, NoFilter))

	unsorted, err := split.NewSparseUpdate(0, []int32{5, 1}, []float64{1, 1})
	require.NoError(t, err)
	assert.ErrorIs(t, agent.UpdateRow(ctx, 1, unsorted, NoFilter), split.ErrUnsortedOffsets)

	_, err = agent.GetRow(ctx, 9, 0)
	assert.ErrorIs(t, err, ErrUnknownMatrix)
}

func TestInitNodeFeats(t *testing.T) {
	agent, srv := startCluster(t)
	ctx := context.Background()

	nodes := []int32{10, 99, 100, 150}
	feats := []*vector.Vector[float32]{
		vector.DenseOf([]float32{1}),
		nil,
		vector.DenseOf([]float32{2, 3}),
		vector.NewDense[float32](0),
	}
	require.NoError(t, agent.InitNodeFeats(ctx, 1, nodes, feats))

	info, ok := srv.ShardInfo(partition.ServerID{Index: 0})
	require.True(t, ok)
	assert.Equal(t, 1, info.Feats)
	info, ok = srv.ShardInfo(partition.ServerID{Index: 1})
	require.True(t, ok)
	assert.Equal(t, 1, info.Feats)

	assert.ErrorIs(t, agent.InitNodeFeats(ctx, 1, []int32{5, 1}, feats[:2]), param.ErrUnsortedKeys)
}

func TestCheckpoint(t *testing.T) {
	agent, srv := startCluster(t)
	ctx := context.Background()

	u, err := split.NewSparseUpdate(0, []int32{50, 150}, []float64{1, 2})
	require.NoError(t, err)
	require.NoError(t, agent.UpdateRow(ctx, 1, u, NoFilter))
	require.NoError(t, agent.Checkpoint(ctx, 1))
	require.NoError(t, agent.UpdateRow(ctx, 1, u, NoFilter))

	for _, index := range []int32{0, 1} {
		require.NoError(t, srv.Recover(ctx, partition.ServerID{Index: index}, 1))
	}
	row, err := agent.GetRow(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{50, 150}, row.Indices())
	assert.Equal(t, []float64{1, 2}, row.Values())

	assert.ErrorIs(t, agent.Checkpoint(ctx, 2), ErrUnknownMatrix)
}

// fakeTransport answers every frame with respond
type fakeTransport struct {
	respond func(req []byte) []byte
	policy  transport.CallPolicy
}

func (f *fakeTransport) Connect(common.ClientConfig) error { return nil }
func (f *fakeTransport) Close() error                      { return nil }
func (f *fakeTransport) Send(_ context.Context, _ uint64, req []byte, policy transport.CallPolicy) ([]byte, error) {
	f.policy = policy
	return f.respond(req), nil
}

func TestInvokeChecksResponse(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	ft := &fakeTransport{}
	config := common.ClientConfig{TimeoutSecond: 3, Transport: common.ClientTransportConf{RetryCount: 4}}
	agent, err := NewAgent(testLayout(), config, ft, ser)
	require.NoError(t, err)

	reply := func(id int32, status request.Status) func([]byte) []byte {
		return func([]byte) []byte {
			b, err := ser.SerializeResponse(&request.Response{Method: common.MethodCheckpoint, UserRequestID: id, Status: status, Err: "boom"})
			require.NoError(t, err)
			return b
		}
	}

	req := request.NewCheckpointRequest(7, partition.ServerID{Index: 0}, 1)

	ft.respond = reply(8, request.StatusOK)
	_, err = agent.invokeRPCRequest(context.Background(), req)
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
	// checkpoints are sent without deadline and retries
	assert.Equal(t, transport.CallPolicy{Attempts: 1}, ft.policy)

	ft.respond = reply(7, request.StatusError)
	resp, err := agent.invokeRPCRequest(context.Background(), req)
	assert.ErrorContains(t, err, "boom")
	require.NotNil(t, resp)
	assert.Equal(t, request.StatusError, resp.Status)

	ft.respond = reply(7, request.StatusOK)
	_, err = agent.invokeRPCRequest(context.Background(), req)
	assert.NoError(t, err)

	ft.respond = func([]byte) []byte { return []byte{0, 0} }
	_, err = agent.invokeRPCRequest(context.Background(), request.NewGetRowSplitRequest(1, partition.ServerID{Index: 0}, partition.Key{}, 0))
	assert.Error(t, err)
	assert.Equal(t, transport.CallPolicy{Timeout: 3 * time.Second, Attempts: 4}, ft.policy)
}

// truncatingTransport cuts the end of every frame before passing it on
type truncatingTransport struct {
	transport.IRPCClientTransport
	cut int
}

func (t *truncatingTransport) Send(ctx context.Context, shardID uint64, req []byte, policy transport.CallPolicy) ([]byte, error) {
	return t.IRPCClientTransport.Send(ctx, shardID, req[:len(req)-t.cut], policy)
}

func TestDecodeErrorReachesAgent(t *testing.T) {
	agent, _ := startCluster(t)
	broken := &Agent{
		rpcClientAdapter: rpcClientAdapter{
			config:     agent.config,
			transport:  &truncatingTransport{IRPCClientTransport: agent.transport, cut: 2},
			serializer: agent.serializer,
		},
		layout:   agent.layout,
		registry: agent.registry,
	}

	err := broken.Checkpoint(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnexpectedResponse)
	assert.ErrorContains(t, err, "failed to deserialize request")
	assert.ErrorContains(t, err, "truncated")

	// a decode error without request id is still reported as remote error
	ser := serializer.NewBinarySerializer()
	ft := &fakeTransport{respond: func([]byte) []byte {
		b, err := ser.SerializeResponse(&request.Response{Method: common.MethodCheckpoint, UserRequestID: -1, Status: request.StatusError, Err: "bad frame"})
		require.NoError(t, err)
		return b
	}}
	other, err := NewAgent(testLayout(), common.ClientConfig{}, ft, ser)
	require.NoError(t, err)
	_, err = other.invokeRPCRequest(context.Background(), request.NewCheckpointRequest(3, partition.ServerID{Index: 0}, 1))
	assert.ErrorContains(t, err, "bad frame")
	assert.NotErrorIs(t, err, ErrUnexpectedResponse)
}
