package server

import (
	"context"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/lib/store"
	"github.com/ValentinKolb/dPS/lib/store/lstore"
	"github.com/ValentinKolb/dPS/lib/wire"
	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/ValentinKolb/dPS/rpc/request"
	"github.com/ValentinKolb/dPS/rpc/serializer"
	"github.com/ValentinKolb/dPS/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server
// It takes a config, the matrix layout (may be nil), a transport and a serializer as parameters.
// Every parameter server index of config.Servers becomes a shard with its own store.
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		layout,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	layout *partition.Layout,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof("%s", config.String())

	return &RPCServer{
		config:            config,
		layout:            layout,
		transport:         transport,
		serializer:        serializer,
		shards:            xsync.NewMapOf[uint64, *serverShard](),
		checkpointers:     func(partition.ServerID) store.Checkpointer { return store.NewMemoryCheckpointer() },
		partitionAdapter:  NewPartitionServerAdapter(layout),
		checkpointAdapter: NewCheckpointServerAdapter(),
	}
}

// RPCServer hosts parameter server shards behind a transport
type RPCServer struct {
	config            common.ServerConfig
	layout            *partition.Layout
	transport         transport.IRPCServerTransport
	serializer        serializer.IRPCSerializer
	shards            *xsync.MapOf[uint64, *serverShard]
	checkpointers     CheckpointerFactory
	partitionAdapter  IRPCServerAdapter
	checkpointAdapter IRPCServerAdapter
}

// SetCheckpointerFactory replaces the in-memory checkpointers, it must be called before Serve
func (s *RPCServer) SetCheckpointerFactory(f CheckpointerFactory) {
	s.checkpointers = f
}

// Serve starts the RPC server
// This function will also create the shards and start the transport layer.
// It blocks until Close is called.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport layer, Serve returns afterwards
func (s *RPCServer) Close() error {
	return s.transport.Close()
}

// ShardInfo returns the store metadata of a hosted parameter server
func (s *RPCServer) ShardInfo(id partition.ServerID) (store.Info, bool) {
	shard, ok := s.shards.Load(id.ShardID())
	if !ok {
		return store.Info{}, false
	}
	return shard.Store.GetInfo(), true
}

// Recover restores a matrix of a hosted parameter server from its latest checkpoint
func (s *RPCServer) Recover(ctx context.Context, id partition.ServerID, matrixID int32) error {
	shard, ok := s.shards.Load(id.ShardID())
	if !ok {
		return errors.Errorf("%s is not hosted by this server", id)
	}
	snap, found, err := shard.Checkpointer.Load(ctx, matrixID)
	if err != nil {
		return err
	}
	if !found {
		return store.NewError(store.RetCNotFound, "no checkpoint of matrix %d on %s", matrixID, id)
	}
	return shard.Store.Restore(snap)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *RPCServer) init() error {
	if len(s.config.Servers) == 0 {
		return errors.New("no parameter servers configured")
	}

	for _, index := range s.config.Servers {
		id := partition.ServerID{Index: index}
		if _, loaded := s.shards.LoadOrStore(id.ShardID(), &serverShard{
			ID:           id,
			Store:        lstore.NewLocalStore(),
			Checkpointer: s.checkpointers(id),
		}); loaded {
			return errors.Errorf("%s configured twice", id)
		}
		Logger.Infof("created store for %s (shard %d)", id, id.ShardID())
	}

	Logger.Infof("dPS setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.handle)
	return nil
}

// handle decodes a request frame, dispatches it by method and encodes the response
func (s *RPCServer) handle(shardId uint64, frame []byte) []byte {
	req, err := s.serializer.DeserializeRequest(frame)
	if err != nil {
		method, id := peekHeader(frame)
		Logger.Warningf("Failed to decode %s request %d for shard %d: %v", method, id, shardId, err)
		common.ObserveRequest(method, true)
		return s.encode(&request.Response{
			Method:        method,
			UserRequestID: id,
			Status:        request.StatusError,
			Err:           errors.Wrap(err, "failed to deserialize request").Error(),
		})
	}

	payload, err := s.dispatch(shardId, req)
	resp := request.NewResponse(req, payload, err)
	if isNotFound(err) {
		resp.Status = request.StatusNotFound
	}
	if err != nil {
		Logger.Debugf("%s request %d on shard %d failed: %v", req.Method(), req.Header().UserRequestID, shardId, err)
	}
	common.ObserveRequest(req.Method(), err != nil)
	return s.encode(resp)
}

// dispatch selects the shard and the adapter for req
func (s *RPCServer) dispatch(shardId uint64, req request.Request) (request.Payload, error) {
	shard, ok := s.shards.Load(shardId)
	if !ok {
		return nil, store.NewError(store.RetCNotFound, "shard %d not found", shardId)
	}
	if target := req.Header().Target; target.ShardID() != shardId {
		return nil, errors.Errorf("request for %s sent to shard %d", target, shardId)
	}

	// Requests without timeout (checkpoints) may run as long as they need
	ctx := context.Background()
	if req.TimeoutEnabled() && s.config.TimeoutSecond > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.config.TimeoutSecond)*time.Second)
		defer cancel()
	}

	switch req.Method() {
	case common.MethodUpdate, common.MethodUpdatePSF, common.MethodGetRowSplit:
		return s.partitionAdapter.Handle(ctx, req, shard)
	case common.MethodCheckpoint:
		return s.checkpointAdapter.Handle(ctx, req, shard)
	default:
		return nil, errors.Wrapf(request.ErrUnsupportedMethod, "%s", req.Method())
	}
}

// encode serializes resp, falling back to an error response without payload
func (s *RPCServer) encode(resp *request.Response) []byte {
	data, err := s.serializer.SerializeResponse(resp)
	if err == nil {
		return data
	}
	Logger.Errorf("Failed to serialize %s response: %v", resp.Method, err)

	data, err = s.serializer.SerializeResponse(&request.Response{
		Method:        resp.Method,
		UserRequestID: resp.UserRequestID,
		Status:        request.StatusError,
		Err:           errors.Wrap(err, "failed to serialize response").Error(),
	})
	if err != nil {
		// the agent fails to decode the empty frame
		Logger.Errorf("Failed to serialize error response: %v", err)
		return nil
	}
	return data
}

// peekHeader reads the method tag and the user request id of a frame that could not be
// decoded. Missing fields are returned as MethodUnknown and -1.
func peekHeader(frame []byte) (common.TransportMethod, int32) {
	buf := wire.Wrap(frame)
	tag, err := buf.ReadInt32()
	if err != nil || !common.TransportMethod(tag).Valid() {
		return common.MethodUnknown, -1
	}
	id, err := buf.ReadInt32()
	if err != nil {
		return common.TransportMethod(tag), -1
	}
	return common.TransportMethod(tag), id
}

// isNotFound reports whether err is a store error with RetCNotFound
func isNotFound(err error) bool {
	var storeErr *store.Error
	return errors.As(err, &storeErr) && storeErr.Code == store.RetCNotFound
}
