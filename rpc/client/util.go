package client

import (
	"context"
	"sync/atomic"

	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/ValentinKolb/dPS/rpc/request"
	"github.com/ValentinKolb/dPS/rpc/serializer"
	"github.com/ValentinKolb/dPS/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var (
	Logger = logger.GetLogger("agent")
)

// ErrUnexpectedResponse is returned when a response does not belong to the request
var ErrUnexpectedResponse = errors.New("agent: unexpected response")

// rpcClientAdapter stores all data needed to send requests to parameter servers
type rpcClientAdapter struct {
	config        common.ClientConfig
	transport     transport.IRPCClientTransport
	serializer    serializer.IRPCSerializer
	nextRequestID atomic.Int32
}

// newUserRequestID returns the id of the next request
func (a *rpcClientAdapter) newUserRequestID() int32 {
	return a.nextRequestID.Add(1) & 0x7fffffff
}

// invokeRPCRequest sends req to its target server and returns the decoded response.
// Deadline and retries follow req.TimeoutEnabled. Remote errors are returned as errors,
// the response is still returned, so callers can inspect its status.
func (a *rpcClientAdapter) invokeRPCRequest(ctx context.Context, req request.Request) (*request.Response, error) {
	// Serialize the request
	reqBytes, err := a.serializer.SerializeRequest(req)
	if err != nil {
		return nil, err
	}

	// Send it to the shard of the target server
	policy := transport.NewCallPolicy(a.config, req.TimeoutEnabled())
	target := req.Header().Target
	respBytes, err := a.transport.Send(ctx, target.ShardID(), reqBytes, policy)
	if err != nil {
		return nil, errors.Wrapf(err, "%s to %s", req.Method(), target)
	}

	// Deserialize the response
	resp, err := a.serializer.DeserializeResponse(respBytes)
	if err != nil {
		return nil, errors.Wrapf(err, "%s response from %s", req.Method(), target)
	}

	// The server could not read the request id, the error still answers this request
	if resp.UserRequestID == -1 && resp.Status != request.StatusOK {
		return resp, errors.Wrapf(resp.Error(), "%s on %s", req.Method(), target)
	}

	// Check that the response answers this request
	if resp.Method != req.Method() || resp.UserRequestID != req.Header().UserRequestID {
		return nil, errors.Wrapf(ErrUnexpectedResponse, "got %s/%d, expected %s/%d",
			resp.Method, resp.UserRequestID, req.Method(), req.Header().UserRequestID)
	}

	if err := resp.Error(); err != nil {
		return resp, errors.Wrapf(err, "%s on %s", req.Method(), target)
	}
	return resp, nil
}
