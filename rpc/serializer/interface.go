package serializer

import "github.com/ValentinKolb/dPS/rpc/request"

// IRPCSerializer converts requests and responses to and from transport frames.
// Every frame starts with the int32 TransportMethod tag of the message.
type IRPCSerializer interface {
	// SerializeRequest encodes a request into a buffer of exactly 4 + req.BufferLength() bytes
	SerializeRequest(req request.Request) ([]byte, error)
	// DeserializeRequest reads the method tag, creates the matching request and decodes it
	DeserializeRequest(b []byte) (request.Request, error)
	// SerializeResponse encodes a response into a buffer of exactly 4 + resp.BufferLength() bytes
	SerializeResponse(resp *request.Response) ([]byte, error)
	// DeserializeResponse reads the method tag and decodes the response
	DeserializeResponse(b []byte) (*request.Response, error)
}
