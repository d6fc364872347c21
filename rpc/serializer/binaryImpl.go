package serializer

import (
	"github.com/ValentinKolb/dPS/lib/wire"
	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/ValentinKolb/dPS/rpc/request"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var Logger = logger.GetLogger("codec")

// NewBinarySerializer creates a new serializer using the big endian binary format
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer. It is stateless.
type binarySerializerImpl struct {
}

// message is the part of requests and responses the serializer needs for encoding
type message interface {
	BufferLength() int
	Serialize(buf *wire.Buffer) error
	Deserialize(buf *wire.Buffer) error
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) SerializeRequest(req request.Request) ([]byte, error) {
	return b.encode(req.Method(), req)
}

func (b binarySerializerImpl) DeserializeRequest(data []byte) (request.Request, error) {
	buf := wire.Wrap(data)
	method, err := b.readMethod(buf)
	if err != nil {
		return nil, err
	}

	req, err := request.New(method)
	if err != nil {
		common.ObserveCodecError(common.DirectionDecode, method)
		return nil, err
	}
	if err := b.decode(buf, method, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (b binarySerializerImpl) SerializeResponse(resp *request.Response) ([]byte, error) {
	return b.encode(resp.Method, resp)
}

func (b binarySerializerImpl) DeserializeResponse(data []byte) (*request.Response, error) {
	buf := wire.Wrap(data)
	method, err := b.readMethod(buf)
	if err != nil {
		return nil, err
	}
	if !method.Valid() {
		common.ObserveCodecError(common.DirectionDecode, method)
		return nil, errors.Wrapf(common.ErrUnknownTransportMethod, "tag %d", int32(method))
	}

	resp := request.NewEmptyResponse(method)
	if err := b.decode(buf, method, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// encode allocates the announced size once and checks that exactly that much was written
func (b binarySerializerImpl) encode(method common.TransportMethod, msg message) ([]byte, error) {
	totalSize := wire.SizeInt32 + msg.BufferLength()
	buf := wire.NewBuffer(totalSize)
	buf.PutInt32(int32(method))

	if err := msg.Serialize(buf); err != nil {
		common.ObserveCodecError(common.DirectionEncode, method)
		Logger.Errorf("failed to encode %s: %v", method, err)
		return nil, errors.Wrapf(err, "encode %s", method)
	}
	if buf.Len() != totalSize {
		common.ObserveCodecError(common.DirectionEncode, method)
		Logger.Errorf("encoded %s has %d bytes, announced %d", method, buf.Len(), totalSize)
		return nil, errors.Wrapf(common.ErrLengthMismatch, "encode %s: wrote %d of %d bytes", method, buf.Len(), totalSize)
	}

	common.ObserveMessage(common.DirectionEncode, method, totalSize)
	return buf.Bytes(), nil
}

// readMethod reads the method tag in front of every frame
func (b binarySerializerImpl) readMethod(buf *wire.Buffer) (common.TransportMethod, error) {
	tag, err := buf.ReadInt32()
	if err != nil {
		common.ObserveCodecError(common.DirectionDecode, common.MethodUnknown)
		return common.MethodUnknown, errors.Wrap(err, "read method tag")
	}
	return common.TransportMethod(tag), nil
}

// decode reads msg and requires the frame to be fully consumed
func (b binarySerializerImpl) decode(buf *wire.Buffer, method common.TransportMethod, msg message) error {
	if err := msg.Deserialize(buf); err != nil {
		common.ObserveCodecError(common.DirectionDecode, method)
		return errors.Wrapf(err, "decode %s", method)
	}
	if buf.Remaining() != 0 {
		common.ObserveCodecError(common.DirectionDecode, method)
		return errors.Wrapf(common.ErrLengthMismatch, "decode %s: %d trailing bytes", method, buf.Remaining())
	}
	common.ObserveMessage(common.DirectionDecode, method, buf.Len())
	return nil
}
