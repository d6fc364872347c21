// Package serializer frames requests and responses for the transports.
//
// A frame is the int32 TransportMethod tag followed by the message itself:
//
//	[int32 method][envelope][request body]
//	[int32 method][response]
//
// The serializer asks a message for its BufferLength, allocates exactly
// 4 + BufferLength bytes and fails with common.ErrLengthMismatch if the message
// writes a different amount. On decode, bytes left after the message are
// a length mismatch too. Method tags are checked before a message is
// created, unknown tags fail with common.ErrUnknownTransportMethod.
//
// The binary serializer is stateless and safe for concurrent use:
//
//	s := serializer.NewBinarySerializer()
//	frame, err := s.SerializeRequest(req)
//	// ... send frame ...
//	req, err = s.DeserializeRequest(frame)
package serializer
