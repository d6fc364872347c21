package common

import (
	"github.com/ValentinKolb/dPS/lib/wire"
	"github.com/pkg/errors"
)

// Codec error taxonomy. Errors returned by the codec packages wrap one of these,
// test for them with errors.Is.
var (
	// ErrTruncatedMessage means a message ended before its declared or implied length.
	// The message is dropped, the decoder never reads past the end of its frame.
	ErrTruncatedMessage = wire.ErrTruncated

	// ErrLengthMismatch means an encoder wrote a different number of bytes than its
	// BufferLength announced. This is a bug in the length computation, never retry it.
	ErrLengthMismatch = wire.ErrLengthMismatch

	// ErrUnknownTransportMethod means an inbound method tag matches no request type
	ErrUnknownTransportMethod = errors.New("codec: unknown transport method")
)
