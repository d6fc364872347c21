package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Transport Method Definition
// --------------------------------------------------------------------------

// TransportMethod identifies the type of a request (and of its response).
// It is written by the serializer in front of the request envelope, so the receiver can
// create the matching empty request before decoding the rest of the message.
type TransportMethod int32

// String returns the string representation of a TransportMethod.
func (m TransportMethod) String() string {
	switch m {
	case MethodGetRowSplit:
		return "getRowSplit"
	case MethodGetRowsSplit:
		return "getRowsSplit"
	case MethodGetPart:
		return "getPart"
	case MethodPutPart:
		return "putPart"
	case MethodUpdate:
		return "update"
	case MethodGetPSF:
		return "getPSF"
	case MethodUpdatePSF:
		return "updatePSF"
	case MethodCheckpoint:
		return "checkpoint"
	case MethodRecoverPart:
		return "recoverPart"
	case MethodGetClocks:
		return "getClocks"
	case MethodUpdateClock:
		return "updateClock"
	case MethodServerStatus:
		return "serverStatus"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the known methods
func (m TransportMethod) Valid() bool {
	return m > MethodUnknown && m <= MethodServerStatus
}

// ParseTransportMethod converts the string representation back to a TransportMethod
func ParseTransportMethod(s string) (TransportMethod, error) {
	for m := MethodGetRowSplit; m <= MethodServerStatus; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return MethodUnknown, fmt.Errorf("%w: %q", ErrUnknownTransportMethod, s)
}

// MarshalJSON implements the json.Marshaller interface for TransportMethod.
// This allows TransportMethod to be serialized as a string in JSON.
func (m TransportMethod) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for TransportMethod.
func (m *TransportMethod) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTransportMethod(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// --------------------------------------------------------------------------
// Transport Method Constants
// --------------------------------------------------------------------------

const (
	MethodUnknown TransportMethod = iota

	// Row and partition access

	MethodGetRowSplit  // Read one row of a partition
	MethodGetRowsSplit // Read several rows of a partition
	MethodGetPart      // Read a whole partition
	MethodPutPart      // Replace a whole partition

	// Updates

	MethodUpdate    // Apply row update splits to a partition
	MethodGetPSF    // Run a get function on a partition
	MethodUpdatePSF // Run an update function on a partition

	// Control

	MethodCheckpoint   // Checkpoint a matrix, runs without timeout
	MethodRecoverPart  // Restore a partition from a checkpoint
	MethodGetClocks    // Read partition clocks
	MethodUpdateClock  // Advance a partition clock
	MethodServerStatus // Health and load information
)
