package base

import (
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/pkg/errors"
)

// frameHeaderLength is shardId + requestID + content length
const frameHeaderLength = 20

// maxFrameLength limits the content length a peer may announce
const maxFrameLength = 1 << 30

// writeFrame writes a frame to the connection with the format:
// - 8 bytes: shardId (uint64, big endian)
// - 8 bytes: requestID (uint64, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, shardID uint64, requestID uint64, data []byte) error {
	header := make([]byte, frameHeaderLength)
	binary.BigEndian.PutUint64(header[:8], shardID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads a frame from the connection using the provided buffer
// If the buffer is too small, it will allocate a new temporary buffer for the data
func readFrame(conn net.Conn, buf []byte) (uint64, uint64, []byte, error) {
	// Check if buffer is large enough for header
	if len(buf) < frameHeaderLength {
		buf = make([]byte, frameHeaderLength)
	}

	// Read header
	if _, err := io.ReadFull(conn, buf[:frameHeaderLength]); err != nil {
		return 0, 0, nil, err
	}

	// Parse header
	shardID := binary.BigEndian.Uint64(buf[:8])
	requestID := binary.BigEndian.Uint64(buf[8:16])
	contentLength := binary.BigEndian.Uint32(buf[16:20])

	// If no data, return empty slice
	if contentLength == 0 {
		return shardID, requestID, []byte{}, nil
	}
	if contentLength > maxFrameLength {
		return 0, 0, nil, errors.Errorf("frame of %d bytes exceeds limit of %d", contentLength, maxFrameLength)
	}

	// Check if buffer is large enough for data
	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	// Read data
	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, 0, nil, err
	}

	return shardID, requestID, buf[:contentLength], nil
}

// ApplySocketConf applies the socket options to a TCP connection, other connections are left unchanged
func ApplySocketConf(conn net.Conn, s common.SocketConf) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	// Disable Nagle's algorithm (TCPNoDelay) if configured
	if err := tcpConn.SetNoDelay(s.TCPNoDelay); err != nil {
		return err
	}

	if s.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(s.WriteBufferSize); err != nil {
			return err
		}
	}
	if s.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(s.ReadBufferSize); err != nil {
			return err
		}
	}

	if s.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(s.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	if s.TCPLingerSec >= 0 {
		if err := tcpConn.SetLinger(s.TCPLingerSec); err != nil {
			return err
		}
	}
	return nil
}
