package servicesock

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// CommandTag is the 1-byte command identifier in the wire header
// (spec.md §4.F wire format).
type CommandTag byte

const (
	CmdGet CommandTag = 10
	CmdSet CommandTag = 11
	CmdOK  CommandTag = 12
)

// headerSize is the fixed wire header: 1-byte tag + 4-byte little-endian
// data_size. This is pinned explicitly (not a serialized struct) to avoid
// compiler-dependent padding, per spec.md §7 REDESIGN FLAGS.
const headerSize = 5

// ioRetries and ioRetryDelay implement the bounded non-blocking retry
// scheme used for both header and payload reads (spec.md §4.F step 1/2).
const (
	ioRetries   = 3
	ioRetryDelay = 25 * time.Millisecond
)

type header struct {
	tag      CommandTag
	dataSize uint32
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	buf[0] = byte(h.tag)
	binary.LittleEndian.PutUint32(buf[1:], h.dataSize)
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) != headerSize {
		return header{}, fmt.Errorf("servicesock: short header: %d bytes", len(buf))
	}
	return header{
		tag:      CommandTag(buf[0]),
		dataSize: binary.LittleEndian.Uint32(buf[1:]),
	}, nil
}

// SendGet writes a GET header with data_size=0 to conn, per spec.md §4.F
// step 1.
func SendGet(conn net.Conn) error {
	_, err := writeWithRetry(conn, encodeHeader(header{tag: CmdGet, dataSize: 0}))
	return err
}

// RecvOK reads one header and, if it is an OK header, the JSON payload
// that follows, per spec.md §4.F steps 2-3. It returns an error for any
// other command tag or a truncated payload.
func RecvOK(conn net.Conn) ([]byte, error) {
	hdrBuf, err := readWithRetry(conn, headerSize)
	if err != nil {
		return nil, fmt.Errorf("servicesock: read header: %w", err)
	}
	hdr, err := decodeHeader(hdrBuf)
	if err != nil {
		return nil, err
	}
	if hdr.tag != CmdOK {
		return nil, fmt.Errorf("servicesock: expected OK tag, got %d", hdr.tag)
	}
	if hdr.dataSize == 0 {
		return nil, nil
	}

	payload, err := readWithRetry(conn, int(hdr.dataSize))
	if err != nil {
		return nil, fmt.Errorf("servicesock: read payload: %w", err)
	}
	return payload, nil
}

func writeWithRetry(conn net.Conn, buf []byte) (int, error) {
	var lastErr error
	for attempt := 0; attempt < ioRetries; attempt++ {
		conn.SetWriteDeadline(time.Now().Add(ioRetryDelay))
		n, err := conn.Write(buf)
		if err == nil {
			return n, nil
		}
		lastErr = err
		if !isTimeout(err) {
			return n, err
		}
	}
	return 0, lastErr
}

// readWithRetry reads exactly n bytes, retrying only the remainder on a
// read-deadline timeout so a partial read is never discarded.
func readWithRetry(conn net.Conn, n int) ([]byte, error) {
	buf := make([]byte, n)
	read := 0
	var lastErr error
	for attempt := 0; attempt < ioRetries && read < n; attempt++ {
		conn.SetReadDeadline(time.Now().Add(ioRetryDelay))
		got, err := io.ReadFull(conn, buf[read:])
		read += got
		if err == nil {
			return buf, nil
		}
		lastErr = err
		if !isTimeout(err) {
			return nil, err
		}
	}
	if read < n {
		return nil, lastErr
	}
	return buf, nil
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
