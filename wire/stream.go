package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	kerrors "github.com/c360/simkernel/errors"
)

// DefaultMaxFrameSize caps one framed document at 4 MiB. Tree snapshots of
// realistic simulations stay far below this; anything larger is a protocol
// violation or an attack, and the connection is dropped rather than resynced.
const DefaultMaxFrameSize = 4 << 20

const lenPrefixSize = 4

// WriteFrame encodes the frame and writes it with a 4-byte big-endian
// length prefix. maxSize 0 means DefaultMaxFrameSize.
func WriteFrame(w io.Writer, f *Frame, maxSize uint32) error {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}
	data, err := Encode(f)
	if err != nil {
		return err
	}
	if uint64(len(data)) > uint64(maxSize) {
		return fmt.Errorf("frame length %d exceeds cap %d: %w (%w)",
			len(data), maxSize, kerrors.ErrFrameTooLarge, kerrors.ErrProtocolError)
	}

	buf := make([]byte, lenPrefixSize+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[lenPrefixSize:], data)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %v: %w", err, kerrors.ErrNetworkDisconnected)
	}
	return nil
}

// ReadFrame reads one length-prefixed document and decodes it. A clean
// close between frames surfaces as io.EOF; a close mid-frame surfaces as
// ErrNetworkDisconnected. An oversized or zero-length prefix poisons the
// stream, so callers must drop the connection on any non-EOF error.
func ReadFrame(r io.Reader, maxSize uint32) (*Frame, error) {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}

	var prefix [lenPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame length: %v: %w", err, kerrors.ErrNetworkDisconnected)
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length == 0 {
		return nil, protocolErr("zero-length frame")
	}
	if length > maxSize {
		return nil, fmt.Errorf("frame length %d exceeds cap %d: %w (%w)",
			length, maxSize, kerrors.ErrFrameTooLarge, kerrors.ErrProtocolError)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read frame body: %v: %w", err, kerrors.ErrNetworkDisconnected)
	}
	return Decode(data)
}
