package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version   byte = 1
	kindValue byte = 1
)

var (
	ErrCorrupt = errors.New("cacheguard: corrupt entry")
	magic4     = [...]byte{'C', 'G', 'R', 'D'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Value: magic(4) | ver(1) | kind(1=value) | vlen(u32 be) | payload(vlen)
func EncodeValue(payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindValue)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// DecodeValue rejects anything that is not a well-formed value frame,
// including trailing bytes. Strict framing lets the guard treat foreign
// writes under its keyspace as corruption and self-heal.
func DecodeValue(b []byte) ([]byte, error) {
	const hdr = 4 + 1 + 1 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindValue {
		return nil, ErrCorrupt
	}

	vlen := int(binary.BigEndian.Uint32(b[6:10]))
	if vlen < 0 || vlen != len(b)-hdr {
		return nil, ErrCorrupt
	}
	return b[hdr : hdr+vlen], nil
}
