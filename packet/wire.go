package packet

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ChunkHeaderSize is the length of the framed-chunk header: an 8-byte
// big-endian PTS in microseconds (all-ones = unset/config), followed by a
// 4-byte big-endian payload length.
const ChunkHeaderSize = 12

// noPTSWire is the wire-level sentinel for an unset PTS: all 64 bits set.
// Interpreted as int64 this is -1, matching NoPTS.
const noPTSWire uint64 = 0xFFFFFFFFFFFFFFFF

// Chunk is one framed unit read off the wire: a timestamp plus a raw payload
// that the H.264 parser will turn into zero or more access units.
type Chunk struct {
	PTS  int64
	Data []byte
}

// ReadChunk reads exactly one framed chunk from r: a 12-byte header followed
// by Data of the declared length. A short read of the header (including a
// clean io.EOF between chunks) is reported via the returned error; callers
// that want to distinguish "stream ended cleanly" from "stream broke
// mid-chunk" should check errors.Is(err, io.EOF) only for the header read,
// which ReadChunk does not do on the caller's behalf since both cases end
// the Stream worker identically.
func ReadChunk(r io.Reader) (Chunk, error) {
	var header [ChunkHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Chunk{}, err
	}

	ptsWire := binary.BigEndian.Uint64(header[0:8])
	length := binary.BigEndian.Uint32(header[8:12])
	if length == 0 {
		return Chunk{}, fmt.Errorf("packet: zero-length chunk")
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return Chunk{}, fmt.Errorf("packet: short read of %d-byte payload: %w", length, err)
	}

	pts := int64(ptsWire)
	if ptsWire == noPTSWire {
		pts = NoPTS
	}

	return Chunk{PTS: pts, Data: data}, nil
}

// WriteChunk writes a framed chunk to w in the wire format ReadChunk
// expects. It is used by the packet and stream package tests to build wire
// input; production encoding happens on the mirrored device, outside this
// module.
func WriteChunk(w io.Writer, pts int64, data []byte) error {
	var header [ChunkHeaderSize]byte
	ptsWire := noPTSWire
	if pts != NoPTS {
		ptsWire = uint64(pts)
	}
	binary.BigEndian.PutUint64(header[0:8], ptsWire)
	binary.BigEndian.PutUint32(header[8:12], uint32(len(data)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}
