package h264

import (
	"encoding/binary"
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

// ToAVCC converts an Annex-B access unit (start-code delimited NAL units)
// into AVCC form (each NAL unit prefixed by its 4-byte big-endian length),
// the form ISO base media file format samples require. MP4 recording is the
// only consumer of this; Matroska keeps the Annex-B payload as received.
func ToAVCC(annexB []byte) ([]byte, error) {
	var nalus h264.AnnexB
	if err := nalus.Unmarshal(annexB); err != nil {
		return nil, fmt.Errorf("h264: unmarshal annex-b: %w", err)
	}

	var out []byte
	var lenBuf [4]byte
	for _, nalu := range nalus {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(nalu)))
		out = append(out, lenBuf[:]...)
		out = append(out, nalu...)
	}
	return out, nil
}
