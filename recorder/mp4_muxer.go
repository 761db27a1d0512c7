package recorder

import (
	"fmt"
	"io"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4/seekablebuffer"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"

	"github.com/kestrelcast/mirror/h264"
)

// mp4TimeScale is the track time scale used for every recording: one tick
// per microsecond. Packets already carry PTS/duration in microseconds, so
// picking this as the muxer's time base makes the Recorder's "rescale into
// the muxer's base" step an identity conversion.
const mp4TimeScale = 1_000_000

const mp4VideoTrackID = 1

// mp4Muxer writes one fragmented MP4 file: a single init segment followed
// by one movie fragment per sample. It has no real trailer box, so
// writeTrailer is a no-op.
//
// comment is accepted for parity with mkvMuxer but is never written:
// fmp4.Init exposes only a Tracks field, with no metadata/udta box in
// mediacommon/v2's public API, so there is nowhere in a fragmented MP4
// init segment to place it through this library.
type mp4Muxer struct {
	w       io.Writer
	comment string
	seq     uint32

	baseTime    int64
	haveBase    bool
	trackWidth  int
	trackHeight int
}

func newMP4Muxer(w io.Writer, comment string) *mp4Muxer {
	return &mp4Muxer{w: w, comment: comment, seq: 1}
}

func (m *mp4Muxer) writeHeader(extradata []byte, width, height int) error {
	sps, pps, err := h264.ExtractParameterSets(extradata)
	if err != nil {
		return fmt.Errorf("mp4 muxer: extract parameter sets: %w", err)
	}

	m.trackWidth, m.trackHeight = width, height

	init := &fmp4.Init{
		Tracks: []*fmp4.InitTrack{
			{
				ID:        mp4VideoTrackID,
				TimeScale: mp4TimeScale,
				Codec:     &mp4.CodecH264{SPS: sps, PPS: pps},
			},
		},
	}

	var buf seekablebuffer.Buffer
	if err := init.Marshal(&buf); err != nil {
		return fmt.Errorf("mp4 muxer: marshal init segment: %w", err)
	}
	if _, err := m.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("mp4 muxer: write init segment: %w", err)
	}
	return nil
}

func (m *mp4Muxer) writeSample(pts, duration int64, data []byte, keyframe bool) error {
	avcc, err := h264.ToAVCC(data)
	if err != nil {
		return fmt.Errorf("mp4 muxer: convert to AVCC: %w", err)
	}

	if !m.haveBase {
		m.baseTime = pts
		m.haveBase = true
	}

	part := &fmp4.Part{
		SequenceNumber: m.seq,
		Tracks: []*fmp4.PartTrack{
			{
				ID:       mp4VideoTrackID,
				BaseTime: uint64(pts - m.baseTime),
				Samples: []*fmp4.Sample{
					{
						Duration:        uint32(duration),
						IsNonSyncSample: !keyframe,
						Payload:         avcc,
					},
				},
			},
		},
	}

	var buf seekablebuffer.Buffer
	if err := part.Marshal(&buf); err != nil {
		return fmt.Errorf("mp4 muxer: marshal fragment: %w", err)
	}
	if _, err := m.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("mp4 muxer: write fragment: %w", err)
	}
	m.seq++
	return nil
}

// writeTrailer is a no-op: fragmented MP4 has no trailer box to finalize.
// It still satisfies the muxer interface's failed/close protocol — this
// step simply can never fail for this format.
func (m *mp4Muxer) writeTrailer() error {
	return nil
}

func (m *mp4Muxer) close() error {
	if c, ok := m.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
