package recorder

import (
	"fmt"
	"io"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
)

// mkvMuxer writes a single-video-track Matroska file via ebml-go's
// webm package. Unlike the fMP4 muxer, Matroska wants Annex-B payloads
// directly, so writeSample skips the AVCC conversion step.
//
// onFatal, if non-nil, is invoked on ebml-go's own goroutine when the block
// writer hits a condition it can only report asynchronously (not through a
// Write return value) — the writer itself then becomes unusable. The
// Recorder supplies this so such a failure still reaches its failed-state
// machine, rather than being swallowed.
type mkvMuxer struct {
	w           io.Writer
	comment     string
	onFatal     func(error)
	videoWriter webm.BlockWriteCloser
	width       int
	height      int
}

func newMKVMuxer(w io.Writer, comment string, onFatal func(error)) *mkvMuxer {
	return &mkvMuxer{w: w, comment: comment, onFatal: onFatal}
}

func (m *mkvMuxer) writeHeader(extradata []byte, width, height int) error {
	m.width, m.height = width, height

	info := &webm.Info{
		MuxingApp:  m.comment,
		WritingApp: m.comment,
	}

	writers, err := webm.NewSimpleBlockWriter(m.w, []webm.TrackEntry{
		{
			Name:        "Video",
			TrackNumber: 1,
			TrackUID:    1,
			CodecID:     "V_MPEG4/ISO/AVC",
			TrackType:   1,
			Video: &webm.Video{
				PixelWidth:  uint64(width),
				PixelHeight: uint64(height),
			},
		},
	}, mkvcore.WithSegmentInfo(info), mkvcore.WithOnFatalHandler(m.handleFatal))
	if err != nil {
		return fmt.Errorf("mkv muxer: create block writer: %w", err)
	}

	m.videoWriter = writers[0]
	return nil
}

// handleFatal is installed as ebml-go's fatal handler: it runs on the
// block writer's own goroutine, not the Recorder's writer goroutine, so it
// must reach the Recorder through the onFatal callback rather than any
// shared mutable state on m.
func (m *mkvMuxer) handleFatal(err error) {
	if m.onFatal != nil {
		m.onFatal(fmt.Errorf("mkv muxer: async fatal: %w", err))
	}
}

func (m *mkvMuxer) writeSample(pts, duration int64, data []byte, keyframe bool) error {
	if m.videoWriter == nil {
		return fmt.Errorf("mkv muxer: writeSample before writeHeader")
	}
	// pts is in microseconds; ebml-go block timestamps are in milliseconds.
	if _, err := m.videoWriter.Write(keyframe, pts/1000, data); err != nil {
		return fmt.Errorf("mkv muxer: write block: %w", err)
	}
	return nil
}

// writeTrailer finalizes the Matroska container by closing the block
// writer, which flushes the cue points and segment size. Matroska, unlike
// fMP4, has a real trailer-equivalent step that can fail.
func (m *mkvMuxer) writeTrailer() error {
	if m.videoWriter == nil {
		return nil
	}
	if err := m.videoWriter.Close(); err != nil {
		return fmt.Errorf("mkv muxer: finalize: %w", err)
	}
	return nil
}

func (m *mkvMuxer) close() error {
	if c, ok := m.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
