package recorder

// muxer is the concrete container writer a Recorder drives. It is the
// "opaque muxer context" the Recorder owns after open: format-specific
// (mp4Muxer, mkvMuxer) implementations live in their own files so this
// package's state machine never imports a container library directly.
//
// A muxer is single-writer: every method is called only from the
// Recorder's writer goroutine, after open, in this order — writeHeader
// once, writeSample zero or more times, writeTrailer at most once, close
// always last.
type muxer interface {
	// writeHeader writes the container header/init segment. extradata is
	// the SPS/PPS blob taken from the stream's first (config) packet;
	// width and height are the caller-declared frame dimensions.
	writeHeader(extradata []byte, width, height int) error

	// writeSample writes one sample. pts and duration are in microseconds,
	// exactly as the Recorder received them; each muxer converts them into
	// its own time base.
	writeSample(pts, duration int64, data []byte, keyframe bool) error

	// writeTrailer finalizes the container. For formats with no real
	// trailer box (fMP4), this is a no-op that cannot fail.
	writeTrailer() error

	// close releases any file handles or buffers. Called exactly once,
	// whether or not writeHeader/writeTrailer succeeded.
	close() error
}
