package recorder

import (
	"bytes"
	"testing"
)

func sampleAnnexBExtradata() []byte {
	sps := []byte{0x67, 0x64, 0x00, 0x1f, 0xac, 0xd9, 0x40}
	pps := []byte{0x68, 0xeb, 0xe3, 0xcb, 0x22, 0xc0}
	var out []byte
	out = append(out, 0, 0, 0, 1)
	out = append(out, sps...)
	out = append(out, 0, 0, 0, 1)
	out = append(out, pps...)
	return out
}

func sampleAnnexBFrame(idr bool) []byte {
	nalType := byte(0x01) // non-IDR slice
	if idr {
		nalType = 0x05
	}
	var out []byte
	out = append(out, 0, 0, 0, 1)
	out = append(out, nalType, 0xAA, 0xBB, 0xCC)
	return out
}

// TestMP4MuxerWriteHeaderStartsWithFtyp exercises the real fmp4/mediacommon
// wiring (rather than the fakeMuxer recorder_test.go otherwise drives) and
// checks the init segment begins with the ftyp box every ISOBMFF
// fragmented file must carry first.
func TestMP4MuxerWriteHeaderStartsWithFtyp(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	m := newMP4Muxer(&buf, "Recorded by mirror test")

	if err := m.writeHeader(sampleAnnexBExtradata(), 1080, 1920); err != nil {
		t.Fatalf("writeHeader() error = %v", err)
	}
	if buf.Len() < 8 {
		t.Fatalf("init segment too short: %d bytes", buf.Len())
	}
	if got := string(buf.Bytes()[4:8]); got != "ftyp" {
		t.Errorf("init segment leading box = %q, want ftyp", got)
	}
}

func TestMP4MuxerWriteSampleAppendsFragmentAndTrailerIsNoop(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	m := newMP4Muxer(&buf, "")

	if err := m.writeHeader(sampleAnnexBExtradata(), 1080, 1920); err != nil {
		t.Fatalf("writeHeader() error = %v", err)
	}
	afterHeader := buf.Len()

	if err := m.writeSample(0, 33000, sampleAnnexBFrame(true), true); err != nil {
		t.Fatalf("writeSample() error = %v", err)
	}
	if buf.Len() <= afterHeader {
		t.Errorf("writeSample() did not grow output: before=%d after=%d", afterHeader, buf.Len())
	}
	afterFirstSample := buf.Len()

	if err := m.writeSample(33000, 33000, sampleAnnexBFrame(false), false); err != nil {
		t.Fatalf("writeSample() error = %v", err)
	}
	if buf.Len() <= afterFirstSample {
		t.Errorf("second writeSample() did not grow output further")
	}

	beforeTrailer := buf.Len()
	if err := m.writeTrailer(); err != nil {
		t.Fatalf("writeTrailer() error = %v", err)
	}
	if buf.Len() != beforeTrailer {
		t.Errorf("writeTrailer() wrote %d bytes, want 0 (documented no-op for fmp4)", buf.Len()-beforeTrailer)
	}
}
