// Package h264 turns complete-access-unit chunks received from the Stream
// into access units carrying a keyframe flag, the way the teacher's demux
// package extracts NAL-level metadata from an Annex-B byte stream.
package h264

import (
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

// AccessUnit is one fully-delimited H.264 access unit extracted from a
// Stream chunk, plus the keyframe flag the Stream needs to populate a
// Packet.
type AccessUnit struct {
	Data     []byte
	KeyFrame bool
}

// Parser extracts access units from chunk payloads that are already
// guaranteed to carry complete frames (the Stream never hands it a partial
// NAL unit, mirroring FFmpeg's PARSER_FLAG_COMPLETE_FRAMES mode). Because
// each call receives a complete frame, Parser needs no buffering state
// across calls; it exists as a type (rather than a free function) so future
// parameter-set tracking has somewhere to live without changing the Stream's
// call site.
type Parser struct{}

// NewParser returns a Parser ready to use.
func NewParser() *Parser {
	return &Parser{}
}

// Parse splits data into access units and flags each as a keyframe if it
// contains an IDR slice NAL unit. Complete-frame chunks from this pipeline
// always yield exactly one access unit, but the return type is a slice to
// keep faith with the upstream parser's "zero or more per call" contract.
func (p *Parser) Parse(data []byte) ([]AccessUnit, error) {
	var nalus h264.AnnexB
	if err := nalus.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("h264: parse access unit: %w", err)
	}
	if len(nalus) == 0 {
		return nil, nil
	}

	keyframe := false
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		if h264.NALUType(nalu[0]&0x1F) == h264.NALUTypeIDR {
			keyframe = true
			break
		}
	}

	return []AccessUnit{{Data: data, KeyFrame: keyframe}}, nil
}

// ExtractParameterSets splits a config packet's payload (itself an Annex-B
// blob of one or more NAL units) into its SPS and PPS, used by the Recorder
// to build a codec descriptor for the muxer. Only the first SPS/PPS pair
// found is returned, matching how a single-stream mirror session works.
func ExtractParameterSets(extradata []byte) (sps, pps []byte, err error) {
	var nalus h264.AnnexB
	if err := nalus.Unmarshal(extradata); err != nil {
		return nil, nil, fmt.Errorf("h264: parse extradata: %w", err)
	}
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		switch h264.NALUType(nalu[0] & 0x1F) {
		case h264.NALUTypeSPS:
			if sps == nil {
				sps = nalu
			}
		case h264.NALUTypePPS:
			if pps == nil {
				pps = nalu
			}
		}
	}
	return sps, pps, nil
}
