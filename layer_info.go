package psd

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// errShortRead signals a truncated Additional Layer Information payload
// during a parseLayerInfo helper's internal read.
var errShortRead = errors.New("psd: short read")

// Additional Layer Information keys the core understands (spec §4.5);
// any other key's bytes are skipped but not discarded from the layer's
// byte-range bookkeeping.
const (
	aliUnicodeName     = "luni"
	aliLayerID         = "lyid"
	aliFillOpacity     = "iOpa"
	aliSectionDivider  = "lsct"
	aliSectionDivider2 = "lsdk"
	aliVectorMask      = "vmsk"
	aliVectorMask2     = "vsms"
)

// v2SixtyFourBitKeys is the set of Additional Layer Information keys
// that use a u64 length in PSB (version 2) files; every other key uses
// u32 regardless of version (spec §4.5, §9 Open Question).
var v2SixtyFourBitKeys = map[string]bool{
	"LMsk": true, "Lr16": true, "Lr32": true, "Layr": true,
	"Mt16": true, "Mt32": true, "Mtrn": true, "Alph": true,
	"FMsk": true, "lnk2": true, "FEid": true, "FXid": true, "PxSD": true,
}

// parseLayerInfo parses one Additional Layer Information record's
// already-extracted payload based on its 4-byte key. Grounded on the
// teacher's layer_info.go dispatch of the same name and signature.
func parseLayerInfo(key string, data []byte) interface{} {
	reader := bytes.NewReader(data)

	switch key {
	case aliUnicodeName:
		return parseUnicodeName(reader)
	case aliLayerID:
		return parseLayerID(reader)
	case aliFillOpacity:
		return parseFillOpacity(reader)
	case aliSectionDivider, aliSectionDivider2:
		return parseSectionDivider(reader)
	case aliVectorMask, aliVectorMask2:
		return parseVectorMask(reader)
	default:
		return nil
	}
}

// parseUnicodeName parses a "luni" Unicode layer name: a u32 length (in
// UTF-16 code units) followed by that many big-endian code units.
// Reimplemented over bytes.Reader rather than Cursor because the
// Additional Layer Information loop has already sliced this key's
// payload into its own []byte before dispatching.
func parseUnicodeName(reader *bytes.Reader) string {
	var length uint32
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return ""
	}
	if length == 0 {
		return ""
	}

	data := make([]byte, length*2)
	if _, err := readFull(reader, data); err != nil {
		return ""
	}

	decoded, err := utf16BEDecoder.Bytes(data)
	if err != nil {
		return ""
	}
	return string(decoded)
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, errShortRead
		}
	}
	return n, nil
}

// parseLayerID parses the "lyid" layer ID.
func parseLayerID(reader *bytes.Reader) int32 {
	var id int32
	if err := binary.Read(reader, binary.BigEndian, &id); err != nil {
		return 0
	}
	return id
}

// parseFillOpacity parses the "iOpa" fill opacity, defaulting to full
// opacity on malformed data.
func parseFillOpacity(reader *bytes.Reader) uint8 {
	var opacity uint8
	if err := binary.Read(reader, binary.BigEndian, &opacity); err != nil {
		return 255
	}
	return opacity
}

// SectionDividerInfo is the parsed "lsct"/"lsdk" payload identifying a
// group-boundary pseudo-layer.
type SectionDividerInfo struct {
	Type      GroupDividerType
	BlendMode string
	SubType   int32
}

// parseSectionDivider parses layer section divider info. Grounded on
// the teacher's parseSectionDivider (layer_info.go).
func parseSectionDivider(reader *bytes.Reader) *SectionDividerInfo {
	info := &SectionDividerInfo{}

	var sectionType int32
	if err := binary.Read(reader, binary.BigEndian, &sectionType); err != nil {
		return info
	}
	info.Type = GroupDividerType(sectionType)

	if reader.Len() >= 8 {
		sig := make([]byte, 4)
		readFull(reader, sig)

		blendKey := make([]byte, 4)
		readFull(reader, blendKey)
		info.BlendMode = string(blendKey)
	}

	if reader.Len() >= 4 {
		binary.Read(reader, binary.BigEndian, &info.SubType)
	}

	return info
}

// VectorMaskInfo records that a layer carries a vector mask, without
// attempting path reconstruction: the spec's Non-goals exclude
// vector/shape reinterpretation beyond the raster channels a layer
// exposes through RGBA().
type VectorMaskInfo struct {
	Version    uint32
	Flags      uint32
	IsInverted bool
}

// parseVectorMask parses only the vector mask's version/flags header,
// deliberately dropping the path data the teacher's VectorMaskInfo kept
// (PathData []byte): nothing in this implementation reconstructs vector
// paths, so HasVectorMaskInfo is a boolean flag and nothing more.
func parseVectorMask(reader *bytes.Reader) *VectorMaskInfo {
	info := &VectorMaskInfo{}

	if err := binary.Read(reader, binary.BigEndian, &info.Version); err != nil {
		return info
	}
	if err := binary.Read(reader, binary.BigEndian, &info.Flags); err != nil {
		return info
	}
	info.IsInverted = info.Flags&0x01 != 0

	return info
}
