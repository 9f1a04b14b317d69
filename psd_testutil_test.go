package psd

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// layerSpec describes one layer record for buildPSD, in on-disk order
// (bottom-to-top; buildPSD does not reverse anything for you, matching
// how DecodeLayers itself expects to find them).
type layerSpec struct {
	name         string
	rect         Rect
	opacity      uint8
	clipping     uint8
	flags        uint8
	blendMode    string                 // 4 chars, defaults to "norm"
	channels     map[int16][]byte       // kind -> raw 8-bit row-major bytes sized rect.Width()*rect.Height()
	compression  Compression            // applied uniformly to every channel; defaults to CompressionRaw
	groupDivider *GroupDividerType
	unicodeName  string // if set, written as a "luni" Additional Layer Info record
}

// buildPSD assembles a minimal, valid, uncompressed-merged-image 8-bit
// PSD byte buffer in the given color mode for the given canvas size,
// layers (disk order), and merged-image channel data (one plane per
// document channel, row-major, each width*height bytes). mergedAlpha
// writes the layer count negated, which signals a merged alpha channel
// per spec §3.
func buildPSD(t testing.TB, width, height int, colorMode uint16, docChannels [][]byte, layers []layerSpec, mergedAlpha bool) []byte {
	t.Helper()

	buf := new(bytes.Buffer)

	// Header
	buf.WriteString("8BPS")
	binary.Write(buf, binary.BigEndian, uint16(1)) // version 1 (PSD)
	buf.Write(make([]byte, 6))                     // reserved
	binary.Write(buf, binary.BigEndian, uint16(len(docChannels)))
	binary.Write(buf, binary.BigEndian, uint32(height))
	binary.Write(buf, binary.BigEndian, uint32(width))
	binary.Write(buf, binary.BigEndian, uint16(8)) // depth
	binary.Write(buf, binary.BigEndian, colorMode)

	// Color mode data (empty)
	binary.Write(buf, binary.BigEndian, uint32(0))

	// Image resources (empty)
	binary.Write(buf, binary.BigEndian, uint32(0))

	// Layer and mask information: the section's own length, then the
	// nested layer info length and body
	layerInfo := buildLayerInfo(t, layers, mergedAlpha)
	binary.Write(buf, binary.BigEndian, uint32(4+len(layerInfo)))
	binary.Write(buf, binary.BigEndian, uint32(len(layerInfo)))
	buf.Write(layerInfo)

	// Image data: compression (raw) + channel planes
	binary.Write(buf, binary.BigEndian, uint16(0))
	for _, ch := range docChannels {
		if len(ch) != width*height {
			t.Fatalf("merged channel data length %d != width*height %d", len(ch), width*height)
		}
		buf.Write(ch)
	}

	return buf.Bytes()
}

func buildLayerInfo(t testing.TB, layers []layerSpec, mergedAlpha bool) []byte {
	t.Helper()
	buf := new(bytes.Buffer)

	count := int16(len(layers))
	if mergedAlpha {
		count = -count
	}
	binary.Write(buf, binary.BigEndian, count)

	for _, l := range layers {
		writeLayerRecord(t, buf, l)
	}
	for _, l := range layers {
		writeLayerChannelData(t, buf, l)
	}

	return buf.Bytes()
}

func writeLayerRecord(t testing.TB, buf *bytes.Buffer, l layerSpec) {
	t.Helper()

	binary.Write(buf, binary.BigEndian, l.rect.Top)
	binary.Write(buf, binary.BigEndian, l.rect.Left)
	binary.Write(buf, binary.BigEndian, l.rect.Bottom)
	binary.Write(buf, binary.BigEndian, l.rect.Right)

	kinds := orderedKinds(l.channels)
	binary.Write(buf, binary.BigEndian, uint16(len(kinds)))
	for _, kind := range kinds {
		binary.Write(buf, binary.BigEndian, kind)
		stored := encodeLayerChannel(l, kind)
		dataLen := uint32(2 + len(stored)) // compression tag + encoded bytes
		binary.Write(buf, binary.BigEndian, dataLen)
	}

	buf.WriteString("8BIM")
	blendMode := l.blendMode
	if blendMode == "" {
		blendMode = "norm"
	}
	buf.WriteString(blendMode)

	buf.WriteByte(l.opacity)
	buf.WriteByte(l.clipping)
	buf.WriteByte(l.flags)
	buf.WriteByte(0) // filler

	extra := new(bytes.Buffer)
	binary.Write(extra, binary.BigEndian, uint32(0)) // layer mask data
	binary.Write(extra, binary.BigEndian, uint32(0)) // blending ranges
	writePascalString4(extra, l.name)
	writeAdditionalLayerInfo(extra, l)

	binary.Write(buf, binary.BigEndian, uint32(extra.Len()))
	buf.Write(extra.Bytes())
}

func writeAdditionalLayerInfo(buf *bytes.Buffer, l layerSpec) {
	if l.groupDivider != nil {
		payload := new(bytes.Buffer)
		binary.Write(payload, binary.BigEndian, int32(*l.groupDivider))
		writeALIRecord(buf, "lsct", payload.Bytes())
	}
	if l.unicodeName != "" {
		payload := new(bytes.Buffer)
		runes := []rune(l.unicodeName)
		binary.Write(payload, binary.BigEndian, uint32(len(runes)))
		for _, r := range runes {
			binary.Write(payload, binary.BigEndian, uint16(r))
		}
		writeALIRecord(buf, "luni", payload.Bytes())
	}
}

func writeALIRecord(buf *bytes.Buffer, key string, payload []byte) {
	buf.WriteString("8BIM")
	buf.WriteString(key)
	binary.Write(buf, binary.BigEndian, uint32(len(payload)))
	buf.Write(payload)
	if len(payload)%2 == 1 {
		buf.WriteByte(0)
	}
}

func writeLayerChannelData(t testing.TB, buf *bytes.Buffer, l layerSpec) {
	t.Helper()
	for _, kind := range orderedKinds(l.channels) {
		binary.Write(buf, binary.BigEndian, uint16(l.compression))
		buf.Write(encodeLayerChannel(l, kind))
	}
}

// encodeLayerChannel returns a layer channel's stored bytes (after the
// compression tag) per l.compression.
func encodeLayerChannel(l layerSpec, kind int16) []byte {
	raw := l.channels[kind]
	if l.compression == CompressionRLE {
		return encodeRLEChannel(raw, int(l.rect.Width()), int(l.rect.Height()))
	}
	return raw
}

func orderedKinds(channels map[int16][]byte) []int16 {
	// Fixed, deterministic iteration order matching a typical RGB layer
	// record: color channels first, then transparency mask.
	order := []int16{0, 1, 2, -1, -2, -3}
	var out []int16
	for _, k := range order {
		if _, ok := channels[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func writePascalString4(buf *bytes.Buffer, s string) {
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
	total := 1 + len(s)
	if pad := (4 - total%4) % 4; pad > 0 {
		buf.Write(make([]byte, pad))
	}
}

// solidChannel returns a width*height plane filled with value.
func solidChannel(width, height int, value byte) []byte {
	b := make([]byte, width*height)
	for i := range b {
		b[i] = value
	}
	return b
}

// encodeRLERow PackBits-encodes src as a single literal run (or a
// sequence of them if longer than 128 bytes), used by tests that need
// to exercise the RLE decode path without a real Photoshop-authored
// fixture.
func encodeRLERow(src []byte) []byte {
	var out []byte
	for len(src) > 0 {
		n := len(src)
		if n > 128 {
			n = 128
		}
		out = append(out, byte(n-1))
		out = append(out, src[:n]...)
		src = src[n:]
	}
	return out
}

// encodeRLEChannel RLE-encodes a width*height planar channel row by
// row, returning the 2-byte-row-count-table + row-data buffer expected
// by a single channel's stored bytes (spec §4.6).
func encodeRLEChannel(data []byte, width, height int) []byte {
	rows := make([][]byte, height)
	for y := 0; y < height; y++ {
		rows[y] = encodeRLERow(data[y*width : (y+1)*width])
	}

	buf := new(bytes.Buffer)
	for _, row := range rows {
		binary.Write(buf, binary.BigEndian, uint16(len(row)))
	}
	for _, row := range rows {
		buf.Write(row)
	}
	return buf.Bytes()
}
