package psd

import "encoding/binary"

// MergedImage is the decoded whole-document "merged" image data: one
// DecodedChannel per channel, in fixed disk order (R,G,B,[A] for RGB;
// Gray,[A] for Grayscale), with no per-channel kind tag on disk (spec
// §3's ChannelKind enum only applies to layer records).
//
// Grounded on the teacher's Image.Parse/parseRaw/parseRLE, generalized
// from fixed 8-bit RGB/Grayscale-only decoding to any bit depth and to
// the PSB 4-byte RLE row count table, by reusing channel.go's
// decompressRaw/decompressRLE instead of a separate hand-rolled path.
type MergedImage struct {
	Compression Compression
	Channels    []*DecodedChannel
}

// DecodeMergedImage parses the image data section (spec §3). Zip
// compression is recognized but rejected with Unsupported, matching
// DecompressChannel's behavior for layer channels.
func DecodeMergedImage(c *Cursor, header *FileHeader) (*MergedImage, error) {
	compTag, err := c.ReadUint16()
	if err != nil {
		return nil, err
	}
	compression := Compression(compTag)
	if compression.isZip() {
		return nil, newErr(Unsupported, c.Offset(), "zip compression for merged image data")
	}

	channelCount := int(header.ChannelCount)
	width := int(header.Width)
	height := int(header.Height)
	depth := header.Depth
	v2 := header.IsBig()

	channels := make([]*DecodedChannel, channelCount)

	switch compression {
	case CompressionRaw:
		perChannel := rowByteWidth(width, depth) * height
		for i := 0; i < channelCount; i++ {
			stored, err := c.Bytes(perChannel)
			if err != nil {
				return nil, err
			}
			ch, err := decompressRaw(ChannelKind(i), stored, width, height, depth)
			if err != nil {
				return nil, err
			}
			channels[i] = ch
		}

	case CompressionRLE:
		countWidth := 2
		if v2 {
			countWidth = 4
		}

		// The RLE row byte-count table for the merged image is written
		// channel-major (every channel's row counts, in turn) ahead of
		// all channel data, unlike a layer channel's self-contained
		// table+data block; rebuild a self-contained buffer per channel
		// so decompressRLE's per-channel contract still applies.
		counts := make([][]int, channelCount)
		for ch := 0; ch < channelCount; ch++ {
			counts[ch] = make([]int, height)
			for row := 0; row < height; row++ {
				var n int
				if countWidth == 2 {
					v, err := c.ReadUint16()
					if err != nil {
						return nil, err
					}
					n = int(v)
				} else {
					v, err := c.ReadUint32()
					if err != nil {
						return nil, err
					}
					n = int(v)
				}
				counts[ch][row] = n
			}
		}

		for ch := 0; ch < channelCount; ch++ {
			total := 0
			for _, n := range counts[ch] {
				total += n
			}
			rowData, err := c.Bytes(total)
			if err != nil {
				return nil, err
			}

			synthetic := make([]byte, countWidth*height+total)
			for row, n := range counts[ch] {
				off := row * countWidth
				if countWidth == 2 {
					binary.BigEndian.PutUint16(synthetic[off:], uint16(n))
				} else {
					binary.BigEndian.PutUint32(synthetic[off:], uint32(n))
				}
			}
			copy(synthetic[countWidth*height:], rowData)

			decoded, err := decompressRLE(ChannelKind(ch), synthetic, width, height, depth, v2)
			if err != nil {
				return nil, err
			}
			channels[ch] = decoded
		}

	default:
		return nil, newErr(InvalidCompression, c.Offset(), "merged image data")
	}

	return &MergedImage{Compression: compression, Channels: channels}, nil
}

// RGBA interleaves the merged image's channels into a document-sized
// RGBA buffer (spec §4.7, §6 Psd::rgba).
func (m *MergedImage) RGBA(header *FileHeader) ([]byte, error) {
	rect := Rect{Top: 0, Left: 0, Bottom: int32(header.Height), Right: int32(header.Width)}
	dst := make([]byte, int(rect.Width())*int(rect.Height())*4)

	var planes channelPlanes
	planes.colorMode = header.ColorMode

	switch header.ColorMode {
	case ColorModeGrayscale:
		if len(m.Channels) < 1 {
			return nil, newErr(Unsupported, 0, "grayscale merged image missing channel data")
		}
		planes.gray = m.Channels[0]
		if len(m.Channels) > 1 {
			planes.alpha = m.Channels[1]
		}
	case ColorModeRGB:
		if len(m.Channels) < 3 {
			return nil, newErr(Unsupported, 0, "rgb merged image missing channel data")
		}
		planes.red = m.Channels[0]
		planes.green = m.Channels[1]
		planes.blue = m.Channels[2]
		if len(m.Channels) > 3 {
			planes.alpha = m.Channels[3]
		}
	default:
		return nil, newErr(Unsupported, 0, "unsupported color mode for merged image rgba: "+header.ModeName())
	}

	if err := AssembleRGBA(planes, rect, rect, dst); err != nil {
		return nil, err
	}
	return dst, nil
}
