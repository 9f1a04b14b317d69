package psd

import "fmt"

// Color modes, as stored in FileHeader.ColorMode. Grounded on the
// teacher's header.go color-mode constants (trimmed to the 8 modes
// spec §3 names; the teacher's extra "16/48/64-bit" aliases described
// depth variants of the same modes, which FileHeader.Depth already
// captures independently).
const (
	ColorModeBitmap       = 0
	ColorModeGrayscale    = 1
	ColorModeIndexed      = 2
	ColorModeRGB          = 3
	ColorModeCMYK         = 4
	ColorModeMultichannel = 7
	ColorModeDuotone      = 8
	ColorModeLab          = 9
)

var colorModeNames = map[uint16]string{
	ColorModeBitmap:       "Bitmap",
	ColorModeGrayscale:    "Grayscale",
	ColorModeIndexed:      "Indexed",
	ColorModeRGB:          "Rgb",
	ColorModeCMYK:         "Cmyk",
	ColorModeMultichannel: "Multichannel",
	ColorModeDuotone:      "Duotone",
	ColorModeLab:          "Lab",
}

// FileHeader is the parsed, validated 26-byte PSD/PSB header. Immutable
// after decode (spec §3).
type FileHeader struct {
	Version      uint16
	ChannelCount uint16
	Height       uint32
	Width        uint32
	Depth        uint16
	ColorMode    uint16
}

// IsBig reports whether this is a PSB (large document format, version 2).
func (h *FileHeader) IsBig() bool {
	return h.Version == 2
}

// IsRGB reports whether the color mode is Rgb.
func (h *FileHeader) IsRGB() bool {
	return h.ColorMode == ColorModeRGB
}

// IsGrayscale reports whether the color mode is Grayscale.
func (h *FileHeader) IsGrayscale() bool {
	return h.ColorMode == ColorModeGrayscale
}

// ModeName returns the human-readable color mode name.
func (h *FileHeader) ModeName() string {
	if name, ok := colorModeNames[h.ColorMode]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", h.ColorMode)
}

func maxDimension(version uint16) uint32 {
	if version == 2 {
		return 300000
	}
	return 30000
}

// DecodeHeader validates the 26-byte header view: magic "8BPS", version
// 1 or 2, 6 zero reserved bytes, then channel count, height, width,
// depth and color mode within their legal ranges (spec §4.3). Grounded
// on the teacher's header.go Parse, generalized to enforce the
// version-dependent height/width ceilings spec §3 requires and which
// the teacher never checked.
func DecodeHeader(c *Cursor) (*FileHeader, error) {
	if err := c.ExpectSignature("8BPS"); err != nil {
		return nil, err
	}

	version, err := c.ReadUint16()
	if err != nil {
		return nil, err
	}
	if version != 1 && version != 2 {
		return nil, newErr(UnsupportedVersion, c.Offset(), fmt.Sprintf("version=%d", version))
	}

	reservedOffset := c.Offset()
	reserved, err := c.Bytes(6)
	if err != nil {
		return nil, err
	}
	for _, b := range reserved {
		if b != 0 {
			return nil, newErr(OutOfRange, reservedOffset, "reserved bytes must be zero")
		}
	}

	channelsOffset := c.Offset()
	channels, err := c.ReadUint16()
	if err != nil {
		return nil, err
	}
	if channels < 1 || channels > 56 {
		return nil, errOutOfRange(channelsOffset, "channels", int64(channels))
	}

	maxDim := maxDimension(version)

	heightOffset := c.Offset()
	height, err := c.ReadUint32()
	if err != nil {
		return nil, err
	}
	if height < 1 || height > maxDim {
		return nil, errOutOfRange(heightOffset, "height", int64(height))
	}

	widthOffset := c.Offset()
	width, err := c.ReadUint32()
	if err != nil {
		return nil, err
	}
	if width < 1 || width > maxDim {
		return nil, errOutOfRange(widthOffset, "width", int64(width))
	}

	depthOffset := c.Offset()
	depth, err := c.ReadUint16()
	if err != nil {
		return nil, err
	}
	switch depth {
	case 1, 8, 16, 32:
	default:
		return nil, errOutOfRange(depthOffset, "depth", int64(depth))
	}

	modeOffset := c.Offset()
	mode, err := c.ReadUint16()
	if err != nil {
		return nil, err
	}
	if _, ok := colorModeNames[mode]; !ok {
		return nil, newErr(InvalidColorMode, modeOffset, fmt.Sprintf("value=%d", mode))
	}

	return &FileHeader{
		Version:      version,
		ChannelCount: channels,
		Height:       height,
		Width:        width,
		Depth:        depth,
		ColorMode:    mode,
	}, nil
}
