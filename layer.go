package psd

import "strings"

// GroupDividerType is the type of a "lsct" section divider pseudo-layer
// (spec §3).
type GroupDividerType int32

const (
	DividerOther           GroupDividerType = 0
	DividerOpenFolder      GroupDividerType = 1
	DividerClosedFolder    GroupDividerType = 2
	DividerBoundingSection GroupDividerType = 3
)

func (d GroupDividerType) String() string {
	switch d {
	case DividerOther:
		return "other"
	case DividerOpenFolder:
		return "open folder"
	case DividerClosedFolder:
		return "closed folder"
	case DividerBoundingSection:
		return "bounding section divider"
	default:
		return "unknown"
	}
}

// Layer flag bits (spec §3).
const (
	flagTransparencyProtected uint8 = 1 << 0
	flagHidden                uint8 = 1 << 1
	flagObsolete              uint8 = 1 << 2
	flagPixelDataIrrelevant   uint8 = 1 << 4
)

// LayerRecord is one parsed layer (or group-divider pseudo-layer) from
// the layer-and-mask information section (spec §3). Channel pixel data
// is referenced by byte range, not eagerly decoded; DecodedChannel
// buffers are computed and cached lazily on first RGBA() call.
type LayerRecord struct {
	psd *Psd

	Rect         Rect
	Channels     []ChannelDescriptor
	BlendModeKey string
	Opacity      uint8
	Clipping     uint8
	Flags        uint8
	Name         string

	GroupDivider      *GroupDividerType
	ParentIndex       int // index into psd.layers of the enclosing group's divider row, or -1
	LayerID           int32
	HasLayerID        bool
	FillOpacity       uint8
	HasVectorMaskInfo bool

	channelRanges map[ChannelKind]channelByteRange
	planeCache    map[ChannelKind]*DecodedChannel
}

// Width returns the layer's rectangle width.
func (l *LayerRecord) Width() int32 { return l.Rect.Width() }

// Height returns the layer's rectangle height.
func (l *LayerRecord) Height() int32 { return l.Rect.Height() }

// Top, Left, Bottom, Right mirror the layer's rectangle fields.
func (l *LayerRecord) Top() int32    { return l.Rect.Top }
func (l *LayerRecord) Left() int32   { return l.Rect.Left }
func (l *LayerRecord) Bottom() int32 { return l.Rect.Bottom }
func (l *LayerRecord) Right() int32  { return l.Rect.Right }

// Visible reports whether the layer's visibility flag is clear (bit 1
// set means hidden), matching the teacher's Layer.Visible.
func (l *LayerRecord) Visible() bool {
	return l.Flags&flagHidden == 0
}

// IsGroupDivider reports whether this record is a section-divider
// pseudo-layer rather than a real, paintable layer.
func (l *LayerRecord) IsGroupDivider() bool {
	return l.GroupDivider != nil
}

// IsGroupEnd reports whether this divider closes a group (type
// BoundingSection), the teacher's IsFolderEnd concept.
func (l *LayerRecord) IsGroupEnd() bool {
	return l.GroupDivider != nil && *l.GroupDivider == DividerBoundingSection
}

// BlendModeName returns the human-readable blend mode name. Grounded on
// the teacher's blendModeString (layer.go / blend_modes.go).
func (l *LayerRecord) BlendModeName() string {
	if name, ok := blendModeKeyNames[l.BlendModeKey]; ok {
		return name
	}
	return strings.TrimSpace(l.BlendModeKey)
}

// IsNormalBlendMode reports whether the layer uses (or defaults to)
// normal/source-over blending.
func (l *LayerRecord) IsNormalBlendMode() bool {
	switch l.BlendModeName() {
	case "normal", "passthru", "":
		return true
	default:
		return false
	}
}

// Compression returns the stored compression tag for one of the
// layer's channels.
func (l *LayerRecord) Compression(kind ChannelKind) (Compression, bool) {
	r, ok := l.channelRanges[kind]
	if !ok {
		return 0, false
	}
	return r.Compression, true
}

// decodedChannel lazily decompresses and caches the plane for kind.
func (l *LayerRecord) decodedChannel(kind ChannelKind, depth uint16, v2 bool) (*DecodedChannel, error) {
	if cached, ok := l.planeCache[kind]; ok {
		return cached, nil
	}
	r, ok := l.channelRanges[kind]
	if !ok {
		return nil, nil
	}

	width := int(l.Rect.Width())
	height := int(l.Rect.Height())
	if width <= 0 || height <= 0 {
		return nil, nil
	}

	stored := l.psd.data[r.Offset : r.Offset+r.Length]
	plane, err := DecompressChannel(kind, r.Compression, stored, width, height, depth, v2)
	if err != nil {
		return nil, err
	}

	if l.planeCache == nil {
		l.planeCache = make(map[ChannelKind]*DecodedChannel)
	}
	l.planeCache[kind] = plane
	return plane, nil
}

// RGBA returns the layer's interleaved RGBA pixels, sized to the
// document's width*height*4 and clipped to document bounds (spec §4.7,
// §6 Layer::rgba). Pixels outside the layer's intersected rectangle are
// (0,0,0,0).
//
// Grounded on the teacher's Layer.ToImage per-pixel channel gather
// loop, generalized to a document-sized, document-clipped buffer
// instead of an always-layer-sized image.RGBA (the teacher had no
// notion of "document size" at the layer level, so it could not
// express an out-of-canvas layer; see spec scenario 6).
func (l *LayerRecord) RGBA() ([]byte, error) {
	docRect := l.psd.DocumentRect()
	dst := make([]byte, int(docRect.Width())*int(docRect.Height())*4)
	if err := l.assembleInto(dst, docRect); err != nil {
		return nil, err
	}
	return dst, nil
}

func (l *LayerRecord) assembleInto(dst []byte, bounds Rect) error {
	header := l.psd.header
	depth := header.Depth
	v2 := header.IsBig()

	if header.ColorMode != ColorModeRGB && header.ColorMode != ColorModeGrayscale {
		return newErr(Unsupported, 0, "unsupported color mode for layer rgba: "+header.ModeName())
	}

	red, err := l.decodedChannel(ChannelRed, depth, v2)
	if err != nil {
		return err
	}
	green, err := l.decodedChannel(ChannelGreen, depth, v2)
	if err != nil {
		return err
	}
	blue, err := l.decodedChannel(ChannelBlue, depth, v2)
	if err != nil {
		return err
	}
	alpha, err := l.decodedChannel(ChannelTransparencyMask, depth, v2)
	if err != nil {
		return err
	}

	planes := channelPlanes{red: red, green: green, blue: blue, alpha: alpha, gray: red, colorMode: header.ColorMode}
	return AssembleRGBA(planes, l.Rect, bounds, dst)
}
