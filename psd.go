package psd

// Psd is a decoded PSD/PSB document: an immutable header, the image
// resources section, a flat top-to-bottom-ordered slice of layer
// records, and a lazily-decoded whole-document image. It borrows the
// byte slice passed to Decode for the lifetime of any LayerRecord's
// RGBA() call; callers must not mutate that slice afterward.
//
// Grounded on the teacher's PSD facade (psd.go), generalized from a
// *os.File-backed, eagerly-every-section-parsed design to an in-memory
// []byte-backed decode performed once up front (spec §4.1, §5: no
// concurrency primitives, a single synchronous decode pass).
type Psd struct {
	data     []byte
	sections *Sections
	header   *FileHeader

	resources        *ResourceSection
	resourceWarnings []error

	layers         []*LayerRecord
	hasMergedAlpha bool

	strictBlendModes bool

	merged *MergedImage
}

// Option configures a Decode call.
type Option func(*Psd)

// WithStrictBlendModes causes FlattenLayersRGBA to fail with
// UnsupportedBlendMode the first time it encounters a visible,
// filter-accepted layer whose blend mode isn't normal/passthru, instead
// of silently treating every layer as normal (spec §4.8, §6).
func WithStrictBlendModes() Option {
	return func(p *Psd) { p.strictBlendModes = true }
}

// Decode parses a complete PSD/PSB byte slice: the 26-byte header, the
// color mode data (retained only as section bookkeeping; spec's
// Non-goals exclude indexed/duotone color table interpretation), the
// image resources and the layer-and-mask information, and locates the
// merged image data section (its compression tag and channels are
// decoded lazily on the first RGBA()/CompressionMode() call).
func Decode(data []byte, opts ...Option) (*Psd, error) {
	sections, err := SplitSections(data)
	if err != nil {
		return nil, err
	}

	header, err := DecodeHeader(sections.Header)
	if err != nil {
		return nil, err
	}

	resources, warnings, err := DecodeResourceSection(sections.Resources)
	if err != nil {
		return nil, err
	}

	layers, hasMergedAlpha, err := DecodeLayers(sections.LayerAndMask, header)
	if err != nil {
		return nil, err
	}

	p := &Psd{
		data:             data,
		sections:         sections,
		header:           header,
		resources:        resources,
		resourceWarnings: warnings,
		layers:           layers,
		hasMergedAlpha:   hasMergedAlpha,
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, lr := range p.layers {
		lr.psd = p
	}

	return p, nil
}

// Width returns the document's width in pixels.
func (p *Psd) Width() int32 { return int32(p.header.Width) }

// Height returns the document's height in pixels.
func (p *Psd) Height() int32 { return int32(p.header.Height) }

// Depth returns the document's bit depth per channel (1, 8, 16, or 32).
func (p *Psd) Depth() uint16 { return p.header.Depth }

// ColorMode returns the document's raw color mode code.
func (p *Psd) ColorMode() uint16 { return p.header.ColorMode }

// ColorModeName returns the document's human-readable color mode name.
func (p *Psd) ColorModeName() string { return p.header.ModeName() }

// ChannelCount returns the number of channels the merged image data
// carries (spec §3).
func (p *Psd) ChannelCount() uint16 { return p.header.ChannelCount }

// Version returns 1 for PSD or 2 for PSB.
func (p *Psd) Version() uint16 { return p.header.Version }

// DocumentRect returns the document's canvas rectangle, (0,0) to
// (width,height).
func (p *Psd) DocumentRect() Rect { return documentRect(p.header) }

// HasMergedAlpha reports whether the layer count was stored as
// negative, meaning the first alpha channel of the merged image data
// is the merged result's transparency rather than a spot channel (spec
// §3).
func (p *Psd) HasMergedAlpha() bool { return p.hasMergedAlpha }

// Warnings returns non-fatal conditions observed while decoding (spec
// §7), e.g. a repeated image resource ID.
func (p *Psd) Warnings() []error { return p.resourceWarnings }

// Resources returns the decoded image resources section.
func (p *Psd) Resources() *ResourceSection { return p.resources }

// Layers returns every layer record (including group-divider
// pseudo-layers) in top-to-bottom visual order.
func (p *Psd) Layers() []*LayerRecord { return p.layers }

// LayerByIndex returns the layer at index, or false if index is out of
// range.
func (p *Psd) LayerByIndex(index int) (*LayerRecord, bool) {
	if index < 0 || index >= len(p.layers) {
		return nil, false
	}
	return p.layers[index], true
}

// LayerByName returns the first layer (in top-to-bottom order) with
// the given name, or false if none match.
func (p *Psd) LayerByName(name string) (*LayerRecord, bool) {
	for _, lr := range p.layers {
		if lr.Name == name {
			return lr, true
		}
	}
	return nil, false
}

// SectionOffsets returns the absolute byte offset each top-level
// section begins at, for diagnostics.
func (p *Psd) SectionOffsets() map[string]int {
	return map[string]int{
		"header":        p.sections.HeaderOffset,
		"colorModeData": p.sections.ColorModeDataOffset,
		"resources":     p.sections.ResourcesOffset,
		"layerAndMask":  p.sections.LayerAndMaskOffset,
		"imageData":     p.sections.ImageDataOffset,
	}
}

func (p *Psd) mergedImage() (*MergedImage, error) {
	if p.merged != nil {
		return p.merged, nil
	}
	img, err := DecodeMergedImage(p.sections.ImageData, p.header)
	if err != nil {
		return nil, err
	}
	p.merged = img
	return img, nil
}

// CompressionMode returns the merged image data's compression tag.
func (p *Psd) CompressionMode() (Compression, error) {
	img, err := p.mergedImage()
	if err != nil {
		return 0, err
	}
	return img.Compression, nil
}

// RGBA returns the document's merged (flattened-by-Photoshop) preview
// image as an interleaved RGBA buffer (spec §6 Psd::rgba).
func (p *Psd) RGBA() ([]byte, error) {
	img, err := p.mergedImage()
	if err != nil {
		return nil, err
	}
	return img.RGBA(p.header)
}

// FlattenLayersRGBA composites layers accepted by filter (nil accepts
// every visible layer) into a document-sized RGBA buffer using
// source-over alpha compositing (spec §4.8, §6 Psd::flatten). filter
// receives each visible, non-divider layer's index into Layers() and
// the layer itself.
func (p *Psd) FlattenLayersRGBA(filter func(index int, layer *LayerRecord) bool) ([]byte, error) {
	return Flatten(p.layers, p.header, filter, p.strictBlendModes)
}
