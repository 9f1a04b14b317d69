package psd

import "fmt"

// DecodeLayers parses the layer-and-mask information section's layer
// records into a flat, top-to-bottom-ordered slice of LayerRecord,
// alongside whether the document's first alpha channel is the merged
// result's transparency (a negative on-disk layer count, spec §3).
//
// Grounded on the teacher's LayerMask.Parse/parseLayerInfo and
// Layer.parseRecord/parseChannelData, generalized from *File seeking to
// Cursor sub-slicing, from eager channel decompression to recorded
// channelByteRanges, and from a *Node pointer tree to a flat
// ParentIndex arena (see buildHierarchy below).
func DecodeLayers(c *Cursor, header *FileHeader) (layers []*LayerRecord, hasMergedAlpha bool, err error) {
	v2 := header.IsBig()

	// c is the layer-and-mask information section's body: SplitSections
	// has already consumed that section's own outer length prefix, so
	// the first field here is the nested "layer info" length (spec §3).
	layerInfoLen, err := readSectionLength(c, v2)
	if err != nil {
		return nil, false, wrapErr(TruncatedSection, c.Offset(), "layer info length", err)
	}
	if layerInfoLen == 0 {
		return nil, false, nil
	}

	layerInfo, err := c.Take(int(layerInfoLen))
	if err != nil {
		return nil, false, wrapErr(TruncatedSection, c.Offset(), "layer info body", err)
	}

	count16, err := layerInfo.ReadInt16()
	if err != nil {
		return nil, false, wrapErr(UnexpectedEof, layerInfo.Offset(), "layer count", err)
	}
	if count16 < 0 {
		hasMergedAlpha = true
		count16 = -count16
	}
	count := int(count16)

	layers = make([]*LayerRecord, count)
	for i := 0; i < count; i++ {
		lr, err := decodeLayerRecord(layerInfo, v2)
		if err != nil {
			return nil, false, wrapErr(MalformedChannel, layerInfo.Offset(), fmt.Sprintf("layer record %d", i), err)
		}
		layers[i] = lr
	}

	// Each layer's channel image data follows, in the same order as the
	// records themselves (spec §3); record byte ranges without decoding.
	for i, lr := range layers {
		if err := recordChannelRanges(layerInfo, lr); err != nil {
			return nil, false, wrapErr(MalformedChannel, layerInfo.Offset(), fmt.Sprintf("layer %d channel data", i), err)
		}
	}

	// On-disk order is bottom-to-top; the public order (and the order
	// ParentIndex/hierarchy logic below walks) is top-to-bottom (spec §9
	// Design Notes).
	for i, j := 0, len(layers)-1; i < j; i, j = i+1, j-1 {
		layers[i], layers[j] = layers[j], layers[i]
	}

	buildHierarchy(layers)

	return layers, hasMergedAlpha, nil
}

func readSectionLength(c *Cursor, v2 bool) (uint64, error) {
	if v2 {
		return c.ReadUint64()
	}
	n, err := c.ReadUint32()
	return uint64(n), err
}

// decodeLayerRecord parses one layer record: rectangle, channel info
// table, blend signature/mode/opacity/clipping/flags, and the extra
// data block (layer mask data, blending ranges, Pascal name, Additional
// Layer Information). Grounded on the teacher's Layer.parseRecord.
func decodeLayerRecord(c *Cursor, v2 bool) (*LayerRecord, error) {
	lr := &LayerRecord{ParentIndex: -1}

	top, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}
	left, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}
	bottom, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}
	right, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}
	lr.Rect = Rect{Top: top, Left: left, Bottom: bottom, Right: right}

	channelCount, err := c.ReadUint16()
	if err != nil {
		return nil, err
	}
	lr.Channels = make([]ChannelDescriptor, channelCount)
	for i := range lr.Channels {
		kind, err := c.ReadInt16()
		if err != nil {
			return nil, err
		}
		length, err := readSectionLength(c, v2)
		if err != nil {
			return nil, err
		}
		lr.Channels[i] = ChannelDescriptor{Kind: ChannelKind(kind), StoredLength: length}
	}

	if err := c.ExpectSignature("8BIM"); err != nil {
		return nil, err
	}
	blendKey, err := c.Bytes(4)
	if err != nil {
		return nil, err
	}
	lr.BlendModeKey = string(blendKey)

	lr.Opacity, err = c.ReadUint8()
	if err != nil {
		return nil, err
	}
	lr.Clipping, err = c.ReadUint8()
	if err != nil {
		return nil, err
	}
	lr.Flags, err = c.ReadUint8()
	if err != nil {
		return nil, err
	}
	if _, err := c.ReadUint8(); err != nil { // filler byte
		return nil, err
	}

	lr.FillOpacity = 255

	extraLen, err := c.ReadUint32()
	if err != nil {
		return nil, err
	}
	extra, err := c.Take(int(extraLen))
	if err != nil {
		return nil, err
	}

	if err := parseLayerMaskAdjustment(extra); err != nil {
		return nil, err
	}
	if err := parseLayerBlendingRanges(extra); err != nil {
		return nil, err
	}

	name, err := extra.ReadPascalString(4)
	if err != nil {
		return nil, err
	}
	lr.Name = name

	if err := parseAdditionalLayerInfo(extra, v2, lr); err != nil {
		return nil, err
	}

	return lr, nil
}

func parseLayerMaskAdjustment(c *Cursor) error {
	length, err := c.ReadUint32()
	if err != nil {
		return err
	}
	return c.Skip(int(length))
}

func parseLayerBlendingRanges(c *Cursor) error {
	length, err := c.ReadUint32()
	if err != nil {
		return err
	}
	return c.Skip(int(length))
}

// parseAdditionalLayerInfo walks the remainder of a layer record's
// extra data as a sequence of "8BIM"/"8B64"-signed, 4-byte-keyed
// sub-records, dispatching recognized keys and skipping the rest.
// Lengths are u64 for the keys in v2SixtyFourBitKeys when the document
// is a PSB (version 2); every other key uses u32 regardless of version
// (spec §4.5, §9 Open Question).
func parseAdditionalLayerInfo(c *Cursor, v2 bool, lr *LayerRecord) error {
	for c.Remaining() >= 12 {
		sig, err := c.Peek(4)
		if err != nil {
			return err
		}
		if string(sig) != "8BIM" && string(sig) != "8B64" {
			break
		}
		c.Skip(4)
		keyBytes, err := c.Bytes(4)
		if err != nil {
			return err
		}
		key := string(keyBytes)

		var length uint64
		if v2 && v2SixtyFourBitKeys[key] {
			length, err = c.ReadUint64()
		} else {
			var l32 uint32
			l32, err = c.ReadUint32()
			length = uint64(l32)
		}
		if err != nil {
			return err
		}

		payload, err := c.Take(int(length))
		if err != nil {
			return err
		}
		applyAdditionalLayerInfo(key, payload, lr)

		if length%2 == 1 {
			c.Skip(1)
		}
	}
	return nil
}

func applyAdditionalLayerInfo(key string, payload *Cursor, lr *LayerRecord) {
	data, _ := payload.Bytes(payload.Remaining())
	parsed := parseLayerInfo(key, data)

	switch v := parsed.(type) {
	case string:
		if key == aliUnicodeName && v != "" {
			lr.Name = v
		}
	case int32:
		if key == aliLayerID {
			lr.LayerID = v
			lr.HasLayerID = true
		}
	case uint8:
		if key == aliFillOpacity {
			lr.FillOpacity = v
		}
	case *SectionDividerInfo:
		t := v.Type
		lr.GroupDivider = &t
		if v.BlendMode != "" {
			lr.BlendModeKey = v.BlendMode
		}
	case *VectorMaskInfo:
		lr.HasVectorMaskInfo = true
	}
}

// recordChannelRanges consumes this layer's channel image data
// (compression tag + remaining bytes, per channel descriptor) from the
// shared cursor, recording byte ranges into the original document
// buffer rather than decompressing (spec §3).
func recordChannelRanges(c *Cursor, lr *LayerRecord) error {
	lr.channelRanges = make(map[ChannelKind]channelByteRange, len(lr.Channels))

	for _, desc := range lr.Channels {
		if desc.StoredLength < 2 {
			return fmt.Errorf("channel %s: stored length %d too small for compression tag", desc.Kind, desc.StoredLength)
		}
		chunk, err := c.Take(int(desc.StoredLength))
		if err != nil {
			return err
		}
		compressionTag, err := chunk.ReadUint16()
		if err != nil {
			return err
		}
		lr.channelRanges[desc.Kind] = channelByteRange{
			Kind:        desc.Kind,
			Compression: Compression(compressionTag),
			Offset:      chunk.Offset(),
			Length:      chunk.Remaining(),
		}
	}
	return nil
}

// buildHierarchy assigns ParentIndex across a top-to-bottom-ordered
// layer slice using a stack of enclosing group indices instead of the
// teacher's *Node back-pointer tree (spec §3: "parent is recorded as
// the index of its enclosing group's divider row, not a back-pointer").
//
// Grounded on the teacher's LayerMask.buildTree: a "lsct" type 1/2
// (open/closed folder) divider is the group's own header row, appearing
// before its children in top-to-bottom order; a type 3 (bounding
// section) divider is an invisible marker that closes the group,
// appearing after its children.
func buildHierarchy(layers []*LayerRecord) {
	stack := []int{-1}

	for i, lr := range layers {
		switch {
		case lr.IsGroupEnd():
			lr.ParentIndex = stack[len(stack)-1]
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case lr.IsGroupDivider():
			lr.ParentIndex = stack[len(stack)-1]
			stack = append(stack, i)
		default:
			lr.ParentIndex = stack[len(stack)-1]
		}
	}
}
