package psd

// Flatten composites the visible, filter-accepted layers of a
// document into one document-sized RGBA buffer using source-over
// (Porter-Duff) alpha compositing in top-to-bottom visual order,
// internally walking bottom-to-top so each successive layer draws over
// what came before (spec §4.8). Group-divider pseudo-layers never
// contribute pixels directly; hidden layers are skipped before filter
// is called. filter receives every visible, non-divider layer's index
// (into the document's layer slice) and the layer itself, and a false
// result skips it as if invisible.
//
// Grounded on the teacher's Renderer/renderNode/renderLayer/blendNormal
// (renderer.go), generalized from an image.RGBA + per-call PNG export
// to an in-memory []byte buffer (file I/O is out of scope, spec
// Non-goals) and from a fixed-point uint32 blend to the spec's exact
// floating-point formula.
func Flatten(layers []*LayerRecord, header *FileHeader, filter func(index int, layer *LayerRecord) bool, strict bool) ([]byte, error) {
	docRect := documentRect(header)
	width := int(docRect.Width())
	height := int(docRect.Height())
	dst := make([]byte, width*height*4)

	srcBuf := make([]byte, width*height*4)

	for i := len(layers) - 1; i >= 0; i-- {
		lr := layers[i]
		if lr.IsGroupDivider() {
			continue
		}
		if !lr.Visible() {
			continue
		}
		if filter != nil && !filter(i, lr) {
			continue
		}
		if strict && !lr.IsNormalBlendMode() {
			return nil, newErr(UnsupportedBlendMode, 0, lr.BlendModeName())
		}

		for j := range srcBuf {
			srcBuf[j] = 0
		}
		if err := lr.assembleInto(srcBuf, docRect); err != nil {
			return nil, err
		}

		blendSourceOver(dst, srcBuf, lr.Opacity)
	}

	return dst, nil
}

func documentRect(header *FileHeader) Rect {
	return Rect{Top: 0, Left: 0, Bottom: int32(header.Height), Right: int32(header.Width)}
}

// blendSourceOver composites src over dst in place using the exact
// Porter-Duff source-over formula, scaling src's own alpha by the
// layer's overall opacity (spec §4.8):
//
//	outA = srcA + dstA*(1 - srcA)
//	outC = (srcC*srcA + dstC*dstA*(1 - srcA)) / outA   (outA > 0, else 0)
func blendSourceOver(dst, src []byte, opacity uint8) {
	opacityF := float64(opacity) / 255.0

	for idx := 0; idx+3 < len(dst); idx += 4 {
		sa := float64(src[idx+3]) / 255.0 * opacityF
		if sa == 0 {
			continue
		}

		sr := float64(src[idx+0]) / 255.0
		sg := float64(src[idx+1]) / 255.0
		sb := float64(src[idx+2]) / 255.0

		da := float64(dst[idx+3]) / 255.0
		dr := float64(dst[idx+0]) / 255.0
		dg := float64(dst[idx+1]) / 255.0
		db := float64(dst[idx+2]) / 255.0

		outA := sa + da*(1-sa)
		if outA <= 0 {
			dst[idx+0], dst[idx+1], dst[idx+2], dst[idx+3] = 0, 0, 0, 0
			continue
		}

		outR := (sr*sa + dr*da*(1-sa)) / outA
		outG := (sg*sa + dg*da*(1-sa)) / outA
		outB := (sb*sa + db*da*(1-sa)) / outA

		dst[idx+0] = floatToByte(outR)
		dst[idx+1] = floatToByte(outG)
		dst[idx+2] = floatToByte(outB)
		dst[idx+3] = floatToByte(outA)
	}
}

func floatToByte(f float64) uint8 {
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(f*255 + 0.5)
}
