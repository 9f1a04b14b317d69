package psd

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// descField writes one key/type/value item of a descriptor body. key
// is written through descID; writeItem appends the type tag and
// payload.
func descField(buf *bytes.Buffer, key string, writeItem func(*bytes.Buffer)) {
	descID(buf, key)
	writeItem(buf)
}

// descID writes a descriptor ID per parseID's contract: a zero length
// prefix followed by a 4-byte code, or, for a code of any other
// length, that length followed by the code's bytes.
func descID(buf *bytes.Buffer, code string) {
	if len(code) == 4 {
		binary.Write(buf, binary.BigEndian, uint32(0))
	} else {
		binary.Write(buf, binary.BigEndian, uint32(len(code)))
	}
	buf.WriteString(code)
}

func descUnicode(buf *bytes.Buffer, s string) {
	runes := []rune(s)
	binary.Write(buf, binary.BigEndian, uint32(len(runes)))
	for _, r := range runes {
		binary.Write(buf, binary.BigEndian, uint16(r))
	}
}

// descHeader writes a descriptor's class header (name + id) and the
// item count that follows it.
func descHeader(buf *bytes.Buffer, className string, itemCount uint32) {
	descUnicode(buf, className)
	descID(buf, "Clas")
	binary.Write(buf, binary.BigEndian, itemCount)
}

func TestDescriptorParser_PrimitiveFields(t *testing.T) {
	buf := new(bytes.Buffer)
	descHeader(buf, "Slice", 4)

	descField(buf, "enab", func(b *bytes.Buffer) {
		b.WriteString("bool")
		b.WriteByte(1)
	})
	descField(buf, "groupID", func(b *bytes.Buffer) {
		b.WriteString("long")
		binary.Write(b, binary.BigEndian, int32(7))
	})
	descField(buf, "scale", func(b *bytes.Buffer) {
		b.WriteString("doub")
		binary.Write(b, binary.BigEndian, 1.5)
	})
	descField(buf, "url", func(b *bytes.Buffer) {
		b.WriteString("TEXT")
		descUnicode(b, "https://example.test/slice")
	})

	result, err := newDescriptorParser(buf.Bytes()).Parse()
	require.NoError(t, err)

	assert.Equal(t, true, result["enab"])
	assert.Equal(t, int32(7), result["groupID"])
	assert.InDelta(t, 1.5, result["scale"], 0.0001)
	assert.Equal(t, "https://example.test/slice", result["url"])
}

func TestDescriptorParser_Enum(t *testing.T) {
	buf := new(bytes.Buffer)
	descHeader(buf, "Slice", 1)
	descField(buf, "origin", func(b *bytes.Buffer) {
		b.WriteString("enum")
		descID(b, "Type")
		descID(b, "Bttm")
	})

	result, err := newDescriptorParser(buf.Bytes()).Parse()
	require.NoError(t, err)

	enum := result["origin"].(map[string]interface{})
	assert.Equal(t, "Type", enum["type"])
	assert.Equal(t, "Bttm", enum["value"])
}

// A nested Objc bounds rectangle and a VlLs list of nested Objc slice
// records, as ParseSlices' version-7/8 branch actually receives them
// (spec §4.4): this is the shape that motivated keeping Objc/VlLs/long
// in the trimmed grammar.
func TestDescriptorParser_NestedObjectsAndList(t *testing.T) {
	bounds := new(bytes.Buffer)
	descHeader(bounds, "Rectangle", 4)
	descField(bounds, "Top ", func(b *bytes.Buffer) { b.WriteString("long"); binary.Write(b, binary.BigEndian, int32(0)) })
	descField(bounds, "Left", func(b *bytes.Buffer) { b.WriteString("long"); binary.Write(b, binary.BigEndian, int32(1)) })
	descField(bounds, "Btom", func(b *bytes.Buffer) { b.WriteString("long"); binary.Write(b, binary.BigEndian, int32(9)) })
	descField(bounds, "Rght", func(b *bytes.Buffer) { b.WriteString("long"); binary.Write(b, binary.BigEndian, int32(8)) })

	buf := new(bytes.Buffer)
	descHeader(buf, "Document", 1)
	descField(buf, "slices", func(b *bytes.Buffer) {
		b.WriteString("VlLs")
		binary.Write(b, binary.BigEndian, uint32(1))
		b.WriteString("Objc")
		b.Write(bounds.Bytes())
	})

	result, err := newDescriptorParser(buf.Bytes()).Parse()
	require.NoError(t, err)

	list := result["slices"].([]interface{})
	require.Len(t, list, 1)

	nested := list[0].(map[string]interface{})
	assert.Equal(t, int32(0), nested["Top "])
	assert.Equal(t, int32(1), nested["Left"])
	assert.Equal(t, int32(9), nested["Btom"])
	assert.Equal(t, int32(8), nested["Rght"])
}

// Item kinds ParseSlices never needs (e.g. a reference or unit-double)
// are rejected rather than silently carried by the trimmed grammar.
func TestDescriptorParser_UnsupportedItemType(t *testing.T) {
	buf := new(bytes.Buffer)
	descHeader(buf, "Slice", 1)
	descField(buf, "angle", func(b *bytes.Buffer) {
		b.WriteString("UntF")
		b.WriteString("#Ang")
		binary.Write(b, binary.BigEndian, float64(45))
	})

	_, err := newDescriptorParser(buf.Bytes()).Parse()
	assert.Error(t, err)
}

// End to end: a version-7 slices resource (0x041A) decoded through
// DecodeResourceSection and ParseSlices, exercising the real call path
// resource.go drives the trimmed descriptor grammar through.
func TestResourceSection_ParseSlicesV7(t *testing.T) {
	boundsDesc := new(bytes.Buffer)
	descHeader(boundsDesc, "Rectangle", 4)
	descField(boundsDesc, "Top ", func(b *bytes.Buffer) { b.WriteString("long"); binary.Write(b, binary.BigEndian, int32(0)) })
	descField(boundsDesc, "Left", func(b *bytes.Buffer) { b.WriteString("long"); binary.Write(b, binary.BigEndian, int32(0)) })
	descField(boundsDesc, "Btom", func(b *bytes.Buffer) { b.WriteString("long"); binary.Write(b, binary.BigEndian, int32(4)) })
	descField(boundsDesc, "Rght", func(b *bytes.Buffer) { b.WriteString("long"); binary.Write(b, binary.BigEndian, int32(4)) })

	sliceDesc := new(bytes.Buffer)
	descHeader(sliceDesc, "Slice", 3)
	descField(sliceDesc, "sliceID", func(b *bytes.Buffer) { b.WriteString("long"); binary.Write(b, binary.BigEndian, int32(1)) })
	descField(sliceDesc, "bounds", func(b *bytes.Buffer) { b.WriteString("Objc"); b.Write(boundsDesc.Bytes()) })
	descField(sliceDesc, "url", func(b *bytes.Buffer) { b.WriteString("TEXT"); descUnicode(b, "https://example.test") })

	root := new(bytes.Buffer)
	descHeader(root, "Document", 2)
	descField(root, "baseName", func(b *bytes.Buffer) { b.WriteString("TEXT"); descUnicode(b, "web") })
	descField(root, "slices", func(b *bytes.Buffer) {
		b.WriteString("VlLs")
		binary.Write(b, binary.BigEndian, uint32(1))
		b.WriteString("Objc")
		b.Write(sliceDesc.Bytes())
	})

	resourceData := new(bytes.Buffer)
	binary.Write(resourceData, binary.BigEndian, int32(7)) // slices resource version
	binary.Write(resourceData, binary.BigEndian, uint32(16)) // descriptor version
	resourceData.Write(root.Bytes())

	buf := new(bytes.Buffer)
	buf.WriteString("8BIM")
	binary.Write(buf, binary.BigEndian, uint16(1050))
	buf.WriteByte(0) // empty Pascal name
	buf.WriteByte(0) // pad to even
	binary.Write(buf, binary.BigEndian, uint32(resourceData.Len()))
	buf.Write(resourceData.Bytes())
	if resourceData.Len()%2 != 0 {
		buf.WriteByte(0)
	}

	section, warnings, err := DecodeResourceSection(NewCursor(buf.Bytes(), 0))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	slices, err := section.ParseSlices()
	require.NoError(t, err)
	assert.Equal(t, "web", slices.Name)
	require.Len(t, slices.Slices, 1)
	assert.Equal(t, int32(1), slices.Slices[0].ID)
	assert.Equal(t, "https://example.test", slices.Slices[0].URL)
	assert.Equal(t, Rectangle{Top: 0, Left: 0, Bottom: 4, Right: 4}, slices.Slices[0].Bounds)
}
