package psd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// descriptorParser walks a version-7/8 "descriptor" structure, the
// self-describing key/value format Photoshop uses for slices (0x041A,
// spec §4.4) and several other modern image resources. Trimmed to the
// item kinds a slices descriptor actually contains (a nested object, a
// list, booleans, integers, doubles, enums, and Unicode strings);
// reference/unit/alias/raw-data/object-array items never appear there
// and are rejected rather than carried as unreachable dead code.
//
// Grounded on the teacher's descriptor.go DescriptorParser, which
// implements the full Adobe descriptor grammar; this reader narrows
// that grammar to ParseSlices' needs (resource.go).
type descriptorParser struct {
	reader *bytes.Reader
}

// newDescriptorParser builds a parser over a descriptor's raw bytes
// (the body following its 4-byte version field).
func newDescriptorParser(data []byte) *descriptorParser {
	return &descriptorParser{reader: bytes.NewReader(data)}
}

// Parse reads one descriptor: its class header followed by a
// count-prefixed sequence of key/value items.
func (d *descriptorParser) Parse() (map[string]interface{}, error) {
	result := make(map[string]interface{})

	class, err := d.parseClass()
	if err != nil {
		return nil, fmt.Errorf("descriptor class: %w", err)
	}
	result["class"] = class

	var numItems uint32
	if err := binary.Read(d.reader, binary.BigEndian, &numItems); err != nil {
		return nil, fmt.Errorf("descriptor item count: %w", err)
	}

	for i := uint32(0); i < numItems; i++ {
		key, value, err := d.parseKeyItem()
		if err != nil {
			return nil, fmt.Errorf("descriptor item %d: %w", i, err)
		}
		result[key] = value
	}

	return result, nil
}

// parseClass reads a class header: a Unicode display name followed by
// a 4-byte type ID (or a longer variable-length ID when the length
// prefix is nonzero).
func (d *descriptorParser) parseClass() (map[string]interface{}, error) {
	name, err := d.readUnicodeString()
	if err != nil {
		return nil, fmt.Errorf("class name: %w", err)
	}

	id, err := d.parseID()
	if err != nil {
		return nil, fmt.Errorf("class id: %w", err)
	}

	return map[string]interface{}{"name": name, "id": id}, nil
}

// parseID reads a length-prefixed key/type ID: a 4-byte code when the
// length is zero, otherwise that many raw bytes.
func (d *descriptorParser) parseID() (string, error) {
	var length uint32
	if err := binary.Read(d.reader, binary.BigEndian, &length); err != nil {
		return "", err
	}
	if length == 0 {
		length = 4
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(d.reader, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (d *descriptorParser) parseKeyItem() (string, interface{}, error) {
	key, err := d.parseID()
	if err != nil {
		return "", nil, fmt.Errorf("key id: %w", err)
	}
	value, err := d.parseItem("")
	if err != nil {
		return "", nil, fmt.Errorf("value for key %s: %w", key, err)
	}
	return key, value, nil
}

// parseItem reads one typed value. itemType may be pre-supplied by a
// caller that already consumed the 4-byte type tag (none currently
// do); otherwise it is read here.
func (d *descriptorParser) parseItem(itemType string) (interface{}, error) {
	if itemType == "" {
		typeBytes := make([]byte, 4)
		if _, err := io.ReadFull(d.reader, typeBytes); err != nil {
			return nil, err
		}
		itemType = string(typeBytes)
	}

	switch itemType {
	case "bool":
		return d.parseBoolean()
	case "type", "GlbC":
		return d.parseClass()
	case "Objc", "GlbO":
		return d.Parse()
	case "doub":
		return d.parseDouble()
	case "enum":
		return d.parseEnum()
	case "long":
		return d.parseInt()
	case "comp":
		return d.parseLargeInt()
	case "VlLs":
		return d.parseList()
	case "TEXT":
		return d.readUnicodeString()
	default:
		return nil, fmt.Errorf("descriptor item type %q not supported in a slices descriptor", itemType)
	}
}

func (d *descriptorParser) parseBoolean() (bool, error) {
	var value byte
	if err := binary.Read(d.reader, binary.BigEndian, &value); err != nil {
		return false, err
	}
	return value != 0, nil
}

func (d *descriptorParser) parseDouble() (float64, error) {
	var value float64
	if err := binary.Read(d.reader, binary.BigEndian, &value); err != nil {
		return 0, err
	}
	return value, nil
}

func (d *descriptorParser) parseInt() (int32, error) {
	var value int32
	if err := binary.Read(d.reader, binary.BigEndian, &value); err != nil {
		return 0, err
	}
	return value, nil
}

func (d *descriptorParser) parseLargeInt() (int64, error) {
	var value int64
	if err := binary.Read(d.reader, binary.BigEndian, &value); err != nil {
		return 0, err
	}
	return value, nil
}

// parseEnum reads an enumerated value as its (type, value) id pair.
func (d *descriptorParser) parseEnum() (map[string]interface{}, error) {
	typeID, err := d.parseID()
	if err != nil {
		return nil, fmt.Errorf("enum type: %w", err)
	}
	valueID, err := d.parseID()
	if err != nil {
		return nil, fmt.Errorf("enum value: %w", err)
	}
	return map[string]interface{}{"type": typeID, "value": valueID}, nil
}

// parseList reads a count-prefixed list of untyped items (spec §4.4's
// "slices" array is carried this way).
func (d *descriptorParser) parseList() ([]interface{}, error) {
	var count uint32
	if err := binary.Read(d.reader, binary.BigEndian, &count); err != nil {
		return nil, err
	}

	items := make([]interface{}, count)
	for i := uint32(0); i < count; i++ {
		value, err := d.parseItem("")
		if err != nil {
			return nil, fmt.Errorf("list item %d: %w", i, err)
		}
		items[i] = value
	}
	return items, nil
}

// readUnicodeString reads a u32-length-prefixed (in UTF-16 code units)
// big-endian Unicode string, the same wire format cursor.go's
// ReadUnicodeString decodes for layer names; routed through the same
// golang.org/x/text decoder so the two readers never disagree on
// malformed/overlong sequences.
func (d *descriptorParser) readUnicodeString() (string, error) {
	var units uint32
	if err := binary.Read(d.reader, binary.BigEndian, &units); err != nil {
		return "", err
	}
	if units == 0 {
		return "", nil
	}

	raw := make([]byte, units*2)
	if _, err := io.ReadFull(d.reader, raw); err != nil {
		return "", err
	}

	decoded, err := utf16BEDecoder.Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decoding UTF-16BE: %w", err)
	}
	return string(decoded), nil
}
