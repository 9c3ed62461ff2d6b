package cogrange

import "fmt"

// Tag identifies a TIFF tag, the key of an IFD entry.
type Tag uint16

// Tags consumed by the tile resolution engine. JPEGTables is optional and
// only materialized on demand for callers decoding JPEG tiles.
const (
	ImageWidth     Tag = 256
	ImageHeight    Tag = 257
	TileWidth      Tag = 322
	TileHeight     Tag = 323
	TileOffsets    Tag = 324
	TileByteCounts Tag = 325
	JPEGTables     Tag = 347
)

var tagToLabel = map[Tag]string{
	ImageWidth:     "ImageWidth",
	ImageHeight:    "ImageHeight",
	TileWidth:      "TileWidth",
	TileHeight:     "TileHeight",
	TileOffsets:    "TileOffsets",
	TileByteCounts: "TileByteCounts",
	JPEGTables:     "JPEGTables",
}

func (t Tag) String() string {
	v, ok := tagToLabel[t]
	if !ok {
		return fmt.Sprintf("%d", uint16(t))
	}
	return v
}

// fieldType is the wire type of a tag value.
type fieldType uint16

const (
	typeByte      fieldType = 1
	typeASCII     fieldType = 2
	typeShort     fieldType = 3
	typeLong      fieldType = 4
	typeRational  fieldType = 5
	typeUndefined fieldType = 7
	typeDouble    fieldType = 12
	typeLong8     fieldType = 16
)

var fieldTypeToLabel = map[fieldType]string{
	typeByte:      "BYTE",
	typeASCII:     "ASCII",
	typeShort:     "SHORT",
	typeLong:      "LONG",
	typeRational:  "RATIONAL",
	typeUndefined: "UNDEFINED",
	typeDouble:    "DOUBLE",
	typeLong8:     "LONG8",
}

func (f fieldType) String() string {
	v, ok := fieldTypeToLabel[f]
	if !ok {
		return fmt.Sprintf("unrecognized field type %d", uint16(f))
	}
	return v
}

// TagType describes how one value of a field type is laid out on the wire.
type TagType struct {
	ID   uint16 // wire encoding of the type
	Size uint64 // width of a single value in bytes
}

// RATIONAL is carried as a single 4-byte numeric rather than a
// numerator/denominator pair: only integer-like tags (offsets, dimensions,
// byte counts) are ever consumed by this engine.
var tagTypes = map[fieldType]TagType{
	typeByte:      {ID: 1, Size: 1},
	typeASCII:     {ID: 2, Size: 1},
	typeShort:     {ID: 3, Size: 2},
	typeLong:      {ID: 4, Size: 4},
	typeRational:  {ID: 5, Size: 4},
	typeUndefined: {ID: 7, Size: 1},
	typeDouble:    {ID: 12, Size: 8},
	typeLong8:     {ID: 16, Size: 8},
}

// TagTypeFor returns the wire descriptor for a field type id. Unknown ids are
// a decode error, never a silent default.
func TagTypeFor(id uint16) (TagType, error) {
	tt, ok := tagTypes[fieldType(id)]
	if !ok {
		return TagType{}, fmt.Errorf("field type %d: %w", id, ErrUnsupportedTagType)
	}
	return tt, nil
}
