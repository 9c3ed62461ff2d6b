package cogrange

import (
	"encoding/binary"
	"fmt"
)

const (
	littleEndian uint16 = 0x4949 // "II"
	bigEndian    uint16 = 0x4d4d // "MM"

	tiffIdentifier    uint16 = 42
	bigTiffIdentifier uint16 = 43
	bigTiffBytesize   uint16 = 8

	classicHeaderSize = 8
	bigTiffHeaderSize = 16
)

// Header is the decoded TIFF file header: byte order, classic-vs-BigTIFF
// width, and the offset of the first IFD.
type Header struct {
	ByteOrder      binary.ByteOrder
	BigTIFF        bool
	FirstIFDOffset uint64
}

// offsetSize is the width of offsets and the inline value slot:
// 4 bytes for classic TIFF, 8 for BigTIFF.
func (h Header) offsetSize() uint64 {
	if h.BigTIFF {
		return 8
	}
	return 4
}

// entrySize is the fixed wire size of one IFD entry.
func (h Header) entrySize() uint64 {
	if h.BigTIFF {
		return 20
	}
	return 12
}

// TagEntry is a single IFD entry. When the value fits the inline slot it is
// stored in Value; otherwise Value is nil and Offset is the absolute file
// offset of the value, materialized only when a consumer asks for it.
type TagEntry struct {
	ID     Tag
	Type   TagType
	Count  uint64
	Value  []byte
	Offset uint64
}

// size is the total wire size of the entry's value in bytes.
func (e TagEntry) size() uint64 { return e.Count * e.Type.Size }

// inline reports whether the value was stored in the entry itself.
func (e TagEntry) inline() bool { return e.Value != nil }

// IFD is one Image File Directory, describing a single overview level.
type IFD struct {
	TagCount   uint64
	Tags       map[Tag]TagEntry
	NextOffset uint64
}

// decodeHeader decodes the TIFF file header from the start of b. BigTIFF
// headers are 16 bytes (bytesize and reserved fields are validated); classic
// headers are 8.
func decodeHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < classicHeaderSize {
		return h, fmt.Errorf("%w: %d header bytes", ErrMalformedHeader, len(b))
	}

	switch binary.BigEndian.Uint16(b[0:2]) {
	case littleEndian:
		h.ByteOrder = binary.LittleEndian
	case bigEndian:
		h.ByteOrder = binary.BigEndian
	default:
		return h, fmt.Errorf("%w: invalid byte order marker %q", ErrMalformedHeader, b[0:2])
	}

	switch identifier := h.ByteOrder.Uint16(b[2:4]); identifier {
	case tiffIdentifier:
		h.FirstIFDOffset = uint64(h.ByteOrder.Uint32(b[4:8]))
	case bigTiffIdentifier:
		h.BigTIFF = true
		if len(b) < bigTiffHeaderSize {
			return h, fmt.Errorf("%w: %d header bytes for bigtiff", ErrMalformedHeader, len(b))
		}
		if bytesize := h.ByteOrder.Uint16(b[4:6]); bytesize != bigTiffBytesize {
			return h, fmt.Errorf("%w: invalid bigtiff bytesize %d", ErrMalformedHeader, bytesize)
		}
		if reserved := h.ByteOrder.Uint16(b[6:8]); reserved != 0 {
			return h, fmt.Errorf("%w: invalid bigtiff reserved field %d", ErrMalformedHeader, reserved)
		}
		h.FirstIFDOffset = h.ByteOrder.Uint64(b[8:16])
	default:
		return h, fmt.Errorf("%w: invalid tiff identifier %d", ErrMalformedHeader, identifier)
	}

	if h.FirstIFDOffset == 0 {
		return h, fmt.Errorf("%w: file contains no IFDs", ErrMalformedHeader)
	}
	return h, nil
}

// decodeIFD decodes one IFD from the start of b and returns it together with
// the number of bytes it occupies. Values larger than the inline slot are
// recorded as indirect offsets, never dereferenced here.
func decodeIFD(b []byte, h Header) (*IFD, uint64, error) {
	bo := h.ByteOrder

	var pos, count uint64
	if h.BigTIFF {
		if len(b) < 8 {
			return nil, 0, fmt.Errorf("%w: %d bytes for entry count", ErrTruncatedIFD, len(b))
		}
		count = bo.Uint64(b[0:8])
		pos = 8
	} else {
		if len(b) < 2 {
			return nil, 0, fmt.Errorf("%w: %d bytes for entry count", ErrTruncatedIFD, len(b))
		}
		count = uint64(bo.Uint16(b[0:2]))
		pos = 2
	}

	// Bound count before the multiplication below can overflow.
	if count > uint64(len(b))/h.entrySize() {
		return nil, 0, fmt.Errorf("%w: %d entries cannot fit %d bytes", ErrTruncatedIFD, count, len(b))
	}
	need := pos + count*h.entrySize() + h.offsetSize()
	if uint64(len(b)) < need {
		return nil, 0, fmt.Errorf("%w: ifd needs %d bytes, have %d", ErrTruncatedIFD, need, len(b))
	}

	ifd := &IFD{
		TagCount: count,
		Tags:     make(map[Tag]TagEntry, count),
	}

	for i := uint64(0); i < count; i++ {
		eb := b[pos : pos+h.entrySize()]
		pos += h.entrySize()

		id := Tag(bo.Uint16(eb[0:2]))
		tt, err := TagTypeFor(bo.Uint16(eb[2:4]))
		if err != nil {
			return nil, 0, fmt.Errorf("tag %s: %w", id, err)
		}

		entry := TagEntry{ID: id, Type: tt}
		var slot []byte
		if h.BigTIFF {
			entry.Count = bo.Uint64(eb[4:12])
			slot = eb[12:20]
		} else {
			entry.Count = uint64(bo.Uint32(eb[4:8]))
			slot = eb[8:12]
		}

		if size := entry.size(); size <= uint64(len(slot)) {
			entry.Value = append([]byte(nil), slot[:size]...)
		} else if h.BigTIFF {
			entry.Offset = bo.Uint64(slot)
		} else {
			entry.Offset = uint64(bo.Uint32(slot))
		}

		if _, dup := ifd.Tags[id]; dup {
			return nil, 0, fmt.Errorf("%w: duplicate tag %s", ErrCorruptIFDChain, id)
		}
		ifd.Tags[id] = entry
	}

	if h.BigTIFF {
		ifd.NextOffset = bo.Uint64(b[pos : pos+8])
	} else {
		ifd.NextOffset = uint64(bo.Uint32(b[pos : pos+4]))
	}
	pos += h.offsetSize()

	return ifd, pos, nil
}

// decodeUints interprets a tag's raw value bytes as unsigned integers.
func decodeUints(raw []byte, e TagEntry, bo binary.ByteOrder) ([]uint64, error) {
	if e.Count > uint64(len(raw)) || uint64(len(raw)) < e.size() {
		return nil, fmt.Errorf("%w: tag %s value needs %d bytes, have %d",
			ErrTruncatedIFD, e.ID, e.size(), len(raw))
	}
	vals := make([]uint64, e.Count)
	switch fieldType(e.Type.ID) {
	case typeByte:
		for i := range vals {
			vals[i] = uint64(raw[i])
		}
	case typeShort:
		for i := range vals {
			vals[i] = uint64(bo.Uint16(raw[i*2:]))
		}
	case typeLong:
		for i := range vals {
			vals[i] = uint64(bo.Uint32(raw[i*4:]))
		}
	case typeLong8:
		for i := range vals {
			vals[i] = bo.Uint64(raw[i*8:])
		}
	default:
		return nil, fmt.Errorf("tag %s: %s is not integer-valued: %w",
			e.ID, fieldType(e.Type.ID), ErrUnsupportedTagType)
	}
	return vals, nil
}
