package cogrange

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestDecodeHeader(t *testing.T) {
	testCases := []struct {
		name       string
		bytes      []byte
		wantErr    error
		wantBig    bool
		wantOrder  binary.ByteOrder
		wantOffset uint64
	}{
		{
			name:       "classic little endian",
			bytes:      []byte{'I', 'I', 42, 0, 8, 0, 0, 0},
			wantOrder:  binary.LittleEndian,
			wantOffset: 8,
		},
		{
			name:       "classic big endian",
			bytes:      []byte{'M', 'M', 0, 42, 0, 0, 1, 0},
			wantOrder:  binary.BigEndian,
			wantOffset: 256,
		},
		{
			name:       "bigtiff little endian",
			bytes:      []byte{'I', 'I', 43, 0, 8, 0, 0, 0, 16, 0, 0, 0, 0, 0, 0, 0},
			wantOrder:  binary.LittleEndian,
			wantBig:    true,
			wantOffset: 16,
		},
		{
			name:    "invalid byte order marker",
			bytes:   []byte{'X', 'X', 42, 0, 8, 0, 0, 0},
			wantErr: ErrMalformedHeader,
		},
		{
			name:    "invalid version",
			bytes:   []byte{'I', 'I', 41, 0, 8, 0, 0, 0},
			wantErr: ErrMalformedHeader,
		},
		{
			name:    "zero first ifd offset",
			bytes:   []byte{'I', 'I', 42, 0, 0, 0, 0, 0},
			wantErr: ErrMalformedHeader,
		},
		{
			name:    "bigtiff bad bytesize",
			bytes:   []byte{'I', 'I', 43, 0, 4, 0, 0, 0, 16, 0, 0, 0, 0, 0, 0, 0},
			wantErr: ErrMalformedHeader,
		},
		{
			name:    "bigtiff truncated",
			bytes:   []byte{'I', 'I', 43, 0, 8, 0, 0, 0},
			wantErr: ErrMalformedHeader,
		},
		{
			name:    "short buffer",
			bytes:   []byte{'I', 'I', 42},
			wantErr: ErrMalformedHeader,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := decodeHeader(tc.bytes)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("decodeHeader() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeHeader() returned an unexpected error: %v", err)
			}
			if h.ByteOrder != tc.wantOrder {
				t.Errorf("ByteOrder = %v, want %v", h.ByteOrder, tc.wantOrder)
			}
			if h.BigTIFF != tc.wantBig {
				t.Errorf("BigTIFF = %v, want %v", h.BigTIFF, tc.wantBig)
			}
			if h.FirstIFDOffset != tc.wantOffset {
				t.Errorf("FirstIFDOffset = %d, want %d", h.FirstIFDOffset, tc.wantOffset)
			}
		})
	}
}

// classicIFD builds a little-endian classic IFD with two inline LONG tags
// and one indirect LONG array.
func classicIFD(t *testing.T) []byte {
	t.Helper()
	b := make([]byte, 2+3*12+4)
	binary.LittleEndian.PutUint16(b[0:], 3)
	p := 2
	p = writeIFDEntry(b, p, uint16(ImageWidth), 4, 1, 1024)
	p = writeIFDEntry(b, p, uint16(ImageHeight), 4, 1, 512)
	p = writeIFDEntry(b, p, uint16(TileOffsets), 4, 16, 4096) // 64 bytes, indirect
	binary.LittleEndian.PutUint32(b[p:], 0)
	return b
}

func TestDecodeIFDClassic(t *testing.T) {
	b := classicIFD(t)
	h := Header{ByteOrder: binary.LittleEndian, FirstIFDOffset: 8}

	ifd, consumed, err := decodeIFD(b, h)
	if err != nil {
		t.Fatalf("decodeIFD() returned an unexpected error: %v", err)
	}
	if consumed != uint64(len(b)) {
		t.Errorf("consumed = %d, want %d", consumed, len(b))
	}
	if ifd.TagCount != 3 {
		t.Fatalf("TagCount = %d, want 3", ifd.TagCount)
	}
	if ifd.NextOffset != 0 {
		t.Errorf("NextOffset = %d, want 0", ifd.NextOffset)
	}

	width, ok := ifd.Tags[ImageWidth]
	if !ok {
		t.Fatal("ImageWidth tag missing")
	}
	if !width.inline() {
		t.Error("ImageWidth should be stored inline")
	}
	vals, err := decodeUints(width.Value, width, h.ByteOrder)
	if err != nil {
		t.Fatalf("decodeUints() returned an unexpected error: %v", err)
	}
	if len(vals) != 1 || vals[0] != 1024 {
		t.Errorf("ImageWidth = %v, want [1024]", vals)
	}

	offsets, ok := ifd.Tags[TileOffsets]
	if !ok {
		t.Fatal("TileOffsets tag missing")
	}
	if offsets.inline() {
		t.Error("a 64 byte TileOffsets value should be indirect")
	}
	if offsets.Offset != 4096 {
		t.Errorf("TileOffsets offset = %d, want 4096", offsets.Offset)
	}
	if offsets.size() != 64 {
		t.Errorf("TileOffsets size = %d, want 64", offsets.size())
	}
}

func TestDecodeIFDBigTIFF(t *testing.T) {
	le := binary.LittleEndian
	b := make([]byte, 8+2*20+8)
	le.PutUint64(b[0:], 2)
	p := 8
	// ImageWidth: LONG8, count 1, inline.
	le.PutUint16(b[p:], uint16(ImageWidth))
	le.PutUint16(b[p+2:], 16)
	le.PutUint64(b[p+4:], 1)
	le.PutUint64(b[p+12:], 4096)
	p += 20
	// TileOffsets: LONG8, count 4, indirect.
	le.PutUint16(b[p:], uint16(TileOffsets))
	le.PutUint16(b[p+2:], 16)
	le.PutUint64(b[p+4:], 4)
	le.PutUint64(b[p+12:], 1<<33)
	p += 20
	le.PutUint64(b[p:], 1<<32) // next IFD beyond 4GiB

	h := Header{ByteOrder: le, BigTIFF: true, FirstIFDOffset: 16}
	ifd, _, err := decodeIFD(b, h)
	if err != nil {
		t.Fatalf("decodeIFD() returned an unexpected error: %v", err)
	}
	if ifd.NextOffset != 1<<32 {
		t.Errorf("NextOffset = %d, want %d", ifd.NextOffset, uint64(1)<<32)
	}

	width := ifd.Tags[ImageWidth]
	vals, err := decodeUints(width.Value, width, le)
	if err != nil {
		t.Fatalf("decodeUints() returned an unexpected error: %v", err)
	}
	if len(vals) != 1 || vals[0] != 4096 {
		t.Errorf("ImageWidth = %v, want [4096]", vals)
	}

	offsets := ifd.Tags[TileOffsets]
	if offsets.inline() {
		t.Error("a 32 byte TileOffsets value should be indirect")
	}
	if offsets.Offset != 1<<33 {
		t.Errorf("TileOffsets offset = %d, want %d", offsets.Offset, uint64(1)<<33)
	}
}

func TestDecodeIFDTruncated(t *testing.T) {
	b := classicIFD(t)
	h := Header{ByteOrder: binary.LittleEndian, FirstIFDOffset: 8}

	// Every prefix shorter than the full structure must fail, never return
	// a partially populated IFD.
	for cut := 0; cut < len(b); cut++ {
		ifd, _, err := decodeIFD(b[:cut], h)
		if !errors.Is(err, ErrTruncatedIFD) {
			t.Fatalf("decodeIFD(%d bytes) error = %v, want ErrTruncatedIFD", cut, err)
		}
		if ifd != nil {
			t.Fatalf("decodeIFD(%d bytes) returned a partial IFD", cut)
		}
	}
}

func TestDecodeIFDUnsupportedType(t *testing.T) {
	b := classicIFD(t)
	// Corrupt the first entry's field type.
	binary.LittleEndian.PutUint16(b[4:], 99)

	h := Header{ByteOrder: binary.LittleEndian, FirstIFDOffset: 8}
	if _, _, err := decodeIFD(b, h); !errors.Is(err, ErrUnsupportedTagType) {
		t.Fatalf("decodeIFD() error = %v, want ErrUnsupportedTagType", err)
	}
}

func TestDecodeIFDDuplicateTag(t *testing.T) {
	b := classicIFD(t)
	// Rewrite the second entry's tag id to collide with the first.
	binary.LittleEndian.PutUint16(b[2+12:], uint16(ImageWidth))

	h := Header{ByteOrder: binary.LittleEndian, FirstIFDOffset: 8}
	if _, _, err := decodeIFD(b, h); !errors.Is(err, ErrCorruptIFDChain) {
		t.Fatalf("decodeIFD() error = %v, want ErrCorruptIFDChain", err)
	}
}

func TestDecodeUintsWrongType(t *testing.T) {
	e := TagEntry{ID: ImageWidth, Type: TagType{ID: 12, Size: 8}, Count: 1, Value: make([]byte, 8)}
	if _, err := decodeUints(e.Value, e, binary.LittleEndian); !errors.Is(err, ErrUnsupportedTagType) {
		t.Fatalf("decodeUints(DOUBLE) error = %v, want ErrUnsupportedTagType", err)
	}
}
