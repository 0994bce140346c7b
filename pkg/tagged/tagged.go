// Package tagged carries the 4-byte routing metadata windowing attaches to
// each DNA window, and the 36-byte wire unit (tag + hash) the HDB consumes.
package tagged

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dnascreen/doprf/pkg/ristretto"
)

// ErrWrongSize is returned when a byte slice is not exactly SIZE bytes.
var ErrWrongSize = errors.New("tagged: wrong size for a TaggedHash record")

// CONTENT_TYPE is the HTTP content-type advertised for the screening wire
// format: a concatenation of TaggedHash records.
const CONTENT_TYPE = "application/vnd.doprf.taggedhash-stream"

// firstWindowFlag is bit 7 of byte 0.
const firstWindowFlag = 1 << 7

// offsetMask keeps the low 7 bits of byte 0 for the record-local offset.
const offsetMask = 0x7f

// HashTag packs whether a window is the first in its record, the window's
// offset within the record, and the record's own index, into 4 bytes.
type HashTag struct {
	isFirstWindow bool
	offset        uint8
	record        uint32
}

// New builds a HashTag. offset is truncated to 7 bits (0..127); windowing
// never produces an in-record offset larger than that. record is truncated
// to 24 bits, the width the wire form carries.
func New(isFirstWindow bool, offset uint8, record uint32) HashTag {
	return HashTag{
		isFirstWindow: isFirstWindow,
		offset:        offset & offsetMask,
		record:        record & 0xffffff,
	}
}

// IsFirstWindow reports whether this tag marks the first window of its record.
func (t HashTag) IsFirstWindow() bool {
	return t.isFirstWindow
}

// Offset returns the window's record-local offset.
func (t HashTag) Offset() uint8 {
	return t.offset
}

// Record returns the tag's record index.
func (t HashTag) Record() uint32 {
	return t.record
}

// AsBytes packs the tag into its canonical 4-byte wire form: byte 0 bit 7 is
// the first-window flag, byte 0 bits 0-6 are the offset, bytes 1-3 are the
// low 24 bits of the record index, big-endian.
func (t HashTag) AsBytes() [4]byte {
	var out [4]byte
	out[0] = t.offset & offsetMask
	if t.isFirstWindow {
		out[0] |= firstWindowFlag
	}
	var recordBytes [4]byte
	binary.BigEndian.PutUint32(recordBytes[:], t.record)
	// Only the low 3 bytes of the record index are packed alongside the
	// tag byte; this caps record indices at 2^24-1, ample for any single
	// screening request.
	copy(out[1:], recordBytes[1:])
	return out
}

// TagFromBytes unpacks a HashTag from its 4-byte wire form.
func TagFromBytes(b [4]byte) HashTag {
	isFirst := b[0]&firstWindowFlag != 0
	offset := b[0] & offsetMask
	record := binary.BigEndian.Uint32([]byte{0, b[1], b[2], b[3]})
	return HashTag{isFirstWindow: isFirst, offset: offset, record: record}
}

// SIZE is the wire size of a TaggedHash record: a 4-byte HashTag followed
// by a 32-byte compressed Ristretto point.
const SIZE = 36

// TaggedHash is the unit the client emits and the HDB consumes: a window's
// completed DOPRF hash, carrying its HashTag.
type TaggedHash struct {
	Tag  HashTag
	Hash ristretto.Point
}

// AsBytes packs the record into its 36-byte wire form.
func (h TaggedHash) AsBytes() [SIZE]byte {
	var out [SIZE]byte
	tagBytes := h.Tag.AsBytes()
	copy(out[:4], tagBytes[:])
	hashBytes := h.Hash.Encode()
	copy(out[4:], hashBytes[:])
	return out
}

// FromBytes unpacks a TaggedHash from its 36-byte wire form.
func FromBytes(b []byte) (TaggedHash, error) {
	if len(b) != SIZE {
		return TaggedHash{}, ErrWrongSize
	}
	var tagBytes [4]byte
	copy(tagBytes[:], b[:4])
	point, err := ristretto.DecodePoint(b[4:])
	if err != nil {
		return TaggedHash{}, fmt.Errorf("tagged: %w", err)
	}
	return TaggedHash{Tag: TagFromBytes(tagBytes), Hash: point}, nil
}

// DecodeStream splits a concatenation of TaggedHash records (the HDB
// screening wire format) into individual records.
func DecodeStream(b []byte) ([]TaggedHash, error) {
	if len(b)%SIZE != 0 {
		return nil, fmt.Errorf("tagged: stream length %d is not a multiple of %d", len(b), SIZE)
	}
	out := make([]TaggedHash, 0, len(b)/SIZE)
	for offset := 0; offset < len(b); offset += SIZE {
		th, err := FromBytes(b[offset : offset+SIZE])
		if err != nil {
			return nil, err
		}
		out = append(out, th)
	}
	return out, nil
}

// EncodeStream concatenates a list of TaggedHash records into the HDB
// screening wire format.
func EncodeStream(hashes []TaggedHash) []byte {
	out := make([]byte, 0, len(hashes)*SIZE)
	for _, h := range hashes {
		b := h.AsBytes()
		out = append(out, b[:]...)
	}
	return out
}
