// Package index implements the triplet index read side (C2): a disk-backed,
// per-point-type-triple sorted table of triplet records, opened through a
// memory-mapped file, supporting range scans under a per-distance tolerance.
package index

import (
	"encoding/binary"

	"github.com/dkoes-labs/pharmsearch/pkg/errors"
)

// Magic is the fixed 6-byte header prefix every index file must carry.
var Magic = [6]byte{'P', 'H', 'I', 'D', 'X', 0}

// CurrentVersion is the only record layout this reader understands.
const CurrentVersion uint16 = 1

// headerSize is the fixed byte length of the file header: magic(6) +
// version(2) + recordSize(2) + recordCount(8).
const headerSize = 6 + 2 + 2 + 8

// recordSize is the fixed byte length of one on-disk record:
// d12,d13,d23 (u16 x3 = 6) + mol_loc (u64 = 8) + p_idx (u8 x3 = 3) +
// reduced_xyz (i16 x3x3 = 18) + flags (u16 = 2).
const recordSize = 6 + 8 + 3 + 18 + 2

// reservedFlagsMask covers every flag bit this reader does not understand.
// Record bit 0 is the only flag currently assigned (reserved for future use
// as a tombstone marker); any other set bit means the reader must abort.
const reservedFlagsMask uint16 = 0xFFFE

// Header is the parsed fixed-width file header.
type Header struct {
	Version     uint16
	RecordSize  uint16
	RecordCount uint64
}

// parseHeader reads and validates the header at the start of buf.
func parseHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, errors.InvalidIndex("index file shorter than header size")
	}
	var magic [6]byte
	copy(magic[:], buf[0:6])
	if magic != Magic {
		return Header{}, errors.InvalidIndex("bad magic in index file")
	}
	h := Header{
		Version:     binary.LittleEndian.Uint16(buf[6:8]),
		RecordSize:  binary.LittleEndian.Uint16(buf[8:10]),
		RecordCount: binary.LittleEndian.Uint64(buf[10:18]),
	}
	if h.Version != CurrentVersion {
		return Header{}, errors.InvalidIndex("unsupported index version").
			WithDetail("version read from file header")
	}
	if h.RecordSize != recordSize {
		return Header{}, errors.InvalidIndex("unexpected record size in index header")
	}
	return h, nil
}

// Record is one decoded on-disk triplet record.
type Record struct {
	D12, D13, D23 uint16
	MolLoc        uint64
	PIdx          [3]uint8
	ReducedXYZ    [3][3]int16
	Flags         uint16
}

// decodeRecord parses one fixed-width record from buf, which must be exactly
// recordSize bytes. A record whose flags carry a reserved bit is reported as
// InvalidIndex, not CorruptRecord: a reserved bit means the reader doesn't
// understand this record layout at all, so the caller must abort the whole
// table rather than skip-and-continue.
func decodeRecord(buf []byte) (Record, error) {
	if len(buf) != recordSize {
		return Record{}, errors.CorruptRecord("record buffer has wrong length")
	}
	var r Record
	r.D12 = binary.LittleEndian.Uint16(buf[0:2])
	r.D13 = binary.LittleEndian.Uint16(buf[2:4])
	r.D23 = binary.LittleEndian.Uint16(buf[4:6])
	r.MolLoc = binary.LittleEndian.Uint64(buf[6:14])
	r.PIdx[0], r.PIdx[1], r.PIdx[2] = buf[14], buf[15], buf[16]
	off := 17
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r.ReducedXYZ[i][j] = int16(binary.LittleEndian.Uint16(buf[off : off+2]))
			off += 2
		}
	}
	r.Flags = binary.LittleEndian.Uint16(buf[off : off+2])

	if r.Flags&reservedFlagsMask != 0 {
		return Record{}, errors.InvalidIndex("unsupported index version: record carries a reserved flag bit")
	}
	// d12,d13,d23 must respect the (d_smallest, d_middle, d_largest) ordering
	// the table's sort relies on.
	if !(r.D12 <= r.D13 && r.D13 <= r.D23) {
		return Record{}, errors.CorruptRecord("record distances are out of canonical order")
	}
	return r, nil
}
