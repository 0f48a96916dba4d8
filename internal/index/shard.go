package index

import (
	"os"
	"sort"

	"github.com/blevesearch/mmap-go"

	"github.com/dkoes-labs/pharmsearch/pkg/errors"
)

// Table is one memory-mapped, per-point-type-triple index table. It is
// opened read-only and never copies record bytes on the hot scan path; a
// secondary offset index, built once at open time from the d12 prefix,
// gives binary-search start points for range queries.
type Table struct {
	file   *os.File
	mm     mmap.MMap
	header Header
	// offsets[i] is the ordinal of the first record whose D12 >=
	// d12Values[i]; d12Values is the sorted set of distinct D12 prefixes
	// encountered, used to binary-search a scan start point in O(log n).
	d12Values []uint16
	offsets   []int
}

// OpenTable memory-maps the index file at path. A missing file is returned
// as the os.Open error, so callers can distinguish "absent" (via
// os.IsNotExist) from "present but unreadable"; Index.table treats an absent
// file as "this point-type-triple has zero matches" per §4.1's failure mode.
func OpenTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, errors.IOError("failed to mmap index file").WithCause(err)
	}
	header, err := parseHeader(mm)
	if err != nil {
		mm.Unmap()
		f.Close()
		return nil, err
	}
	t := &Table{file: f, mm: mm, header: header}
	if err := t.buildOffsetIndex(); err != nil {
		mm.Unmap()
		f.Close()
		return nil, err
	}
	return t, nil
}

// Close unmaps the file and releases its descriptor.
func (t *Table) Close() error {
	if err := t.mm.Unmap(); err != nil {
		t.file.Close()
		return errors.IOError("failed to unmap index file").WithCause(err)
	}
	return t.file.Close()
}

func (t *Table) recordAt(i uint64) []byte {
	start := headerSize + int(i)*recordSize
	return t.mm[start : start+recordSize]
}

// buildOffsetIndex scans every record once at open time to build the
// secondary offset index mapping distinct D12 prefixes to their first
// record's ordinal. This trades one linear pass at open time for O(log n)
// scan-start lookups on every subsequent query. A record carrying a reserved
// flag bit aborts the open entirely (InvalidIndex); any other decode failure
// is a corrupt record and is skipped.
func (t *Table) buildOffsetIndex() error {
	n := t.header.RecordCount
	t.d12Values = make([]uint16, 0, n)
	t.offsets = make([]int, 0, n)
	var last uint16
	for i := uint64(0); i < n; i++ {
		rec, err := decodeRecord(t.recordAt(i))
		if err != nil {
			if errors.IsCode(err, errors.CodeInvalidIndex) {
				return err
			}
			continue // corrupt records are skipped when building the offset index too
		}
		if len(t.offsets) == 0 || rec.D12 != last {
			t.d12Values = append(t.d12Values, rec.D12)
			t.offsets = append(t.offsets, int(i))
			last = rec.D12
		}
	}
	return nil
}

// scanStart returns the record ordinal of the first record whose D12 is >=
// the given value, via binary search over the offset index.
func (t *Table) scanStart(d12Min uint16) uint64 {
	idx := sort.Search(len(t.d12Values), func(i int) bool {
		return t.d12Values[i] >= d12Min
	})
	if idx >= len(t.offsets) {
		return t.header.RecordCount
	}
	return uint64(t.offsets[idx])
}

// RangeQuery returns every record whose (d12,d13,d23) fall within delta of
// the given target distances, per §4.1: binary-search the start offset by
// d12-delta, then linear-scan until d12+delta, filtering the other two
// distances within delta. A corrupt record encountered mid-scan is skipped;
// a record carrying a reserved flag bit aborts the scan and is reported as
// InvalidIndex, since the reader doesn't understand that record's layout.
func (t *Table) RangeQuery(d12, d13, d23 uint16, delta uint16) ([]Record, error) {
	var lo uint16
	if d12 > delta {
		lo = d12 - delta
	}
	hiUint := uint32(d12) + uint32(delta)

	var out []Record
	for i := t.scanStart(lo); i < t.header.RecordCount; i++ {
		rec, err := decodeRecord(t.recordAt(i))
		if err != nil {
			if errors.IsCode(err, errors.CodeInvalidIndex) {
				return nil, err
			}
			continue
		}
		if uint32(rec.D12) > hiUint {
			break
		}
		if !withinDelta(rec.D13, d13, delta) || !withinDelta(rec.D23, d23, delta) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func withinDelta(a, b, delta uint16) bool {
	var diff uint16
	if a > b {
		diff = a - b
	} else {
		diff = b - a
	}
	return diff <= delta
}

// RecordCount returns the number of records in the table.
func (t *Table) RecordCount() uint64 {
	return t.header.RecordCount
}
