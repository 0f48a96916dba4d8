package index

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoes-labs/pharmsearch/pkg/errors"
)

func buildHeaderBytes(version, recSize uint16, count uint64) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:6], Magic[:])
	binary.LittleEndian.PutUint16(buf[6:8], version)
	binary.LittleEndian.PutUint16(buf[8:10], recSize)
	binary.LittleEndian.PutUint64(buf[10:18], count)
	return buf
}

func TestParseHeader_Valid(t *testing.T) {
	t.Parallel()

	buf := buildHeaderBytes(CurrentVersion, recordSize, 42)
	h, err := parseHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), h.RecordCount)
}

func TestParseHeader_BadMagic(t *testing.T) {
	t.Parallel()

	buf := buildHeaderBytes(CurrentVersion, recordSize, 1)
	buf[0] = 'X'
	_, err := parseHeader(buf)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidIndex))
}

func TestParseHeader_UnsupportedVersion(t *testing.T) {
	t.Parallel()

	buf := buildHeaderBytes(CurrentVersion+1, recordSize, 1)
	_, err := parseHeader(buf)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidIndex))
}

func TestParseHeader_TooShort(t *testing.T) {
	t.Parallel()

	_, err := parseHeader([]byte{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidIndex))
}

func TestDecodeRecord_RejectsReservedFlags(t *testing.T) {
	t.Parallel()

	buf := make([]byte, recordSize)
	binary.LittleEndian.PutUint16(buf[0:2], 1)
	binary.LittleEndian.PutUint16(buf[2:4], 2)
	binary.LittleEndian.PutUint16(buf[4:6], 3)
	binary.LittleEndian.PutUint16(buf[recordSize-2:recordSize], 0x0002) // reserved bit set

	// A reserved flag bit means the reader doesn't understand this record's
	// layout at all, so it must abort (InvalidIndex), not skip-and-continue
	// the way a merely corrupt record does.
	_, err := decodeRecord(buf)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidIndex))
}

func TestDecodeRecord_RejectsOutOfOrderDistances(t *testing.T) {
	t.Parallel()

	buf := make([]byte, recordSize)
	binary.LittleEndian.PutUint16(buf[0:2], 5)
	binary.LittleEndian.PutUint16(buf[2:4], 3) // d13 < d12: out of canonical order
	binary.LittleEndian.PutUint16(buf[4:6], 10)

	_, err := decodeRecord(buf)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeCorruptRecord))
}

func TestDecodeRecord_WrongLength(t *testing.T) {
	t.Parallel()

	_, err := decodeRecord(make([]byte, recordSize-1))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeCorruptRecord))
}
