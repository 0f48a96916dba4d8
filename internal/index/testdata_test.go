package index_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testRecord mirrors the on-disk record layout for building fixture files.
type testRecord struct {
	D12, D13, D23 uint16
	MolLoc        uint64
	PIdx          [3]uint8
	ReducedXYZ    [3][3]int16
	Flags         uint16
}

// writeIndexFile builds a minimal valid index file for tests.
func writeIndexFile(t *testing.T, dir, name string, version uint16, records []testRecord) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	const recordSize = 37
	header := make([]byte, 18)
	copy(header[0:6], []byte{'P', 'H', 'I', 'D', 'X', 0})
	binary.LittleEndian.PutUint16(header[6:8], version)
	binary.LittleEndian.PutUint16(header[8:10], recordSize)
	binary.LittleEndian.PutUint64(header[10:18], uint64(len(records)))
	_, err = f.Write(header)
	require.NoError(t, err)

	for _, r := range records {
		buf := make([]byte, recordSize)
		binary.LittleEndian.PutUint16(buf[0:2], r.D12)
		binary.LittleEndian.PutUint16(buf[2:4], r.D13)
		binary.LittleEndian.PutUint16(buf[4:6], r.D23)
		binary.LittleEndian.PutUint64(buf[6:14], r.MolLoc)
		buf[14], buf[15], buf[16] = r.PIdx[0], r.PIdx[1], r.PIdx[2]
		off := 17
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				binary.LittleEndian.PutUint16(buf[off:off+2], uint16(r.ReducedXYZ[i][j]))
				off += 2
			}
		}
		binary.LittleEndian.PutUint16(buf[off:off+2], r.Flags)
		_, err = f.Write(buf)
		require.NoError(t, err)
	}
	return path
}
