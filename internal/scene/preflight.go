package scene

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrInvalidSnapshot is returned when a snapshot is not a msgpack map with
// a "snapshot" entry.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// snapshotKey holds the network weights in a renderer snapshot.
const snapshotKey = "snapshot"

// SnapshotInfo summarizes a snapshot's top-level map.
type SnapshotInfo struct {
	Size int64
	// Keys seen before the snapshot entry, in file order.
	Keys []string
}

// Preflight walks the top-level map of the snapshot at p without decoding
// its values and fails unless a "snapshot" key is present.
func Preflight(p string) (SnapshotInfo, error) {
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SnapshotInfo{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, p)
		}
		return SnapshotInfo{}, err
	}
	defer f.Close()

	var info SnapshotInfo
	if st, err := f.Stat(); err == nil {
		info.Size = st.Size()
	}

	dec := msgpack.NewDecoder(bufio.NewReaderSize(f, 64*1024))
	n, err := dec.DecodeMapLen()
	if err != nil {
		return info, fmt.Errorf("%w: %s is not a msgpack map: %v", ErrInvalidSnapshot, p, err)
	}

	for i := 0; i < n; i++ {
		key, err := dec.DecodeInterface()
		if err != nil {
			return info, fmt.Errorf("%w: %s: key %d: %v", ErrInvalidSnapshot, p, i, err)
		}
		name, _ := key.(string)
		if name == snapshotKey {
			return info, nil
		}
		info.Keys = append(info.Keys, name)
		if err := dec.Skip(); err != nil {
			return info, fmt.Errorf("%w: %s: value of %q truncated: %v", ErrInvalidSnapshot, p, name, err)
		}
	}
	return info, fmt.Errorf("%w: %s has no %q entry", ErrInvalidSnapshot, p, snapshotKey)
}
