package storage

import (
	"errors"
	"io/fs"
	"os"
)

// DiskUsageBytes returns the total size in bytes of the given files.
// Paths that do not exist contribute 0, so a database whose WAL has been
// checkpointed away still reports its main file.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
		}
	}
	return total, nil
}
