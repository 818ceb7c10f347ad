//go:build windows

package merger

import "os"

// os.Rename uses MoveFileEx with MOVEFILE_REPLACE_EXISTING on Windows
func osReplace(tmpPath, dest string) error {
	return os.Rename(tmpPath, dest)
}

// Directory fsync is not available on Windows
func syncDir(string) error { return nil }
