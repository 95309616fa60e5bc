//go:build !windows

package download

import "os"

// MarkExecutable sets rwxr-xr-x on path
func MarkExecutable(path string) error {
	return os.Chmod(path, 0o755)
}
