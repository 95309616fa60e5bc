//go:build windows

package download

// MarkExecutable is a no-op on Windows, where executability follows the
// file extension rather than permission bits.
func MarkExecutable(path string) error {
	return nil
}
