//go:build darwin

package keychain

// Supported reports whether the security and codesign tools are available
// on this platform.
func Supported() bool {
	return true
}
