//go:build !linux

package gpio

// Open is only supported on linux.
func Open(c Config) (*Line, error) {
	return nil, ErrNotSupported
}
