//go:build !linux && !darwin && !freebsd

package arena

// mapAnon allocates from the Go heap when anonymous mappings are unavailable.
func mapAnon(size int) ([]byte, func() error, error) {
	return make([]byte, size), nil, nil
}
