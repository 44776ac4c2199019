//go:build !windows

package audioapi

func withCOM(fn func() error) error {
	return fn()
}
