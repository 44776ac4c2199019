//go:build !cgo

package audioapi

import (
	"errors"
	"fmt"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/address"
)

// MalgoAPI is unavailable in builds without cgo.
type MalgoAPI struct{}

func NewMalgoAPI(backend address.Backend) (*MalgoAPI, error) {
	return nil, fmt.Errorf("%w: %w", ErrInitFailed, errors.New("built without cgo, native audio is unavailable"))
}

func (api *MalgoAPI) Backend() address.Backend { return address.BackendUnknown }

func (api *MalgoAPI) CaptureDevices() ([]DeviceInfo, error) {
	return nil, ErrEnumerationFailed
}

func (api *MalgoAPI) DeviceName(address.Address) (string, error) {
	return "", ErrEnumerationFailed
}

func (api *MalgoAPI) OpenCapture(StreamConfig, DataCallback) (Stream, error) {
	return nil, ErrDeviceOpenFailed
}

func (api *MalgoAPI) Close() error { return nil }
