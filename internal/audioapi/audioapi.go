// Package audioapi wraps the native audio subsystem the bridge captures from.
//
// A Context is created once and shared by every capture device and the
// discovery surface. Implementations include miniaudio (through malgo) and a
// simulated backend for tests.
package audioapi

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/address"
)

var (
	// The backend could not be initialised. The bridge is unusable.
	ErrInitFailed = errors.New("backend context initialisation failed")
	// Device enumeration or a device info query failed.
	ErrEnumerationFailed = errors.New("device enumeration failed")
	// A native capture device could not be opened.
	ErrDeviceOpenFailed = errors.New("could not open capture device")
	// An opened native capture device could not be started.
	ErrDeviceStartFailed = errors.New("could not start capture device")

	errNoDeviceWithID = errors.New("no device with specified ID")
	errContextClosed  = errors.New("context is closed")
)

// A capture endpoint reported by the backend.
type DeviceInfo struct {
	// The canonical way to reference the device.
	Address address.Address

	// A human-readable name for the device. Not canonical.
	Name string

	// Whether the backend reports this endpoint as its default capture device.
	IsDefault bool
}

func (device DeviceInfo) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Name:       %s\n", device.Name)
	fmt.Fprintf(&sb, "Connection: %s\n", device.Address)
	fmt.Fprintf(&sb, "Default:    %t\n", device.IsDefault)
	return sb.String()
}

// The capture configuration requested from the backend.
// Samples are always delivered as 32 bit float.
type StreamConfig struct {
	Address     address.Address
	SampleRate  int
	NumChannels int
}

// DataCallback receives one buffer of interleaved little-endian float32 frames.
//
// It runs on a thread owned by the native subsystem and must not block.
type DataCallback func(input []byte, frameCount uint32)

// An opened native capture device.
type Stream interface {
	// Ask the backend to begin invoking the data callback.
	Start() error

	// The sample rate negotiated with the backend, which may differ from the
	// requested one.
	SampleRate() int

	// Halt and release the device. Close blocks until no further callback
	// invocations for this stream are possible.
	Close()
}

// Define an API to interface with the native audio subsystem.
//
// Enumeration, device info queries and opening streams are serialised by the
// Context, so they may be called from any goroutine.
type Context interface {
	// The backend this context was initialised with.
	Backend() address.Backend

	CaptureDevices() ([]DeviceInfo, error)

	// Query the current display name of a device.
	DeviceName(address.Address) (string, error)

	OpenCapture(StreamConfig, DataCallback) (Stream, error)

	Close() error
}

// The backend used when none is configured.
func DefaultBackend() address.Backend {
	switch runtime.GOOS {
	case "windows":
		return address.BackendWASAPI
	case "darwin", "ios":
		return address.BackendCoreAudio
	case "android":
		return address.BackendAAudio
	case "openbsd":
		return address.BackendSndio
	case "netbsd":
		return address.BackendAudio4
	case "freebsd", "dragonfly":
		return address.BackendOSS
	}
	return address.BackendALSA
}

// Resolve a configured backend name. The empty name selects DefaultBackend.
func ParseBackend(name string) (address.Backend, error) {
	if name == "" {
		return DefaultBackend(), nil
	}
	backend, err := address.ParseBackend(name)
	if err != nil {
		return address.BackendUnknown, fmt.Errorf("%w: %w", ErrInitFailed, err)
	}
	return backend, nil
}
