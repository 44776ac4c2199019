//go:build cgo

package audioapi

/*
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/address"
	"github.com/gen2brain/malgo"
	"github.com/google/uuid"
)

var malgoBackends = map[address.Backend]malgo.Backend{
	address.BackendWASAPI:     malgo.BackendWasapi,
	address.BackendDSound:     malgo.BackendDsound,
	address.BackendWinMM:      malgo.BackendWinmm,
	address.BackendCoreAudio:  malgo.BackendCoreaudio,
	address.BackendSndio:      malgo.BackendSndio,
	address.BackendAudio4:     malgo.BackendAudio4,
	address.BackendOSS:        malgo.BackendOss,
	address.BackendPulseAudio: malgo.BackendPulseaudio,
	address.BackendALSA:       malgo.BackendAlsa,
	address.BackendJACK:       malgo.BackendJack,
	address.BackendAAudio:     malgo.BackendAaudio,
	address.BackendOpenSL:     malgo.BackendOpensl,
}

// MalgoAPI is a Context backed by miniaudio.
//
// The context is initialised with exactly one backend so that every device
// identifier it reports can be tagged with that backend.
type MalgoAPI struct {
	logger  *slog.Logger
	backend address.Backend

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	closed bool
}

// Initialise miniaudio for the given backend.
// Failure is fatal for the bridge and reported as ErrInitFailed.
func NewMalgoAPI(backend address.Backend) (*MalgoAPI, error) {
	logger := slog.Default().With(
		"miniaudio context uuid", uuid.New(),
		"backend", backend,
	)

	malgoBackend, ok := malgoBackends[backend]
	if !ok {
		logger.Error("unsupported backend")
		return nil, fmt.Errorf("%w: unsupported backend %s", ErrInitFailed, backend)
	}

	ctx, err := malgo.InitContext([]malgo.Backend{malgoBackend}, malgo.ContextConfig{}, func(message string) {
		logger.Debug("miniaudio", "message", strings.TrimSpace(message))
	})
	if err != nil {
		logger.Error("failed to initialise miniaudio context", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrInitFailed, err)
	}

	logger.Debug("initialised miniaudio context")
	return &MalgoAPI{
		logger:  logger,
		backend: backend,
		ctx:     ctx,
	}, nil
}

func (api *MalgoAPI) Backend() address.Backend {
	return api.backend
}

// Enumerate the capture endpoints of the backend.
func (api *MalgoAPI) CaptureDevices() ([]DeviceInfo, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.closed {
		return nil, fmt.Errorf("%w: %w", ErrEnumerationFailed, errContextClosed)
	}

	var devices []malgo.DeviceInfo
	err := withCOM(func() error {
		var err error
		devices, err = api.ctx.Devices(malgo.Capture)
		return err
	})
	if err != nil {
		api.logger.Error("failed to enumerate capture devices", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrEnumerationFailed, err)
	}

	infos := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		infos = append(infos, DeviceInfo{
			Address:   address.FromNativeID(api.backend, d.ID[:]),
			Name:      d.Name(),
			IsDefault: d.IsDefault != 0,
		})
	}
	return infos, nil
}

// Query the display name of a device.
// Addresses without a payload name the default capture device.
func (api *MalgoAPI) DeviceName(a address.Address) (string, error) {
	if _, bare := a.(address.BareAddress); bare {
		return api.defaultDeviceName()
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if api.closed {
		return "", fmt.Errorf("%w: %w", ErrEnumerationFailed, errContextClosed)
	}

	id := deviceID(a)
	var info malgo.DeviceInfo
	err := withCOM(func() error {
		var err error
		info, err = api.ctx.DeviceInfo(malgo.Capture, id, malgo.Shared)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrEnumerationFailed, a, err)
	}
	return info.Name(), nil
}

func (api *MalgoAPI) defaultDeviceName() (string, error) {
	devices, err := api.CaptureDevices()
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if d.IsDefault {
			return d.Name, nil
		}
	}
	if len(devices) > 0 {
		return devices[0].Name, nil
	}
	return "", fmt.Errorf("%w: %w", ErrEnumerationFailed, errNoDeviceWithID)
}

// Open a capture stream. The returned stream is initialised but not started.
func (api *MalgoAPI) OpenCapture(config StreamConfig, callback DataCallback) (Stream, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.closed {
		return nil, fmt.Errorf("%w: %w", ErrDeviceOpenFailed, errContextClosed)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(config.NumChannels)
	deviceConfig.SampleRate = uint32(config.SampleRate)

	if config.Address != nil {
		if _, bare := config.Address.(address.BareAddress); !bare {
			id := deviceID(config.Address)
			idPointer := id.Pointer()
			defer C.free(idPointer)
			deviceConfig.Capture.DeviceID = idPointer
		}
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			callback(input, frameCount)
		},
	}

	device, err := malgo.InitDevice(api.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceOpenFailed, config.Address, err)
	}

	return &malgoStream{device: device}, nil
}

// Release the miniaudio context. Streams must be closed before.
func (api *MalgoAPI) Close() error {
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.closed {
		return nil
	}
	api.closed = true

	err := api.ctx.Uninit()
	api.ctx.Free()
	api.logger.Debug("closed miniaudio context")
	return err
}

func deviceID(a address.Address) malgo.DeviceID {
	var id malgo.DeviceID
	native := address.NativeID(a)
	copy(id[:], native[:])
	return id
}

// --------------------------------------------------------------------------------

type malgoStream struct {
	device    *malgo.Device
	closeOnce sync.Once
}

func (s *malgoStream) Start() error {
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceStartFailed, err)
	}
	return nil
}

func (s *malgoStream) SampleRate() int {
	return int(s.device.SampleRate())
}

// Uninit stops the device first and waits for the audio thread, so no data
// callback runs once it returns.
func (s *malgoStream) Close() {
	s.closeOnce.Do(func() {
		s.device.Uninit()
	})
}
