// Package module is the discovery and factory surface of the bridge: it lists
// capture hardware, answers whether a connection string is handled here and
// creates capture devices and function blocks.
package module

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/audioapi"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/device"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/functionblock"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/address"
	"github.com/google/uuid"
)

var (
	ErrArgumentNull     = errors.New("argument is null")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrCreationFailed   = errors.New("creation failed")
	ErrNotFound         = errors.New("not found")
)

const (
	Name = "r6e bridge module"
	ID   = "AudioDevice"

	localIDPrefix = "miniaudiodev"
)

type VersionInfo struct {
	Major int
	Minor int
	Patch int
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

var Version = VersionInfo{Major: 1, Minor: 0, Patch: 0}

type DeviceType struct {
	ID          string
	Name        string
	Description string
}

type ServerType struct {
	ID          string
	Name        string
	Description string
}

// DeviceDescriptor is one entry of AvailableDevices.
type DeviceDescriptor struct {
	Name             string
	ConnectionString string
	TypeID           string
	IsDefault        bool
}

type Options struct {
	// Initial sample rate of created devices. 0 uses device.DefaultSampleRate.
	SampleRate int

	// Capacity of each device channel stream, in packets.
	StreamBufferSize int

	Logger *slog.Logger
}

// Module owns the backend context and every device it created.
type Module struct {
	logger *slog.Logger
	api    audioapi.Context
	opts   Options

	// Serialises enumeration and device creation against the backend.
	mu      sync.Mutex
	nextID  int
	devices []*device.CaptureDevice
	closed  bool
}

// Create a module on top of an initialised backend context.
// The module takes ownership of api and closes it in Close.
func New(api audioapi.Context, opts Options) *Module {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts.Logger = logger
	return &Module{
		logger: logger.With("module uuid", uuid.New(), "backend", api.Backend()),
		api:    api,
		opts:   opts,
	}
}

func (m *Module) Name() string { return Name }

func (m *Module) ID() string { return ID }

func (m *Module) Version() VersionInfo { return Version }

// --------------------------------------------------------------------------------
// Discovery

// List the capture devices of the backend.
func (m *Module) AvailableDevices() ([]DeviceDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos, err := m.api.CaptureDevices()
	if err != nil {
		if !errors.Is(err, audioapi.ErrEnumerationFailed) {
			err = fmt.Errorf("%w: %w", audioapi.ErrEnumerationFailed, err)
		}
		m.logger.Error("could not list capture devices", "err", err)
		return nil, err
	}

	descriptors := make([]DeviceDescriptor, 0, len(infos))
	for _, info := range infos {
		descriptors = append(descriptors, DeviceDescriptor{
			Name:             info.Name,
			ConnectionString: info.Address.String(),
			TypeID:           device.TypeID,
			IsDefault:        info.IsDefault,
		})
	}
	return descriptors, nil
}

func (m *Module) AvailableDeviceTypes() map[string]DeviceType {
	return DeviceTypes()
}

// DeviceTypes returns the device types any module can create.
func DeviceTypes() map[string]DeviceType {
	return map[string]DeviceType{
		device.TypeID: {
			ID:          device.TypeID,
			Name:        "Audio device",
			Description: "",
		},
	}
}

func (m *Module) AvailableFunctionBlockTypes() map[string]functionblock.Type {
	return functionblock.Types()
}

func (m *Module) AvailableServerTypes() map[string]ServerType {
	return map[string]ServerType{}
}

// AcceptsConnectionParameters reports whether connectionString is handled by
// this module. A nil connection string is a caller error.
func (m *Module) AcceptsConnectionParameters(connectionString *string) (bool, error) {
	if connectionString == nil {
		return false, fmt.Errorf("%w: connection string", ErrArgumentNull)
	}
	accepted := address.HasPrefix(*connectionString)
	m.logger.Debug("connection string probed", "connection", *connectionString, "accepted", accepted)
	return accepted, nil
}

// --------------------------------------------------------------------------------
// Factory

// Create a capture device from a connection string.
//
// The device is bound to the module's backend context, receives the next
// local id and is started before it is returned; a device whose hardware
// could not be started is still returned.
func (m *Module) CreateDevice(connectionString *string) (*device.CaptureDevice, error) {
	if connectionString == nil {
		return nil, fmt.Errorf("%w: connection string", ErrArgumentNull)
	}

	addr, err := address.Decode(*connectionString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	if addr.Backend() != m.api.Backend() {
		return nil, fmt.Errorf("%w: %w: backend %s is not active (active backend is %s)",
			ErrInvalidParameter, address.ErrInvalidAddress, addr.Backend(), m.api.Backend())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("%w: module is closed", ErrCreationFailed)
	}

	name, err := m.api.DeviceName(addr)
	if err != nil {
		if _, bare := addr.(address.BareAddress); !bare {
			return nil, fmt.Errorf("%w: %w: %w", ErrInvalidParameter, address.ErrInvalidAddress, err)
		}
		name = addr.Backend().String()
	}

	localID := fmt.Sprintf("%s%d", localIDPrefix, m.nextID)
	d, err := device.NewCaptureDevice(m.api, addr, localID, device.Options{
		Name:             name,
		StreamBufferSize: m.opts.StreamBufferSize,
		SampleRate:       m.opts.SampleRate,
		Logger:           m.opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreationFailed, err)
	}
	m.nextID++
	m.devices = append(m.devices, d)

	m.logger.Info("created device", "device", localID, "name", name, "running", d.IsRunning())
	return d, nil
}

// Create a function block of a published type.
func (m *Module) CreateFunctionBlock(typeID string, localID string) (functionblock.FunctionBlock, error) {
	fb, err := functionblock.Create(typeID, localID, m.opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return fb, nil
}

// Dispose every created device and release the backend context.
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	for _, d := range m.devices {
		d.Dispose()
	}
	m.devices = nil
	return m.api.Close()
}
