package module

import (
	"errors"
	"testing"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/audioapi"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/functionblock"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModule(t *testing.T, devices ...audioapi.DeviceInfo) (*Module, *audioapi.DummyAPI) {
	t.Helper()
	api := audioapi.NewDummyAPI(address.BackendWASAPI, devices...)
	api.SetPeriod(64, time.Millisecond)
	m := New(api, Options{})
	t.Cleanup(func() { m.Close() })
	return m, api
}

func wasapiDevices() []audioapi.DeviceInfo {
	return []audioapi.DeviceInfo{
		{Address: address.WASAPIAddress("{0.0.1.00000000}.{aaaa}"), Name: "Microphone (USB)", IsDefault: true},
		{Address: address.WASAPIAddress("{0.0.1.00000000}.{bbbb}"), Name: "Line In"},
	}
}

func ptr(s string) *string { return &s }

func TestModuleMetadata(t *testing.T) {
	m, _ := newTestModule(t)
	assert.Equal(t, "r6e bridge module", m.Name())
	assert.Equal(t, "AudioDevice", m.ID())
	assert.Equal(t, "1.0.0", m.Version().String())
}

func TestAvailableDeviceTypes(t *testing.T) {
	m, _ := newTestModule(t)

	types := m.AvailableDeviceTypes()
	require.Len(t, types, 1)
	deviceType, ok := types["miniaudio"]
	require.True(t, ok)
	assert.Equal(t, "miniaudio", deviceType.ID)
	assert.Equal(t, "Audio device", deviceType.Name)
	assert.Equal(t, "", deviceType.Description)
	assert.Equal(t, types, m.AvailableDeviceTypes())
}

func TestAvailableFunctionBlockTypes(t *testing.T) {
	m, _ := newTestModule(t)

	types := m.AvailableFunctionBlockTypes()
	require.Len(t, types, 1)
	_, ok := types["r6e_bridge_module_wav_writer"]
	assert.True(t, ok)

	assert.Empty(t, m.AvailableServerTypes())
}

func TestAcceptsConnectionParameters(t *testing.T) {
	m, _ := newTestModule(t)

	_, err := m.AcceptsConnectionParameters(nil)
	assert.ErrorIs(t, err, ErrArgumentNull)

	tests := []struct {
		connStr  string
		expected bool
	}{
		{"", false},
		{"drfrfgt", false},
		{"daqref://devicett3axxr1", false},
		{"miniaudio://wasapi/....", true},
		{"miniaudio://alsa/hw:0", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.connStr, func(t *testing.T) {
			accepted, err := m.AcceptsConnectionParameters(ptr(tt.connStr))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, accepted)
		})
	}
}

func TestCreateDeviceInvalid(t *testing.T) {
	m, _ := newTestModule(t, wasapiDevices()...)

	_, err := m.CreateDevice(nil)
	assert.ErrorIs(t, err, ErrArgumentNull)

	for _, connStr := range []string{
		"",
		"fdfdfdfdde",
		"daqref://devicett3axxr1",
		"miniaudio://alsa/hw:0,0",
		"miniaudio://wasapi/{0.0.1.00000000}.{not-there}",
	} {
		connStr := connStr
		t.Run(connStr, func(t *testing.T) {
			d, err := m.CreateDevice(ptr(connStr))
			assert.ErrorIs(t, err, ErrInvalidParameter)
			assert.ErrorIs(t, err, address.ErrInvalidAddress)
			assert.Nil(t, d)
		})
	}
}

func TestAvailableDevicesAndCreate(t *testing.T) {
	m, api := newTestModule(t, wasapiDevices()...)

	descriptors, err := m.AvailableDevices()
	require.NoError(t, err)
	require.Len(t, descriptors, 2)
	assert.Equal(t, "Microphone (USB)", descriptors[0].Name)
	assert.Equal(t, "miniaudio://wasapi/{0.0.1.00000000}.{aaaa}", descriptors[0].ConnectionString)
	assert.Equal(t, "miniaudio", descriptors[0].TypeID)
	assert.True(t, descriptors[0].IsDefault)

	first, err := m.CreateDevice(ptr(descriptors[0].ConnectionString))
	require.NoError(t, err)
	assert.Equal(t, "miniaudiodev0", first.LocalID())
	assert.True(t, first.IsRunning())
	assert.Equal(t, "Microphone (USB)", first.Info().Name)

	second, err := m.CreateDevice(ptr(descriptors[1].ConnectionString))
	require.NoError(t, err)
	assert.Equal(t, "miniaudiodev1", second.LocalID())
	assert.Equal(t, 2, api.OpenStreams())

	require.NoError(t, m.Close())
	assert.True(t, first.IsDisposed())
	assert.True(t, second.IsDisposed())
	assert.Equal(t, 0, api.OpenStreams())

	_, err = m.CreateDevice(ptr(descriptors[0].ConnectionString))
	assert.ErrorIs(t, err, ErrCreationFailed)
}

func TestCreateDeviceThatFailsToStart(t *testing.T) {
	m, api := newTestModule(t, wasapiDevices()...)
	api.SetStartError(errors.New("exclusive mode"))

	d, err := m.CreateDevice(ptr("miniaudio://wasapi/{0.0.1.00000000}.{bbbb}"))
	require.NoError(t, err)
	assert.False(t, d.IsRunning())
	assert.True(t, d.Resolution().IsUnknown())

	api.SetStartError(nil)
	d.Start()
	assert.True(t, d.IsRunning())
}

func TestAvailableDevicesEnumerationFailure(t *testing.T) {
	m, api := newTestModule(t, wasapiDevices()...)
	api.SetEnumerateError(errors.New("COM not initialised"))

	_, err := m.AvailableDevices()
	assert.ErrorIs(t, err, audioapi.ErrEnumerationFailed)

	api.SetEnumerateError(nil)
	descriptors, err := m.AvailableDevices()
	require.NoError(t, err)
	assert.Len(t, descriptors, 2)
}

func TestAvailableDevicesEmpty(t *testing.T) {
	m, _ := newTestModule(t)
	descriptors, err := m.AvailableDevices()
	require.NoError(t, err)
	assert.Empty(t, descriptors)
}

func TestCreateBareDevice(t *testing.T) {
	bare, err := address.NewBareAddress(address.BackendOSS)
	require.NoError(t, err)

	api := audioapi.NewDummyAPI(address.BackendOSS, audioapi.DeviceInfo{Address: bare, Name: "/dev/dsp", IsDefault: true})
	m := New(api, Options{SampleRate: 22050})
	defer m.Close()

	d, err := m.CreateDevice(ptr("miniaudio://oss/"))
	require.NoError(t, err)
	assert.Equal(t, "/dev/dsp", d.Info().Name)
	assert.Equal(t, 22050, d.SampleRate())

	// Without hardware the device still exists, named after its backend.
	empty := New(audioapi.NewDummyAPI(address.BackendOSS), Options{})
	defer empty.Close()
	d, err = empty.CreateDevice(ptr("miniaudio://oss/"))
	require.NoError(t, err)
	assert.False(t, d.IsRunning())
	assert.Equal(t, "oss", d.Info().Name)
}

func TestCreateFunctionBlock(t *testing.T) {
	m, _ := newTestModule(t)

	fb, err := m.CreateFunctionBlock(functionblock.WAVWriterTypeID, "wav0")
	require.NoError(t, err)
	assert.Equal(t, "wav0", fb.LocalID())

	_, err = m.CreateFunctionBlock("unknown_type", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}
