package audioapi

import (
	"encoding/binary"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Context = (*DummyAPI)(nil)
	_ Context = (*MalgoAPI)(nil)
)

func testDevices() []DeviceInfo {
	return []DeviceInfo{
		{Address: address.ALSAAddress("hw:0,0"), Name: "Built-in Microphone"},
		{Address: address.ALSAAddress("hw:1,0"), Name: "USB Microphone", IsDefault: true},
	}
}

func TestParseBackend(t *testing.T) {
	backend, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBackend(), backend)

	backend, err = ParseBackend("pulseaudio")
	require.NoError(t, err)
	assert.Equal(t, address.BackendPulseAudio, backend)

	_, err = ParseBackend("asio")
	assert.ErrorIs(t, err, ErrInitFailed)
	assert.ErrorIs(t, err, address.ErrInvalidAddress)
}

func TestDeviceInfoString(t *testing.T) {
	info := testDevices()[1]
	assert.Contains(t, info.String(), "USB Microphone")
	assert.Contains(t, info.String(), "miniaudio://alsa/hw:1,0")
}

func TestDummyAPIEnumeration(t *testing.T) {
	api := NewDummyAPI(address.BackendALSA, testDevices()...)
	assert.Equal(t, address.BackendALSA, api.Backend())

	devices, err := api.CaptureDevices()
	require.NoError(t, err)
	assert.Equal(t, testDevices(), devices)

	name, err := api.DeviceName(address.ALSAAddress("hw:0,0"))
	require.NoError(t, err)
	assert.Equal(t, "Built-in Microphone", name)

	_, err = api.DeviceName(address.ALSAAddress("hw:9,0"))
	assert.ErrorIs(t, err, ErrEnumerationFailed)

	api.SetEnumerateError(errors.New("device busy"))
	_, err = api.CaptureDevices()
	assert.ErrorIs(t, err, ErrEnumerationFailed)

	api.SetEnumerateError(nil)
	require.NoError(t, api.Close())
	_, err = api.CaptureDevices()
	assert.ErrorIs(t, err, ErrEnumerationFailed)
}

func TestDummyAPIStream(t *testing.T) {
	api := NewDummyAPI(address.BackendALSA, testDevices()...)
	api.SetNegotiate(func(int) int { return 48000 })
	api.SetPeriod(64, time.Millisecond)

	var calls atomic.Int32
	var lastFrames atomic.Uint32
	var firstSample atomic.Uint32
	stream, err := api.OpenCapture(StreamConfig{
		Address:     address.ALSAAddress("hw:1,0"),
		SampleRate:  44100,
		NumChannels: 1,
	}, func(input []byte, frameCount uint32) {
		if calls.Add(1) == 2 {
			firstSample.Store(binary.LittleEndian.Uint32(input))
		}
		lastFrames.Store(frameCount)
		assert.Len(t, input, 4*int(frameCount))
	})
	require.NoError(t, err)
	assert.Equal(t, 1, api.OpenStreams())
	assert.Equal(t, 48000, stream.SampleRate())

	require.NoError(t, stream.Start())
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)

	stream.Close()
	after := calls.Load()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no callback after Close returned")
	assert.Equal(t, uint32(64), lastFrames.Load())
	assert.False(t, math.IsNaN(float64(math.Float32frombits(firstSample.Load()))))
	assert.Equal(t, 0, api.OpenStreams())

	stream.Close()
	assert.Equal(t, 0, api.OpenStreams())
}

func TestDummyAPIFailures(t *testing.T) {
	api := NewDummyAPI(address.BackendALSA, testDevices()...)

	_, err := api.OpenCapture(StreamConfig{Address: address.ALSAAddress("hw:7,0"), SampleRate: 44100, NumChannels: 1}, func([]byte, uint32) {})
	assert.ErrorIs(t, err, ErrDeviceOpenFailed)

	api.SetOpenError(errors.New("unplugged"))
	_, err = api.OpenCapture(StreamConfig{Address: address.ALSAAddress("hw:0,0"), SampleRate: 44100, NumChannels: 1}, func([]byte, uint32) {})
	assert.ErrorIs(t, err, ErrDeviceOpenFailed)
	assert.Equal(t, 0, api.OpenStreams())

	api.SetOpenError(nil)
	api.SetStartError(errors.New("busy"))
	stream, err := api.OpenCapture(StreamConfig{Address: address.ALSAAddress("hw:0,0"), SampleRate: 44100, NumChannels: 1}, func([]byte, uint32) {})
	require.NoError(t, err)
	assert.ErrorIs(t, stream.Start(), ErrDeviceStartFailed)
	stream.Close()
	assert.Equal(t, 0, api.OpenStreams())
}

type constantSource float32

func (c constantSource) Fill(dst []float32) {
	for i := range dst {
		dst[i] = float32(c)
	}
}

func TestDummyAPISampleSourceAndDefault(t *testing.T) {
	bare, err := address.NewBareAddress(address.BackendOSS)
	require.NoError(t, err)

	api := NewDummyAPI(address.BackendOSS, DeviceInfo{Address: bare, Name: "dsp", IsDefault: true})
	api.SetSampleSource(constantSource(0.5))

	name, err := api.DeviceName(bare)
	require.NoError(t, err)
	assert.Equal(t, "dsp", name)

	got := make(chan float32, 1)
	stream, err := api.OpenCapture(StreamConfig{Address: bare, SampleRate: 8000, NumChannels: 1}, func(input []byte, frameCount uint32) {
		select {
		case got <- math.Float32frombits(binary.LittleEndian.Uint32(input)):
		default:
		}
	})
	require.NoError(t, err)
	require.NoError(t, stream.Start())
	assert.Equal(t, float32(0.5), <-got)
	stream.Close()
}
