// Package device implements a capture device on top of an audioapi.Context:
// its lifecycle, the capture callback path and its audio channel.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/audioapi"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/internal/property"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/address"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/signal"
	"github.com/google/uuid"
)

var (
	// The channel stream is full; the consumer is not keeping up.
	ErrStreamFull = errors.New("channel stream is full")
	// The native buffer holds fewer bytes than its frame count implies.
	ErrShortBuffer = errors.New("capture buffer shorter than frame count")
)

const (
	// Identifier of the device type every capture device belongs to.
	TypeID = "miniaudio"

	SampleRateProperty = "SampleRate"
	DefaultSampleRate  = 44100

	DefaultStreamBufferSize = 64

	numChannels = 1
)

var SuggestedSampleRates = []int{11025, 22050, 44100}

// Info describes a capture device to a host.
type Info struct {
	Name             string
	ConnectionString string
	LocalID          string
	TypeID           string
}

// CaptureDevice captures mono float32 audio from one hardware endpoint.
//
// A device is either running (a native stream is open) or not. Start, Stop,
// Reconfigure and Dispose serialise on one lock; Dispose is terminal.
// Failing to open or start the native stream is logged and leaves the device
// not running.
type CaptureDevice struct {
	logger *slog.Logger
	uuid   uuid.UUID

	localID    string
	address    address.Address
	api        audioapi.Context
	properties *property.Object
	timeSignal *signal.Signal
	channel    *AudioChannel

	mu         sync.Mutex
	stream     audioapi.Stream
	sampleRate int
	disposed   bool
	name       string

	// Written by start while no stream is open and by onData while one is.
	samplesCaptured atomic.Int64
	dropped         atomic.Int64
}

type Options struct {
	// Display name reported until the backend is queried again.
	Name string

	// Capacity of the channel stream, in packets.
	StreamBufferSize int

	// Initial value of the SampleRate property.
	SampleRate int

	Logger *slog.Logger
}

// Create a capture device for addr and try to start it.
// The device is returned even if the hardware could not be started.
func NewCaptureDevice(api audioapi.Context, addr address.Address, localID string, opts Options) (*CaptureDevice, error) {
	if api == nil || addr == nil {
		return nil, errors.New("capture device needs a context and an address")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New()
	logger = logger.With(
		"capture device uuid", id,
		"device", localID,
		"connection", addr.String(),
	)

	bufferSize := opts.StreamBufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultStreamBufferSize
	}

	d := &CaptureDevice{
		logger:     logger,
		uuid:       id,
		localID:    localID,
		address:    addr,
		api:        api,
		properties: property.NewObject(logger),
		timeSignal: signal.NewSignal("time"),
		name:       opts.Name,
	}
	d.channel = newAudioChannel(logger, d.timeSignal, bufferSize)

	err := d.properties.AddProperty(property.IntProperty(
		SampleRateProperty,
		DefaultSampleRate,
		SuggestedSampleRates,
		func(rate int) error {
			if rate <= 0 {
				return fmt.Errorf("sample rate must be positive, got %d", rate)
			}
			return nil
		},
	))
	if err != nil {
		return nil, err
	}
	if opts.SampleRate > 0 && opts.SampleRate != DefaultSampleRate {
		if err := d.properties.SetPropertyValue(SampleRateProperty, opts.SampleRate); err != nil {
			return nil, err
		}
	}
	if err := d.properties.OnPropertyValueWrite(SampleRateProperty, d.onSampleRateWrite); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.start()
	d.mu.Unlock()

	return d, nil
}

func (d *CaptureDevice) onSampleRateWrite(_ string, value any) {
	d.logger.Info("sample rate property changed", "sampleRate", value)
	d.Reconfigure()
}

// --------------------------------------------------------------------------------
// Lifecycle

// Start the native stream. A no-op if the device is running or disposed.
func (d *CaptureDevice) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.start()
}

// Stop the native stream. Returns once no capture callback can run anymore.
func (d *CaptureDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stop()
}

// Restart the native stream with the current configuration.
// Packet offsets restart at 0.
func (d *CaptureDevice) Reconfigure() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disposed {
		return
	}
	d.stop()
	d.start()
}

// Stop the device for good and close its channel stream.
func (d *CaptureDevice) Dispose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disposed {
		return
	}
	d.stop()
	d.disposed = true
	d.channel.Close()
	d.logger.Debug("disposed", "dropped", d.dropped.Load())
}

// Change the SampleRate property, which reconfigures a live device.
func (d *CaptureDevice) SetSampleRate(rate int) error {
	return d.properties.SetPropertyValue(SampleRateProperty, rate)
}

// must hold d.mu
func (d *CaptureDevice) start() {
	if d.stream != nil || d.disposed {
		return
	}

	rate, err := d.properties.Int(SampleRateProperty)
	if err != nil {
		d.logger.Error("could not read sample rate", "err", err)
		return
	}

	stream, err := d.api.OpenCapture(audioapi.StreamConfig{
		Address:     d.address,
		SampleRate:  rate,
		NumChannels: numChannels,
	}, d.onData)
	if err != nil {
		d.logger.Warn("failed to open capture device", "sampleRate", rate, "err", err)
		return
	}

	negotiated := stream.SampleRate()
	if negotiated <= 0 {
		negotiated = rate
	}
	if negotiated != rate {
		d.logger.Info("backend adjusted sample rate", "requested", rate, "negotiated", negotiated)
	}

	d.timeSignal.SetDescriptor(timeDescriptor(negotiated))
	d.samplesCaptured.Store(0)

	if err := stream.Start(); err != nil {
		d.logger.Warn("failed to start capture device", "err", err)
		stream.Close()
		return
	}

	d.stream = stream
	d.sampleRate = negotiated
	d.logger.Info("capture started", "sampleRate", negotiated)
}

// must hold d.mu
func (d *CaptureDevice) stop() {
	if d.stream == nil {
		return
	}
	d.stream.Close()
	d.stream = nil
	d.sampleRate = 0
	d.logger.Info("capture stopped", "samplesCaptured", d.samplesCaptured.Load())
}

// --------------------------------------------------------------------------------
// Queries

func (d *CaptureDevice) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stream != nil
}

func (d *CaptureDevice) IsDisposed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposed
}

// The negotiated sample rate, or 0 while not running.
func (d *CaptureDevice) SampleRate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampleRate
}

// 1/negotiated sample rate while running, signal.UnknownRatio otherwise.
func (d *CaptureDevice) Resolution() signal.Ratio {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		return signal.UnknownRatio
	}
	return signal.Ratio{Num: 1, Den: int64(d.sampleRate)}
}

func (d *CaptureDevice) DomainInfo() DomainInfo {
	return DomainInfo{
		Resolution:       d.Resolution(),
		TicksSinceOrigin: 0,
		Origin:           "",
		Unit:             signal.SecondsUnit,
	}
}

// Info queries the backend for the current display name of the device.
// If the query fails the last known name is reported.
func (d *CaptureDevice) Info() Info {
	name, err := d.api.DeviceName(d.address)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.logger.Warn("could not query device name", "err", err)
	} else {
		d.name = name
	}
	return Info{
		Name:             d.name,
		ConnectionString: d.address.String(),
		LocalID:          d.localID,
		TypeID:           TypeID,
	}
}

func (d *CaptureDevice) LocalID() string { return d.localID }

func (d *CaptureDevice) Address() address.Address { return d.address }

func (d *CaptureDevice) Properties() *property.Object { return d.properties }

// The domain signal of the device.
func (d *CaptureDevice) TimeSignal() *signal.Signal { return d.timeSignal }

func (d *CaptureDevice) Channel() *AudioChannel { return d.channel }

// Number of capture buffers dropped since the device was created.
func (d *CaptureDevice) DroppedPackets() int64 {
	return d.dropped.Load()
}

// Number of samples forwarded since the last start.
func (d *CaptureDevice) SamplesCaptured() int64 {
	return d.samplesCaptured.Load()
}
