package audioapi

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/address"
	"github.com/google/uuid"
)

// A simulated backend with a configurable set of capture devices.
//
// Opened streams run a goroutine that invokes the data callback with a sine
// tone (or the output of a SampleSource) once per period. Failures can be
// injected for enumeration, open and start.
//
// This API is intended to be used in testing and demos only!
type DummyAPI struct {
	logger  *slog.Logger
	backend address.Backend

	mu              sync.Mutex
	devices         []DeviceInfo
	enumerateErr    error
	openErr         error
	startErr        error
	negotiate       func(requested int) int
	source          SampleSource
	framesPerPeriod int
	period          time.Duration
	closed          bool

	openStreams atomic.Int32
}

// SampleSource fills a buffer with mono samples, e.g. a WAV file generator.
type SampleSource interface {
	Fill(dst []float32)
}

// Create a DummyAPI reporting the given devices for backend.
func NewDummyAPI(backend address.Backend, devices ...DeviceInfo) *DummyAPI {
	return &DummyAPI{
		logger: slog.Default().With(
			"dummy context uuid", uuid.New(),
			"backend", backend,
		),
		backend:         backend,
		devices:         devices,
		framesPerPeriod: 256,
		period:          time.Millisecond,
	}
}

func (api *DummyAPI) SetEnumerateError(err error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.enumerateErr = err
}

func (api *DummyAPI) SetOpenError(err error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.openErr = err
}

func (api *DummyAPI) SetStartError(err error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.startErr = err
}

// Set the function mapping a requested sample rate to the negotiated one.
// By default the requested rate is granted.
func (api *DummyAPI) SetNegotiate(negotiate func(requested int) int) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.negotiate = negotiate
}

// Replace the sine tone with samples taken from source.
func (api *DummyAPI) SetSampleSource(source SampleSource) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.source = source
}

// Set the number of frames per callback and the time between callbacks.
func (api *DummyAPI) SetPeriod(framesPerPeriod int, period time.Duration) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.framesPerPeriod = framesPerPeriod
	api.period = period
}

// Rename a device, as if the user renamed the endpoint in the OS.
func (api *DummyAPI) SetDeviceName(a address.Address, name string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	for i := range api.devices {
		if api.devices[i].Address == a {
			api.devices[i].Name = name
		}
	}
}

// Number of streams opened and not yet closed.
func (api *DummyAPI) OpenStreams() int {
	return int(api.openStreams.Load())
}

func (api *DummyAPI) Backend() address.Backend {
	return api.backend
}

func (api *DummyAPI) CaptureDevices() ([]DeviceInfo, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.closed {
		return nil, fmt.Errorf("%w: %w", ErrEnumerationFailed, errContextClosed)
	}
	if api.enumerateErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumerationFailed, api.enumerateErr)
	}
	devices := make([]DeviceInfo, len(api.devices))
	copy(devices, api.devices)
	return devices, nil
}

func (api *DummyAPI) DeviceName(a address.Address) (string, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.enumerateErr != nil {
		return "", fmt.Errorf("%w: %w", ErrEnumerationFailed, api.enumerateErr)
	}
	device, ok := api.find(a)
	if !ok {
		return "", fmt.Errorf("%w: %s: %w", ErrEnumerationFailed, a, errNoDeviceWithID)
	}
	return device.Name, nil
}

func (api *DummyAPI) find(a address.Address) (DeviceInfo, bool) {
	if _, bare := a.(address.BareAddress); bare {
		for _, d := range api.devices {
			if d.IsDefault {
				return d, true
			}
		}
		if len(api.devices) > 0 {
			return api.devices[0], true
		}
		return DeviceInfo{}, false
	}
	for _, d := range api.devices {
		if d.Address == a {
			return d, true
		}
	}
	return DeviceInfo{}, false
}

func (api *DummyAPI) OpenCapture(config StreamConfig, callback DataCallback) (Stream, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.closed {
		return nil, fmt.Errorf("%w: %w", ErrDeviceOpenFailed, errContextClosed)
	}
	if api.openErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceOpenFailed, api.openErr)
	}
	if config.Address != nil {
		if _, ok := api.find(config.Address); !ok {
			return nil, fmt.Errorf("%w: %s: %w", ErrDeviceOpenFailed, config.Address, errNoDeviceWithID)
		}
	}

	sampleRate := config.SampleRate
	if api.negotiate != nil {
		sampleRate = api.negotiate(sampleRate)
	}

	api.openStreams.Add(1)
	return &dummyStream{
		api:             api,
		logger:          api.logger.With("device", config.Address),
		callback:        callback,
		sampleRate:      sampleRate,
		numChannels:     max(config.NumChannels, 1),
		framesPerPeriod: api.framesPerPeriod,
		period:          api.period,
		source:          api.source,
		startErr:        api.startErr,
		done:            make(chan struct{}),
	}, nil
}

func (api *DummyAPI) Close() error {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.closed = true
	return nil
}

// --------------------------------------------------------------------------------

type dummyStream struct {
	api    *DummyAPI
	logger *slog.Logger

	callback        DataCallback
	sampleRate      int
	numChannels     int
	framesPerPeriod int
	period          time.Duration
	source          SampleSource
	startErr        error

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func (s *dummyStream) Start() error {
	if s.startErr != nil {
		return fmt.Errorf("%w: %w", ErrDeviceStartFailed, s.startErr)
	}
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run()
	})
	return nil
}

func (s *dummyStream) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	samples := make([]float32, s.framesPerPeriod)
	raw := make([]byte, 4*s.framesPerPeriod*s.numChannels)
	phase := 0.0
	step := 2 * math.Pi * 440 / float64(max(s.sampleRate, 1))

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		if s.source != nil {
			s.source.Fill(samples)
		} else {
			for i := range samples {
				samples[i] = float32(0.25 * math.Sin(phase))
				phase += step
			}
		}
		for i, v := range samples {
			for c := 0; c < s.numChannels; c++ {
				binary.LittleEndian.PutUint32(raw[4*(i*s.numChannels+c):], math.Float32bits(v))
			}
		}
		s.callback(raw, uint32(s.framesPerPeriod))
	}
}

func (s *dummyStream) SampleRate() int {
	return s.sampleRate
}

// Close blocks until the callback goroutine has returned.
func (s *dummyStream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.api.openStreams.Add(-1)
		s.logger.Debug("stream closed")
	})
}
