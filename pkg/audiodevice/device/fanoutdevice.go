package device

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/signal"
)

// A sink that has not accepted a packet for this long is removed.
const DefaultSinkTimeout = 5 * time.Second

// --------------------------------------------------------------------------------
// Fan Out Device (One to Many)

// A FanOutDevice is both an AudioSourceDevice and an AudioSinkDevice.
//
// Unlike other AudioSourceDevices, a call to GetStream does *not* return the
// singular output stream, but instead creates a *new* output stream unique to that call.
// Once added, there is no manual way to remove a sink stream.
// A sink stream is automatically removed (and closed) if it does not accept a packet
// for the sink timeout.
//
// The input stream (the sourceStream) is listened to and packets forwarded to
// all sink streams. Packets are immutable, so sinks share them.
//
// Adding and removing sink streams is concurrency safe.
type FanOutDevice struct {
	logger      *slog.Logger
	bufferSize  int
	sinkTimeout time.Duration

	sourceStream <-chan *signal.DataPacket

	sinksMutex sync.Mutex
	sinks      []*fanOutSink
	closed     bool

	done chan struct{}
}

type fanOutSink struct {
	stream       chan *signal.DataPacket
	lastAccepted time.Time
}

// Create a new FanOutDevice.
// bufferSize is the capacity of every sink stream returned by GetStream.
func NewFanOutDevice(bufferSize int, sinkTimeout time.Duration) *FanOutDevice {
	if sinkTimeout <= 0 {
		sinkTimeout = DefaultSinkTimeout
	}
	return &FanOutDevice{
		logger:      slog.Default().With("component", "fanout"),
		bufferSize:  bufferSize,
		sinkTimeout: sinkTimeout,
		sinks:       make([]*fanOutSink, 0),
		done:        make(chan struct{}),
	}
}

// Set the stream of this device to copy packets from.
// This method should be called only once, and once the sourceStream is closed
// then all sink streams are closed.
func (d *FanOutDevice) SetStream(sourceStream <-chan *signal.DataPacket) {
	d.sourceStream = sourceStream

	go func() {
		for packet := range d.sourceStream {
			d.forward(packet)
		}
		// When sourceStream closes, close this device
		d.Close()
	}()
}

func (d *FanOutDevice) forward(packet *signal.DataPacket) {
	d.sinksMutex.Lock()
	defer d.sinksMutex.Unlock()

	now := time.Now()
	kept := d.sinks[:0]
	for _, sink := range d.sinks {
		select {
		case sink.stream <- packet:
			sink.lastAccepted = now
		default:
			if now.Sub(sink.lastAccepted) > d.sinkTimeout {
				d.logger.Warn("sink stopped accepting packets, removing it", "timeout", d.sinkTimeout)
				close(sink.stream)
				continue
			}
			d.logger.Debug("sink busy, dropping packet", "offset", packet.Domain.Offset)
		}
		kept = append(kept, sink)
	}
	d.sinks = kept
}

// Get a new stream from this fan out device.
//
// Be sure to consume the returned stream; see FanOutDevice.
// Streams requested after the device is closed are returned closed.
func (d *FanOutDevice) GetStream() <-chan *signal.DataPacket {
	d.sinksMutex.Lock()
	defer d.sinksMutex.Unlock()

	stream := make(chan *signal.DataPacket, d.bufferSize)
	if d.closed {
		close(stream)
		return stream
	}

	d.sinks = append(d.sinks, &fanOutSink{
		stream:       stream,
		lastAccepted: time.Now(),
	})
	return stream
}

// Number of sink streams currently attached.
func (d *FanOutDevice) NumSinks() int {
	d.sinksMutex.Lock()
	defer d.sinksMutex.Unlock()
	return len(d.sinks)
}

func (d *FanOutDevice) Close() {
	d.sinksMutex.Lock()
	defer d.sinksMutex.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, sink := range d.sinks {
		close(sink.stream)
	}
	d.sinks = d.sinks[:0]
	close(d.done)
}

// Block until the source stream has closed and every sink stream was closed.
func (d *FanOutDevice) WaitForClose() {
	<-d.done
}
