package device

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/signal"
)

// An AudioSourceDevice that will never produce a packet.
//
// A minimal example of the architecture of an AudioSourceDevice, useful in testing.
type DummyAudioSourceDevice struct {
	shutdownOnce sync.Once
	sinkStream   chan *signal.DataPacket
}

func NewDummyAudioSourceDevice() *DummyAudioSourceDevice {
	return &DummyAudioSourceDevice{
		sinkStream: make(chan *signal.DataPacket),
	}
}

func (d *DummyAudioSourceDevice) Close() {
	d.shutdownOnce.Do(func() {
		close(d.sinkStream)
	})
}

func (d *DummyAudioSourceDevice) GetStream() <-chan *signal.DataPacket {
	return d.sinkStream
}

// An AudioSinkDevice that consumes all packets and only counts them.
//
// A minimal example of the architecture of an AudioSinkDevice, useful in testing
// and to keep a capture running without any consumer.
type DummyAudioSinkDevice struct {
	ctx           context.Context
	ctxCancelFunc context.CancelFunc

	packets atomic.Int64
	samples atomic.Int64
}

func NewDummyAudioSinkDevice() *DummyAudioSinkDevice {
	ctx, cancel := context.WithCancel(context.Background())
	return &DummyAudioSinkDevice{
		ctx:           ctx,
		ctxCancelFunc: cancel,
	}
}

func (d *DummyAudioSinkDevice) SetStream(sourceStream <-chan *signal.DataPacket) {
	go func() {
		defer d.ctxCancelFunc()
		for packet := range sourceStream {
			d.packets.Add(1)
			d.samples.Add(int64(packet.SampleCount))
		}
	}()
}

func (d *DummyAudioSinkDevice) WaitForClose() {
	<-d.ctx.Done()
}

// Number of packets consumed so far.
func (d *DummyAudioSinkDevice) Packets() int64 {
	return d.packets.Load()
}

// Number of samples consumed so far.
func (d *DummyAudioSinkDevice) Samples() int64 {
	return d.samples.Load()
}
