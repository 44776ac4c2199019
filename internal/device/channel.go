package device

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/signal"
)

// AudioChannel is the single mono channel of a capture device.
//
// It implements audiodevice.AudioSourceDevice: value packets (each carrying
// its domain packet) arrive on the stream returned by GetStream. The stream
// is closed when the owning device is disposed.
type AudioChannel struct {
	logger      *slog.Logger
	localID     string
	valueSignal *signal.Signal

	stream       chan *signal.DataPacket
	shutdownOnce sync.Once
}

func newAudioChannel(logger *slog.Logger, timeSignal *signal.Signal, bufferSize int) *AudioChannel {
	valueSignal := signal.NewSignal("audio")
	valueSignal.SetDescriptor(audioDescriptor())
	valueSignal.SetDomainSignal(timeSignal)

	return &AudioChannel{
		logger:      logger.With("channel", "audio"),
		localID:     "audio",
		valueSignal: valueSignal,
		stream:      make(chan *signal.DataPacket, bufferSize),
	}
}

func (c *AudioChannel) LocalID() string {
	return c.localID
}

// The value signal of this channel. Its domain signal is the device time signal.
func (c *AudioChannel) Signal() *signal.Signal {
	return c.valueSignal
}

func (c *AudioChannel) GetStream() <-chan *signal.DataPacket {
	return c.stream
}

func (c *AudioChannel) Close() {
	c.shutdownOnce.Do(func() {
		close(c.stream)
		c.logger.Debug("channel stream closed")
	})
}

// Build a value packet from raw little-endian float32 frames and forward it
// without blocking.
func (c *AudioChannel) addData(domain *signal.DataPacket, input []byte, frameCount uint32) error {
	need := int(frameCount) * numChannels * 4
	if len(input) < need {
		return fmt.Errorf("%w: %d bytes for %d frames", ErrShortBuffer, len(input), frameCount)
	}

	samples := make([]float32, frameCount)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(input[4*i:]))
	}

	packet := signal.NewDataPacketWithDomain(domain, c.valueSignal.Descriptor(), samples)
	select {
	case c.stream <- packet:
		return nil
	default:
		return ErrStreamFull
	}
}
