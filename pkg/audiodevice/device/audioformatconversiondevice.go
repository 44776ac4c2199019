package device

import (
	"log/slog"
	"math"
	"sync"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/audiodevice"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/signal"
	"github.com/oov/audio/resampler"
)

const (
	resampleQuality = 10

	// Extra room in the output buffer; the resampler may emit a few samples
	// more than the rate ratio suggests while its filter fills up.
	resampleSlack = 64
)

// Resampler converts mono float32 audio between two sample rates.
//
// A Resampler holds filter state between calls, so consecutive calls must
// carry consecutive audio. It is not safe for concurrent use.
type Resampler struct {
	sourceRate int
	sinkRate   int
	r          *resampler.Resampler
	buf        []float32
}

// Create a new Resampler. If both rates are equal, Process copies its input.
func NewResampler(sourceRate int, sinkRate int) *Resampler {
	rs := &Resampler{
		sourceRate: sourceRate,
		sinkRate:   sinkRate,
	}
	if sourceRate != sinkRate {
		rs.r = resampler.New(1, sourceRate, sinkRate, resampleQuality)
	}
	return rs
}

func (rs *Resampler) SourceRate() int { return rs.sourceRate }
func (rs *Resampler) SinkRate() int   { return rs.sinkRate }

// Process resamples samples and returns a newly allocated slice.
func (rs *Resampler) Process(samples []float32) []float32 {
	if rs.r == nil {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	expected := int(math.Ceil(float64(len(samples))*float64(rs.sinkRate)/float64(rs.sourceRate))) + resampleSlack
	if cap(rs.buf) < expected {
		rs.buf = make([]float32, expected)
	}
	buf := rs.buf[:expected]

	out := make([]float32, 0, expected)
	for len(samples) > 0 {
		read, written := rs.r.ProcessFloat32(0, samples, buf)
		out = append(out, buf[:written]...)
		if read == 0 && written == 0 {
			break
		}
		samples = samples[read:]
	}
	return out
}

// --------------------------------------------------------------------------------
// AudioFormatConversionDevice

// Middle-man processing device to handle sample rate mismatches
// between the source packet stream and a sink that needs a fixed rate.
//
// Packets that already have the sink rate (or no known rate) pass through
// unchanged. Other packets are resampled and re-stamped with a domain packet
// at the sink rate. The resampler is rebuilt whenever the source rate changes,
// e.g. after the capturing device was reconfigured.
//
// This device is both a sink and a source!
type AudioFormatConversionDevice struct {
	logger *slog.Logger

	// The stream that data *arrives on*
	sourceChannel <-chan *signal.DataPacket

	// The stream that data *leaves on*
	sinkChannel chan *signal.DataPacket
	sinkRate    int

	resampler *Resampler

	shutdownOnce sync.Once
}

// Create a new AudioFormatConversionDevice emitting packets at sinkSampleRate.
//
// Note one must still call SetStream, passing in the source channel,
// and GetStream, to receive the sink channel, to use this device.
func NewAudioFormatConversionDevice(sinkSampleRate int) *AudioFormatConversionDevice {
	return &AudioFormatConversionDevice{
		logger:      slog.Default().With("component", "format conversion", "sinkRate", sinkSampleRate),
		sinkChannel: make(chan *signal.DataPacket),
		sinkRate:    sinkSampleRate,
	}
}

// --------------------------------------------------------------------------------
// AudioSourceDevice Interface

func (d *AudioFormatConversionDevice) GetStream() <-chan *signal.DataPacket {
	return d.sinkChannel
}

func (d *AudioFormatConversionDevice) Close() {
	d.shutdownOnce.Do(func() {
		close(d.sinkChannel)
	})
}

// --------------------------------------------------------------------------------
// AudioSinkDevice Interface

// Set the source channel of this audio device, i.e. where data comes from.
//
// When this stream is closed the sink stream is closed too.
func (d *AudioFormatConversionDevice) SetStream(sourceChannel <-chan *signal.DataPacket) {
	d.sourceChannel = sourceChannel
	go func() {
		for packet := range d.sourceChannel {
			d.sinkChannel <- d.convert(packet)
		}
		// This goroutine dies when sourceChannel is closed.
		d.Close()
	}()
}

func (d *AudioFormatConversionDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return audiodevice.DeviceProperties{SampleRate: d.sinkRate, NumChannels: 1}
}

func (d *AudioFormatConversionDevice) convert(packet *signal.DataPacket) *signal.DataPacket {
	sourceRate := packet.SampleRate()
	if sourceRate <= 0 || sourceRate == d.sinkRate {
		return packet
	}

	if d.resampler == nil || d.resampler.SourceRate() != sourceRate {
		d.logger.Debug("source rate changed, rebuilding resampler", "sourceRate", sourceRate)
		d.resampler = NewResampler(sourceRate, d.sinkRate)
	}

	samples := d.resampler.Process(packet.Samples)

	domainDescriptor := &signal.DataDescriptor{
		Name:           "Time",
		SampleType:     signal.SampleTypeInt64,
		TickResolution: signal.Ratio{Num: 1, Den: int64(d.sinkRate)},
		Rule:           &signal.LinearRule{Delta: 1, Start: 0},
		Unit:           signal.SecondsUnit,
	}
	var offset int64
	if packet.Domain != nil {
		offset = packet.Domain.Offset * int64(d.sinkRate) / int64(sourceRate)
	}
	domain := signal.NewDataPacket(domainDescriptor, len(samples), offset)
	return signal.NewDataPacketWithDomain(domain, packet.Descriptor, samples)
}
