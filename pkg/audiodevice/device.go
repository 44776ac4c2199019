package audiodevice

import "github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/signal"

type DeviceProperties struct {
	SampleRate  int
	NumChannels int
}

// Interface for packet source devices, e.g. a capture channel
//
// Source devices need only define some way to get data out of the device,
// which returns a channel (stream) of data packets
type AudioSourceDevice interface {
	// Get the stream of this audio device.
	//
	// Value packets (float32 samples, each referencing its domain packet)
	// will arrive on the returned channel.
	GetStream() <-chan *signal.DataPacket

	// Meaningfully close the AudioSourceDevice, including any cleanup of
	// memory and closing of channels.
	//
	// It is assumed that once closed, this device will transmit no more information.
	Close()
}

// Interface for packet sink devices, e.g. a WAV writer or a network publisher
//
// Sink devices need only define some way to consume data,
// taken as a channel (stream) of data packets
type AudioSinkDevice interface {
	// Set the source stream of this audio device.
	//
	// When this stream is closed, it is assumed the device will be cleaned up
	// (files finalised, connections flushed, etc)
	SetStream(sourceStream <-chan *signal.DataPacket)

	// Block until the sink has consumed its stream and cleaned up.
	WaitForClose()
}
