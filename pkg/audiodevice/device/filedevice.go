package device

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/audiodevice"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/signal"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

const maxInt16 = float32(math.MaxInt16)

// --------------------------------------------------------------------------------
// WAVSampleGenerator

// WAVSampleGenerator hands out the samples of a .WAV file in a loop.
// Multi-channel files are mixed down to mono.
//
// Useful to feed a simulated capture backend with recorded audio.
type WAVSampleGenerator struct {
	logger     *slog.Logger
	sampleRate int

	mu       sync.Mutex
	samples  []float32
	position int
}

// Load a .WAV file (on the audioFilePath) into a new WAVSampleGenerator.
func NewWAVSampleGenerator(audioFilePath string) (*WAVSampleGenerator, error) {
	logger := slog.Default().With(
		"wav generator uuid", uuid.New(),
	)

	f, err := os.Open(audioFilePath)
	if err != nil {
		logger.Error(
			"could not open audio file",
			"audioFile", audioFilePath,
			"err", err,
		)
		return nil, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		logger.Error(
			"could not decode audio file",
			"audioFile", audioFilePath,
			"err", decoder.Err(),
		)
		return nil, errors.New("error while decoding audio file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		logger.Error(
			"could not get full PCM buffer from audio file",
			"audioFile", audioFilePath,
			"err", err,
		)
		return nil, err
	}

	numChannels := int(decoder.NumChans)
	if numChannels <= 0 || len(buf.Data) < numChannels {
		return nil, errors.New("audio file holds no samples")
	}

	scale := float32(math.Pow(2, float64(decoder.BitDepth)-1))
	samples := make([]float32, len(buf.Data)/numChannels)
	for i := range samples {
		var sum float32
		for c := 0; c < numChannels; c++ {
			sum += float32(buf.Data[i*numChannels+c])
		}
		samples[i] = sum / float32(numChannels) / scale
	}

	logger.Debug(
		"loaded audio file",
		"audioFile", audioFilePath,
		"sampleRate", decoder.SampleRate,
		"channels", decoder.NumChans,
		"samples", len(samples),
	)

	return &WAVSampleGenerator{
		logger:     logger,
		sampleRate: int(decoder.SampleRate),
		samples:    samples,
	}, nil
}

// Fill dst with the next samples of the file, wrapping around at its end.
func (g *WAVSampleGenerator) Fill(dst []float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range dst {
		dst[i] = g.samples[g.position]
		g.position = (g.position + 1) % len(g.samples)
	}
}

// The sample rate of the loaded file.
func (g *WAVSampleGenerator) SampleRate() int {
	return g.sampleRate
}

// --------------------------------------------------------------------------------
// FileAudioOutputDevice

// Define an AudioSinkDevice that reads packets from a channel and writes them
// to a 16 bit mono .WAV file.
//
// The file sample rate is fixed when the device is created, or taken from the
// first packet if it was created with a sample rate of 0. Packets captured at
// another rate are resampled to the file rate.
//
// Note the resulting file is only valid once the input channel is closed.
type FileAudioOutputDevice struct {
	ctx           context.Context
	ctxCancelFunc context.CancelFunc
	logger        *slog.Logger
	uuid          uuid.UUID

	audioFilePath string
	fileHandle    *os.File
	encoder       *wav.Encoder
	sampleRate    int
	resampler     *Resampler

	samplesWritten int
}

// Create a new FileAudioOutputDevice that writes incoming packets to a .WAV file at the specified path.
func NewFileAudioOutputDevice(
	audioFilePath string,
	sampleRate int,
) (*FileAudioOutputDevice, error) {
	uuid := uuid.New()
	logger := slog.Default().With(
		"file output device uuid", uuid,
	)

	f, err := os.Create(audioFilePath)
	if err != nil {
		logger.Error(
			"could not create audio file",
			"audioFile", audioFilePath,
			"err", err,
		)
		return nil, err
	}

	ctx, ctxCancelFunc := context.WithCancel(context.Background())
	d := &FileAudioOutputDevice{
		ctx:           ctx,
		ctxCancelFunc: ctxCancelFunc,
		logger:        logger,
		uuid:          uuid,
		audioFilePath: audioFilePath,
		fileHandle:    f,
	}
	if sampleRate > 0 {
		d.openEncoder(sampleRate)
	}
	return d, nil
}

func (d *FileAudioOutputDevice) openEncoder(sampleRate int) {
	d.sampleRate = sampleRate
	d.encoder = wav.NewEncoder(d.fileHandle, sampleRate, 16, 1, 1)
	d.logger.Debug(
		"opened wav encoder",
		"audioFile", d.audioFilePath,
		"sampleRate", sampleRate,
	)
}

// Wait for this device to be closed
// Blocks until the close function has finished
func (d *FileAudioOutputDevice) WaitForClose() {
	<-d.ctx.Done()
}

func (d *FileAudioOutputDevice) close() {
	if d.encoder == nil {
		// No packet arrived and no rate was given; write an empty file at the
		// default rate so the result is still a valid .WAV file.
		d.openEncoder(44100)
	}
	if err := d.encoder.Close(); err != nil {
		d.logger.Error("error while finalising wav file", "err", err)
	}
	d.fileHandle.Sync()
	d.fileHandle.Close()
	d.logger.Debug("closed", "samplesWritten", d.samplesWritten)
	d.ctxCancelFunc()
}

// Set the source channel of this audio device, i.e. where data comes from.
//
// When this stream is closed the file is finalised and closed.
func (d *FileAudioOutputDevice) SetStream(sourceChannel <-chan *signal.DataPacket) {
	go func() {
		for packet := range sourceChannel {
			if err := d.write(packet); err != nil {
				d.logger.Error("error while writing packet to file", "err", err)
				continue
			}
		}
		d.logger.Debug("source stream closed")
		d.close()
	}()
}

func (d *FileAudioOutputDevice) write(packet *signal.DataPacket) error {
	packetRate := packet.SampleRate()
	if d.encoder == nil {
		if packetRate <= 0 {
			return errors.New("first packet has no sample rate")
		}
		d.openEncoder(packetRate)
	}

	samples := packet.Samples
	if packetRate > 0 && packetRate != d.sampleRate {
		if d.resampler == nil || d.resampler.SourceRate() != packetRate {
			d.logger.Info("packet rate differs from file rate, resampling", "packetRate", packetRate, "fileRate", d.sampleRate)
			d.resampler = NewResampler(packetRate, d.sampleRate)
		}
		samples = d.resampler.Process(samples)
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			SampleRate:  d.sampleRate,
			NumChannels: 1,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, sample := range samples {
		sample = max(-1, min(1, sample))
		buf.Data[i] = int(sample * maxInt16)
	}

	if err := d.encoder.Write(buf); err != nil {
		return err
	}
	d.samplesWritten += len(samples)
	return nil
}

func (d *FileAudioOutputDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return audiodevice.DeviceProperties{
		SampleRate:  d.sampleRate,
		NumChannels: 1,
	}
}
