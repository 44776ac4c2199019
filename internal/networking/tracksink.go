package networking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/audiodevice/device"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/signal"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

var errUnsupportedCodec = errors.New("codec is not supported by the track sink")

// SampleWriter is satisfied by *webrtc.TrackLocalStaticSample.
type SampleWriter interface {
	WriteSample(media.Sample) error
}

// Create a local track for one of the codecs in CodecMap.
func NewAudioTrack(codecName string, streamID string) (*webrtc.TrackLocalStaticSample, webrtc.RTPCodecCapability, error) {
	codec, ok := CodecMap[codecName]
	if !ok {
		return nil, webrtc.RTPCodecCapability{}, fmt.Errorf("no codec with associated string %s", codecName)
	}
	track, err := webrtc.NewTrackLocalStaticSample(codec, "audio", streamID)
	if err != nil {
		return nil, webrtc.RTPCodecCapability{}, err
	}
	return track, codec, nil
}

// TrackSink is an AudioSinkDevice that sends its packets on a WebRTC track.
//
// Packets are resampled to 8 kHz and G.711 encoded; every packet becomes one
// media sample whose duration follows from its sample count.
type TrackSink struct {
	logger *slog.Logger
	track  SampleWriter
	encode func(int16) byte

	ctx           context.Context
	ctxCancelFunc context.CancelFunc
}

func NewTrackSink(track SampleWriter, codec webrtc.RTPCodecCapability, logger *slog.Logger) (*TrackSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var encode func(int16) byte
	switch codec.MimeType {
	case webrtc.MimeTypePCMU:
		encode = linearToMulaw
	case webrtc.MimeTypePCMA:
		encode = linearToAlaw
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedCodec, codec.MimeType)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &TrackSink{
		logger: logger.With(
			"track sink uuid", uuid.New(),
			"codec", codec.MimeType,
		),
		track:         track,
		encode:        encode,
		ctx:           ctx,
		ctxCancelFunc: cancel,
	}, nil
}

func (s *TrackSink) SetStream(sourceStream <-chan *signal.DataPacket) {
	conversion := device.NewAudioFormatConversionDevice(g711SampleRate)
	conversion.SetStream(sourceStream)

	go func() {
		defer s.ctxCancelFunc()
		for packet := range conversion.GetStream() {
			if len(packet.Samples) == 0 {
				continue
			}
			err := s.track.WriteSample(media.Sample{
				Data:     s.encodePacket(packet),
				Duration: time.Duration(len(packet.Samples)) * time.Second / g711SampleRate,
			})
			if err != nil {
				s.logger.Error("error writing audio sample", "err", err)
			}
		}
		s.logger.Debug("source stream closed")
	}()
}

func (s *TrackSink) encodePacket(packet *signal.DataPacket) []byte {
	data := make([]byte, len(packet.Samples))
	for i, sample := range packet.Samples {
		sample = max(-1, min(1, sample))
		data[i] = s.encode(int16(sample * math.MaxInt16))
	}
	return data
}

func (s *TrackSink) WaitForClose() {
	<-s.ctx.Done()
}
