package networking

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/audiodevice"
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/signal"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ audiodevice.AudioSinkDevice = (*TrackSink)(nil)
	_ SampleWriter                = (*webrtc.TrackLocalStaticSample)(nil)
)

func TestG711(t *testing.T) {
	assert.Equal(t, byte(0xFF), linearToMulaw(0))
	assert.Equal(t, int16(0), mulawToLinear(0xFF))
	assert.Equal(t, byte(0xD5), linearToAlaw(0))

	for _, sample := range []int16{-32000, -12345, -1000, 1000, 4096, 20000, 32000} {
		assert.InEpsilon(t, float64(sample), float64(mulawToLinear(linearToMulaw(sample))), 0.04, "mulaw %d", sample)
		assert.InEpsilon(t, float64(sample), float64(alawToLinear(linearToAlaw(sample))), 0.04, "alaw %d", sample)
	}
}

func TestCodecMap(t *testing.T) {
	codec, ok := CodecMap["CodecPCMU8000Mono"]
	require.True(t, ok)
	assert.Equal(t, webrtc.MimeTypePCMU, codec.MimeType)
	assert.Equal(t, uint32(8000), codec.ClockRate)

	_, _, err := NewAudioTrack("CodecOpus48000Stereo", "capture")
	assert.Error(t, err)

	track, _, err := NewAudioTrack("CodecPCMU8000Mono", "capture")
	require.NoError(t, err)
	assert.Equal(t, "capture", track.StreamID())
}

type recordingWriter struct {
	mu      sync.Mutex
	samples []media.Sample
	err     error
}

func (w *recordingWriter) WriteSample(sample media.Sample) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, sample)
	return w.err
}

func packetAt(sampleRate int, n int, value float32) *signal.DataPacket {
	domain := signal.NewDataPacket(&signal.DataDescriptor{
		Name:           "Time",
		SampleType:     signal.SampleTypeInt64,
		TickResolution: signal.Ratio{Num: 1, Den: int64(sampleRate)},
		Rule:           &signal.LinearRule{Delta: 1},
		Unit:           signal.SecondsUnit,
	}, n, 0)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = value
	}
	return signal.NewDataPacketWithDomain(domain, &signal.DataDescriptor{Name: "Audio", SampleType: signal.SampleTypeFloat32}, samples)
}

func TestTrackSink(t *testing.T) {
	writer := &recordingWriter{}
	sink, err := NewTrackSink(writer, CodecMap["CodecPCMU8000Mono"], nil)
	require.NoError(t, err)

	stream := make(chan *signal.DataPacket, 2)
	stream <- packetAt(8000, 160, 0)
	stream <- packetAt(16000, 3200, 0.5)
	close(stream)

	sink.SetStream(stream)
	sink.WaitForClose()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	require.Len(t, writer.samples, 2)

	assert.Len(t, writer.samples[0].Data, 160)
	assert.Equal(t, 20*time.Millisecond, writer.samples[0].Duration)
	assert.Equal(t, byte(0xFF), writer.samples[0].Data[0])

	second := writer.samples[1]
	assert.InDelta(t, 1600, len(second.Data), 100)
	assert.Equal(t, time.Duration(len(second.Data))*time.Second/8000, second.Duration)
}

func TestTrackSinkUnsupportedCodec(t *testing.T) {
	_, err := NewTrackSink(&recordingWriter{}, webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, nil)
	assert.ErrorIs(t, err, errUnsupportedCodec)
}

func TestTrackSinkKeepsGoingOnWriteError(t *testing.T) {
	writer := &recordingWriter{err: errors.New("closed pipe")}
	sink, err := NewTrackSink(writer, CodecMap["CodecPCMA8000Mono"], nil)
	require.NoError(t, err)

	stream := make(chan *signal.DataPacket, 2)
	stream <- packetAt(8000, 80, 0.1)
	stream <- packetAt(8000, 80, 0.1)
	close(stream)
	sink.SetStream(stream)
	sink.WaitForClose()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	assert.Len(t, writer.samples, 2)
}

func TestMonitorServer(t *testing.T) {
	track, _, err := NewAudioTrack("CodecPCMU8000Mono", "capture")
	require.NoError(t, err)

	server := NewMonitorServer(webrtc.Configuration{}, track, nil)
	defer server.Close()
	httpServer := httptest.NewServer(server.Handler())
	defer httpServer.Close()

	listener, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	defer listener.Close()

	_, err = listener.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	require.NoError(t, err)

	offer, err := listener.CreateOffer(nil)
	require.NoError(t, err)
	gatherComplete := webrtc.GatheringCompletePromise(listener)
	require.NoError(t, listener.SetLocalDescription(offer))
	<-gatherComplete

	offerJSON, err := json.Marshal(listener.LocalDescription())
	require.NoError(t, err)

	resp, err := http.Post(httpServer.URL+"/monitor", "application/json", bytes.NewReader(offerJSON))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var answer webrtc.SessionDescription
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&answer))
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)
	assert.Contains(t, answer.SDP, "PCMU")
	require.NoError(t, listener.SetRemoteDescription(answer))
	assert.Equal(t, 1, server.NumListeners())

	server.Close()
	assert.Equal(t, 0, server.NumListeners())
}

func TestMonitorServerRejectsGarbage(t *testing.T) {
	track, _, err := NewAudioTrack("CodecPCMU8000Mono", "capture")
	require.NoError(t, err)
	server := NewMonitorServer(webrtc.Configuration{}, track, nil)

	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/monitor", bytes.NewBufferString("not json")))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/monitor", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}
