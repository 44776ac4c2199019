package address

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	dsound := DSoundAddress{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0xff}

	tests := []struct {
		name     string
		address  Address
		expected string
	}{
		{"wasapi", WASAPIAddress("{0.0.1.00000000}.{6b0a5c8e-7f21-4a4d-b8a0-2c3d4e5f6a7b}"), "miniaudio://wasapi/{0.0.1.00000000}.{6b0a5c8e-7f21-4a4d-b8a0-2c3d4e5f6a7b}"},
		{"wasapi non-ascii", WASAPIAddress("Mikrofon (Gerät) \U0001F3A4"), "miniaudio://wasapi/Mikrofon (Gerät) \U0001F3A4"},
		{"dsound", dsound, "miniaudio://dsound/deadbeef000102030405060708090aff"},
		{"winmm", WinMMAddress(0x1f), "miniaudio://winmm/1f"},
		{"winmm zero", WinMMAddress(0), "miniaudio://winmm/0"},
		{"coreaudio", CoreAudioAddress("BuiltInMicrophoneDevice"), "miniaudio://coreaudio/BuiltInMicrophoneDevice"},
		{"alsa", ALSAAddress("hw:1,0"), "miniaudio://alsa/hw:1,0"},
		{"alsa with slash", ALSAAddress("plughw:CARD=USB/DEV=0"), "miniaudio://alsa/plughw:CARD=USB/DEV=0"},
		{"pulseaudio", PulseAudioAddress("alsa_input.pci-0000_00_1f.3.analog-stereo"), "miniaudio://pulseaudio/alsa_input.pci-0000_00_1f.3.analog-stereo"},
		{"jack", JACKAddress(0xffffffff), "miniaudio://jack/ffffffff"},
		{"sndio", mustBare(t, BackendSndio), "miniaudio://sndio/"},
		{"audio4", mustBare(t, BackendAudio4), "miniaudio://audio4/"},
		{"oss", mustBare(t, BackendOSS), "miniaudio://oss/"},
		{"aaudio", mustBare(t, BackendAAudio), "miniaudio://aaudio/"},
		{"opensl", mustBare(t, BackendOpenSL), "miniaudio://opensl/"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			connStr := tt.address.String()
			assert.Equal(t, tt.expected, connStr)

			decoded, err := Decode(connStr)
			require.NoError(t, err)
			assert.Equal(t, tt.address, decoded)
			assert.Equal(t, tt.address.Backend(), decoded.Backend())
		})
	}
}

func TestNativeRoundTrip(t *testing.T) {
	addresses := []Address{
		WASAPIAddress("{0.0.1.00000000}.{abc}"),
		WASAPIAddress("Gerät"),
		DSoundAddress{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		WinMMAddress(7),
		JACKAddress(0xabcdef01),
		CoreAudioAddress("AppleUSBAudioEngine:Foo"),
		ALSAAddress("default"),
		PulseAudioAddress("monitor"),
		mustBare(t, BackendOSS),
	}

	for _, a := range addresses {
		a := a
		t.Run(a.String(), func(t *testing.T) {
			native := NativeID(a)
			assert.Equal(t, a, FromNativeID(a.Backend(), native[:]))
			assert.Equal(t, a.String(), Encode(a.Backend(), native[:]))
		})
	}
}

func TestNativeLayout(t *testing.T) {
	native := NativeID(WASAPIAddress("ab"))
	assert.Equal(t, []byte{'a', 0, 'b', 0, 0, 0}, native[:6])

	native = NativeID(WinMMAddress(0x01020304))
	assert.Equal(t, []byte{4, 3, 2, 1}, native[:4])

	native = NativeID(ALSAAddress("hw:0"))
	assert.Equal(t, []byte("hw:0\x00"), native[:5])
}

func TestEncodeUnknownBackend(t *testing.T) {
	connStr := Encode(Backend(99), []byte{1, 2, 3})
	assert.Equal(t, "miniaudio://unknown/", connStr)

	_, err := Decode(connStr)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name    string
		connStr string
	}{
		{"empty", ""},
		{"garbage", "fdfdfdfdde"},
		{"other scheme", "daqref://devicett3axxr1"},
		{"prefix only", "miniaudio://"},
		{"no separator", "miniaudio://alsa"},
		{"unrecognized backend", "miniaudio://asio/1"},
		{"uppercase scheme", "MINIAUDIO://alsa/hw:0"},
		{"dsound too short", "miniaudio://dsound/deadbeef"},
		{"dsound too long", "miniaudio://dsound/deadbeef000102030405060708090aff00"},
		{"dsound not hex", "miniaudio://dsound/zzadbeef000102030405060708090aff"},
		{"winmm empty", "miniaudio://winmm/"},
		{"winmm not hex", "miniaudio://winmm/xyz"},
		{"winmm overflow", "miniaudio://winmm/100000000"},
		{"jack signed", "miniaudio://jack/-1"},
		{"alsa too long", "miniaudio://alsa/" + strings.Repeat("a", 256)},
		{"pulseaudio NUL", "miniaudio://pulseaudio/a\x00b"},
		{"wasapi too long", "miniaudio://wasapi/" + strings.Repeat("x", 64)},
		{"wasapi invalid utf8", "miniaudio://wasapi/\xff\xfe"},
		{"sndio with payload", "miniaudio://sndio/rsnd/0"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			a, err := Decode(tt.connStr)
			assert.ErrorIs(t, err, ErrInvalidAddress)
			assert.Nil(t, a)
		})
	}
}

func TestDecodeBoundaries(t *testing.T) {
	a, err := Decode("miniaudio://alsa/" + strings.Repeat("a", 255))
	require.NoError(t, err)
	assert.Len(t, string(a.(ALSAAddress)), 255)

	_, err = Decode("miniaudio://wasapi/" + strings.Repeat("x", 63))
	require.NoError(t, err)

	a, err = Decode("miniaudio://dsound/DEADBEEF000102030405060708090AFF")
	require.NoError(t, err)
	assert.Equal(t, "miniaudio://dsound/deadbeef000102030405060708090aff", a.String())
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, HasPrefix("miniaudio://wasapi/...."))
	assert.False(t, HasPrefix(""))
	assert.False(t, HasPrefix("drfrfgt"))
	assert.False(t, HasPrefix(" miniaudio://alsa/"))
}

func TestBackendNames(t *testing.T) {
	for backend, name := range backendNames {
		parsed, err := ParseBackend(name)
		require.NoError(t, err)
		assert.Equal(t, backend, parsed)
		assert.Equal(t, name, backend.String())
	}
	assert.Equal(t, "unknown", BackendUnknown.String())

	_, err := NewBareAddress(BackendALSA)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func mustBare(t *testing.T, backend Backend) BareAddress {
	t.Helper()
	a, err := NewBareAddress(backend)
	require.NoError(t, err)
	return a
}
