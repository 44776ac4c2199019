// Package address maps native miniaudio device identifiers to canonical,
// human-readable connection strings and back.
//
// A connection string has the form
//
//	miniaudio://<backend>/<payload>
//
// where the payload encoding depends on the backend. Some backends carry a
// fixed-size byte array (hex encoded), some an integer (hex), some a native
// string copied verbatim and some carry no payload at all.
package address

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Prefix is the scheme every connection string handled by the bridge starts with.
// The scheme name is kept for compatibility with existing connection strings.
const Prefix = "miniaudio://"

var (
	ErrInvalidAddress = errors.New("invalid device address")
)

// Backend identifies a native audio subsystem.
type Backend int

const (
	BackendUnknown Backend = iota
	BackendWASAPI
	BackendDSound
	BackendWinMM
	BackendCoreAudio
	BackendSndio
	BackendAudio4
	BackendOSS
	BackendPulseAudio
	BackendALSA
	BackendJACK
	BackendAAudio
	BackendOpenSL
)

var backendNames = map[Backend]string{
	BackendWASAPI:     "wasapi",
	BackendDSound:     "dsound",
	BackendWinMM:      "winmm",
	BackendCoreAudio:  "coreaudio",
	BackendSndio:      "sndio",
	BackendAudio4:     "audio4",
	BackendOSS:        "oss",
	BackendPulseAudio: "pulseaudio",
	BackendALSA:       "alsa",
	BackendJACK:       "jack",
	BackendAAudio:     "aaudio",
	BackendOpenSL:     "opensl",
}

// The backend segment as it appears in a connection string.
// Unrecognized backends render as "unknown".
func (b Backend) String() string {
	if name, ok := backendNames[b]; ok {
		return name
	}
	return "unknown"
}

// ParseBackend returns the Backend named by the given connection string segment.
func ParseBackend(name string) (Backend, error) {
	for backend, backendName := range backendNames {
		if backendName == name {
			return backend, nil
		}
	}
	return BackendUnknown, fmt.Errorf("%w: unrecognized backend %q", ErrInvalidAddress, name)
}

// --------------------------------------------------------------------------------
// Address variants

// Address is a backend-tagged device identifier.
//
// The set of implementations is closed: each variant carries only the
// identifier layout its backend needs. Addresses are immutable.
type Address interface {
	Backend() Backend

	// The canonical connection string of this address.
	String() string

	payload() string
	putNative(dst []byte)
}

// WASAPIAddress is a WASAPI endpoint id. The native id is a wide-character
// string; it is held here as UTF-8.
type WASAPIAddress string

// DSoundAddress is a DirectSound device GUID.
type DSoundAddress [16]byte

// WinMMAddress is a WinMM device index.
type WinMMAddress uint32

// CoreAudioAddress is a CoreAudio device UID.
type CoreAudioAddress string

// ALSAAddress is an ALSA device name, e.g. "hw:0,0".
type ALSAAddress string

// PulseAudioAddress is a PulseAudio source name.
type PulseAudioAddress string

// JACKAddress is a JACK client index.
type JACKAddress uint32

// BareAddress addresses the device of a backend whose connection strings
// carry no payload (sndio, audio4, oss, aaudio, opensl).
type BareAddress struct {
	backend Backend
}

// UnknownAddress is produced for identifiers of unrecognized backends.
// Its connection string cannot be decoded.
type UnknownAddress struct{}

func (WASAPIAddress) Backend() Backend     { return BackendWASAPI }
func (DSoundAddress) Backend() Backend     { return BackendDSound }
func (WinMMAddress) Backend() Backend      { return BackendWinMM }
func (CoreAudioAddress) Backend() Backend  { return BackendCoreAudio }
func (ALSAAddress) Backend() Backend       { return BackendALSA }
func (PulseAudioAddress) Backend() Backend { return BackendPulseAudio }
func (JACKAddress) Backend() Backend       { return BackendJACK }
func (a BareAddress) Backend() Backend     { return a.backend }
func (UnknownAddress) Backend() Backend    { return BackendUnknown }

func (a WASAPIAddress) payload() string     { return string(a) }
func (a DSoundAddress) payload() string     { return hex.EncodeToString(a[:]) }
func (a WinMMAddress) payload() string      { return strconv.FormatUint(uint64(a), 16) }
func (a CoreAudioAddress) payload() string  { return string(a) }
func (a ALSAAddress) payload() string       { return string(a) }
func (a PulseAudioAddress) payload() string { return string(a) }
func (a JACKAddress) payload() string       { return strconv.FormatUint(uint64(a), 16) }
func (BareAddress) payload() string         { return "" }
func (UnknownAddress) payload() string      { return "" }

func (a WASAPIAddress) String() string     { return encode(a) }
func (a DSoundAddress) String() string     { return encode(a) }
func (a WinMMAddress) String() string      { return encode(a) }
func (a CoreAudioAddress) String() string  { return encode(a) }
func (a ALSAAddress) String() string       { return encode(a) }
func (a PulseAudioAddress) String() string { return encode(a) }
func (a JACKAddress) String() string       { return encode(a) }
func (a BareAddress) String() string       { return encode(a) }
func (a UnknownAddress) String() string    { return encode(a) }

// NewBareAddress returns the address of a payload-less backend.
// It fails for backends whose connection strings require a payload.
func NewBareAddress(backend Backend) (BareAddress, error) {
	switch backend {
	case BackendSndio, BackendAudio4, BackendOSS, BackendAAudio, BackendOpenSL:
		return BareAddress{backend: backend}, nil
	}
	return BareAddress{}, fmt.Errorf("%w: backend %s requires a payload", ErrInvalidAddress, backend)
}

func encode(a Address) string {
	return Prefix + a.Backend().String() + "/" + a.payload()
}

// --------------------------------------------------------------------------------
// Codec

// Encode renders the connection string of a native device identifier
// reported by the given backend.
func Encode(backend Backend, nativeID []byte) string {
	return FromNativeID(backend, nativeID).String()
}

// HasPrefix reports whether s starts with the connection string scheme.
func HasPrefix(s string) bool {
	return strings.HasPrefix(s, Prefix)
}

// Decode parses a connection string.
//
// It fails with ErrInvalidAddress when the scheme prefix or the backend
// separator is missing, the backend is unrecognized, or the payload does not
// fit the backend's native identifier. Payloads are never truncated or padded.
func Decode(connectionString string) (Address, error) {
	if !HasPrefix(connectionString) {
		return nil, fmt.Errorf("%w: %q does not start with %q", ErrInvalidAddress, connectionString, Prefix)
	}

	backendWithID := connectionString[len(Prefix):]
	backendName, payload, found := strings.Cut(backendWithID, "/")
	if !found {
		return nil, fmt.Errorf("%w: %q has no backend separator", ErrInvalidAddress, connectionString)
	}

	backend, err := ParseBackend(backendName)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendWASAPI:
		if !utf8.ValidString(payload) {
			return nil, fmt.Errorf("%w: wasapi id is not valid UTF-8", ErrInvalidAddress)
		}
		if units := utf16Len(payload); units > wasapiIDUnits-1 {
			return nil, fmt.Errorf("%w: wasapi id is %d characters long (max %d)", ErrInvalidAddress, units, wasapiIDUnits-1)
		}
		return WASAPIAddress(payload), nil

	case BackendDSound:
		var id DSoundAddress
		if len(payload) != 2*len(id) {
			return nil, fmt.Errorf("%w: dsound id must be %d hex characters, got %d", ErrInvalidAddress, 2*len(id), len(payload))
		}
		if _, err := hex.Decode(id[:], []byte(payload)); err != nil {
			return nil, fmt.Errorf("%w: dsound id: %w", ErrInvalidAddress, err)
		}
		return id, nil

	case BackendWinMM:
		v, err := parseHex32(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: winmm id: %w", ErrInvalidAddress, err)
		}
		return WinMMAddress(v), nil

	case BackendJACK:
		v, err := parseHex32(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: jack id: %w", ErrInvalidAddress, err)
		}
		return JACKAddress(v), nil

	case BackendCoreAudio, BackendALSA, BackendPulseAudio:
		if err := checkNativeString(payload); err != nil {
			return nil, fmt.Errorf("%w: %s id: %w", ErrInvalidAddress, backend, err)
		}
		switch backend {
		case BackendCoreAudio:
			return CoreAudioAddress(payload), nil
		case BackendALSA:
			return ALSAAddress(payload), nil
		default:
			return PulseAudioAddress(payload), nil
		}
	}

	if payload != "" {
		return nil, fmt.Errorf("%w: backend %s takes no payload, got %q", ErrInvalidAddress, backend, payload)
	}
	return NewBareAddress(backend)
}

func parseHex32(s string) (uint32, error) {
	if s == "" {
		return 0, errors.New("empty payload")
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func checkNativeString(s string) error {
	if len(s) > nativeStringSize-1 {
		return fmt.Errorf("%d bytes long (max %d)", len(s), nativeStringSize-1)
	}
	if strings.IndexByte(s, 0) >= 0 {
		return errors.New("contains a NUL byte")
	}
	return nil
}
