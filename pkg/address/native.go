package address

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"

	"golang.org/x/text/encoding/unicode"
)

// Native ma_device_id layout. The identifier is a union; every member starts
// at offset zero and the union is as large as its largest member.
const (
	// Size of the native identifier in bytes.
	NativeIDSize = 256

	wasapiIDUnits    = 64  // wchar_t[64], UTF-16
	dsoundIDSize     = 16  // ma_uint8[16]
	nativeStringSize = 256 // char[256], NUL terminated
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// FromNativeID builds the Address of a native identifier reported by backend.
// raw is read up to NativeIDSize bytes; shorter buffers are treated as zero padded.
func FromNativeID(backend Backend, raw []byte) Address {
	var id [NativeIDSize]byte
	copy(id[:], raw)

	switch backend {
	case BackendWASAPI:
		n := 0
		for n < wasapiIDUnits && (id[2*n] != 0 || id[2*n+1] != 0) {
			n++
		}
		decoded, err := utf16le.NewDecoder().Bytes(id[:2*n])
		if err != nil {
			return WASAPIAddress("")
		}
		return WASAPIAddress(decoded)
	case BackendDSound:
		var a DSoundAddress
		copy(a[:], id[:dsoundIDSize])
		return a
	case BackendWinMM:
		return WinMMAddress(binary.LittleEndian.Uint32(id[:4]))
	case BackendJACK:
		return JACKAddress(binary.LittleEndian.Uint32(id[:4]))
	case BackendCoreAudio:
		return CoreAudioAddress(cString(id[:nativeStringSize]))
	case BackendALSA:
		return ALSAAddress(cString(id[:nativeStringSize]))
	case BackendPulseAudio:
		return PulseAudioAddress(cString(id[:nativeStringSize]))
	}

	if bare, err := NewBareAddress(backend); err == nil {
		return bare
	}
	return UnknownAddress{}
}

// NativeID returns the native identifier bytes of an address.
// Backends without a payload map to the all-zero identifier.
func NativeID(a Address) [NativeIDSize]byte {
	var id [NativeIDSize]byte
	a.putNative(id[:])
	return id
}

func (a WASAPIAddress) putNative(dst []byte) {
	encoded, err := utf16le.NewEncoder().Bytes([]byte(a))
	if err != nil {
		return
	}
	// Keep room for the terminating NUL unit.
	copy(dst[:2*(wasapiIDUnits-1)], encoded)
}

func (a DSoundAddress) putNative(dst []byte) { copy(dst, a[:]) }
func (a WinMMAddress) putNative(dst []byte)  { binary.LittleEndian.PutUint32(dst, uint32(a)) }
func (a JACKAddress) putNative(dst []byte)   { binary.LittleEndian.PutUint32(dst, uint32(a)) }

func (a CoreAudioAddress) putNative(dst []byte)  { copy(dst[:nativeStringSize-1], a) }
func (a ALSAAddress) putNative(dst []byte)       { copy(dst[:nativeStringSize-1], a) }
func (a PulseAudioAddress) putNative(dst []byte) { copy(dst[:nativeStringSize-1], a) }

func (BareAddress) putNative([]byte)    {}
func (UnknownAddress) putNative([]byte) {}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}
