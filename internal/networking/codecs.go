package networking

import "github.com/pion/webrtc/v4"

var (
	// Define a mapping from string representation (e.g. for use in config files) to codec specification
	//
	// Only G.711 is offered: captured audio is sent uncompressed apart from companding.
	CodecMap map[string]webrtc.RTPCodecCapability = map[string]webrtc.RTPCodecCapability{
		"CodecPCMU8000Mono": {
			MimeType:  webrtc.MimeTypePCMU,
			ClockRate: 8000,
			Channels:  1,
		},
		"CodecPCMA8000Mono": {
			MimeType:  webrtc.MimeTypePCMA,
			ClockRate: 8000,
			Channels:  1,
		},
	}
)
