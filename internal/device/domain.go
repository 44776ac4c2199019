package device

import "github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/signal"

// DomainInfo describes the time domain of a device.
type DomainInfo struct {
	Resolution       signal.Ratio
	TicksSinceOrigin int64
	Origin           string
	Unit             signal.Unit
}

// The descriptor of the time signal while capturing at sampleRate:
// one tick per sample, starting at 0.
func timeDescriptor(sampleRate int) *signal.DataDescriptor {
	return &signal.DataDescriptor{
		Name:           "Time",
		SampleType:     signal.SampleTypeInt64,
		TickResolution: signal.Ratio{Num: 1, Den: int64(sampleRate)},
		Rule:           &signal.LinearRule{Delta: 1, Start: 0},
		Unit:           signal.SecondsUnit,
	}
}

func audioDescriptor() *signal.DataDescriptor {
	return &signal.DataDescriptor{
		Name:           "Audio",
		SampleType:     signal.SampleTypeFloat32,
		TickResolution: signal.UnknownRatio,
	}
}
