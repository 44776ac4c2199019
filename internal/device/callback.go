package device

import (
	"github.com/Honorable-Knights-of-the-Roundtable/r6ebridge/pkg/signal"
)

// onData runs on the audio thread of the native subsystem, once per buffer.
//
// It never takes the device lock: the control path only touches the counter
// and the time descriptor while no stream is open, and closing a stream
// blocks until the last onData call has returned.
//
// A buffer that cannot be forwarded is dropped and counted. The counter only
// advances for forwarded buffers, so the offsets a consumer sees stay
// contiguous.
func (d *CaptureDevice) onData(input []byte, frameCount uint32) {
	defer func() {
		if r := recover(); r != nil {
			d.dropped.Add(1)
			d.logger.Error("recovered from panic in capture callback", "panic", r)
		}
	}()

	offset := d.samplesCaptured.Load()
	domain := signal.NewDataPacket(d.timeSignal.Descriptor(), int(frameCount), offset)

	if err := d.channel.addData(domain, input, frameCount); err != nil {
		d.dropped.Add(1)
		d.logger.Warn("dropping capture buffer",
			"frames", frameCount,
			"offset", offset,
			"err", err,
		)
		return
	}
	d.samplesCaptured.Add(int64(frameCount))
}
