package signal

// DataPacket is one immutable bundle of samples plus its timing metadata.
//
// Domain packets are implicit: they carry no Samples and their values follow
// from Offset and the descriptor's linear rule. Value packets carry explicit
// float32 samples and reference the domain packet they were captured with.
type DataPacket struct {
	Descriptor  *DataDescriptor
	Domain      *DataPacket
	SampleCount int
	Offset      int64
	Samples     []float32
}

// NewDataPacket creates an implicit packet, typically a domain packet.
func NewDataPacket(descriptor *DataDescriptor, sampleCount int, offset int64) *DataPacket {
	return &DataPacket{
		Descriptor:  descriptor,
		SampleCount: sampleCount,
		Offset:      offset,
	}
}

// NewDataPacketWithDomain creates an explicit value packet.
func NewDataPacketWithDomain(domain *DataPacket, descriptor *DataDescriptor, samples []float32) *DataPacket {
	return &DataPacket{
		Descriptor:  descriptor,
		Domain:      domain,
		SampleCount: len(samples),
		Samples:     samples,
	}
}

// DomainValue returns the value of sample i of an implicit packet:
// Offset + Delta*i + Start.
func (p *DataPacket) DomainValue(i int) int64 {
	rule := p.Descriptor.Rule
	if rule == nil {
		return p.Offset
	}
	return p.Offset + rule.Delta*int64(i) + rule.Start
}

// SampleRate returns the sample rate the packet was captured at, taken from
// its domain packet. It returns 0 for packets without a linear time domain.
func (p *DataPacket) SampleRate() int {
	if p.Domain != nil {
		return p.Domain.Descriptor.SampleRate()
	}
	return p.Descriptor.SampleRate()
}
