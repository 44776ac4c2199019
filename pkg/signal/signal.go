package signal

import "sync/atomic"

// Signal is a named stream of packets described by a data descriptor.
//
// The descriptor may be replaced while packets are produced on another
// thread; readers always see a complete descriptor.
type Signal struct {
	localID      string
	descriptor   atomic.Pointer[DataDescriptor]
	domainSignal *Signal
}

func NewSignal(localID string) *Signal {
	return &Signal{localID: localID}
}

func (s *Signal) LocalID() string {
	return s.localID
}

func (s *Signal) Descriptor() *DataDescriptor {
	return s.descriptor.Load()
}

func (s *Signal) SetDescriptor(descriptor *DataDescriptor) {
	s.descriptor.Store(descriptor)
}

func (s *Signal) DomainSignal() *Signal {
	return s.domainSignal
}

func (s *Signal) SetDomainSignal(domain *Signal) {
	s.domainSignal = domain
}
