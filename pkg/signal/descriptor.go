// Package signal holds the minimal signal model the bridge stamps its packets
// with: data descriptors, data rules, units and data packets.
package signal

import "fmt"

type SampleType int

const (
	SampleTypeInvalid SampleType = iota
	SampleTypeFloat32
	SampleTypeInt64
)

func (t SampleType) String() string {
	switch t {
	case SampleTypeFloat32:
		return "Float32"
	case SampleTypeInt64:
		return "Int64"
	}
	return "Invalid"
}

// Ratio is a rational number. A zero numerator marks an unknown value.
type Ratio struct {
	Num int64
	Den int64
}

// UnknownRatio is reported when a resolution is not (yet) available.
var UnknownRatio = Ratio{Num: 0, Den: 1}

func (r Ratio) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

func (r Ratio) IsUnknown() bool {
	return r.Num == 0
}

type Unit struct {
	ID       int
	Symbol   string
	Name     string
	Quantity string
}

// SecondsUnit is the unit of every time domain produced by the bridge.
var SecondsUnit = Unit{ID: -1, Symbol: "s", Name: "second", Quantity: "time"}

// LinearRule describes implicit data: value(i) = Delta*i + Start.
type LinearRule struct {
	Delta int64
	Start int64
}

// DataDescriptor describes the samples a signal sends.
// A nil Rule means the packets carry explicit sample data.
type DataDescriptor struct {
	Name           string
	SampleType     SampleType
	TickResolution Ratio
	Rule           *LinearRule
	Unit           Unit
}

// SampleRate derives the sample rate of a linear time domain from its tick
// resolution. It returns 0 when the resolution is unknown or the rule is not
// a unit-step linear rule.
func (d *DataDescriptor) SampleRate() int {
	if d == nil || d.Rule == nil || d.Rule.Delta <= 0 || d.TickResolution.IsUnknown() {
		return 0
	}
	ticksPerSecond := d.TickResolution.Den / d.TickResolution.Num
	return int(ticksPerSecond / d.Rule.Delta)
}
