package networking

const (
	g711SampleRate = 8000

	mulawBias = 0x84
	mulawClip = 32635

	alawClip = 32635
)

// Encode a 16 bit linear sample to G.711 μ-law.
func linearToMulaw(sample int16) byte {
	s := int32(sample)
	var sign byte
	if s < 0 {
		sign = 0x80
		s = -s
	}
	if s > mulawClip {
		s = mulawClip
	}
	s += mulawBias

	exponent := byte(7)
	for mask := int32(0x4000); s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(s>>(exponent+3)) & 0x0F
	return ^(sign | exponent<<4 | mantissa)
}

// Decode a G.711 μ-law byte to a 16 bit linear sample.
func mulawToLinear(b byte) int16 {
	b = ^b
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	s := ((int32(mantissa) << 3) + mulawBias) << exponent
	s -= mulawBias
	if b&0x80 != 0 {
		return int16(-s)
	}
	return int16(s)
}

// Encode a 16 bit linear sample to G.711 A-law.
func linearToAlaw(sample int16) byte {
	s := int32(sample)
	sign := byte(0x80)
	if s < 0 {
		sign = 0
		s = -s
	}
	if s > alawClip {
		s = alawClip
	}

	var out byte
	if s >= 256 {
		exponent := byte(7)
		for mask := int32(0x4000); s&mask == 0 && exponent > 1; mask >>= 1 {
			exponent--
		}
		mantissa := byte(s>>(exponent+3)) & 0x0F
		out = exponent<<4 | mantissa
	} else {
		out = byte(s >> 4)
	}
	return (sign | out) ^ 0x55
}

// Decode a G.711 A-law byte to a 16 bit linear sample.
func alawToLinear(b byte) int16 {
	b ^= 0x55
	exponent := (b >> 4) & 0x07
	mantissa := int32(b & 0x0F)

	var s int32
	if exponent == 0 {
		s = mantissa<<4 + 8
	} else {
		s = (mantissa<<4 + 0x108) << (exponent - 1)
	}
	if b&0x80 == 0 {
		return int16(-s)
	}
	return int16(s)
}
