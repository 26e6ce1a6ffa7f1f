package tmmbn

import (
	"fmt"
	"math/bits"
)

// Quantized is a bitrate in the RFC 5104 MxTBR form: Mantissa * 2^Exponent.
type Quantized struct {
	Mantissa uint32
	Exponent uint8
}

// Value decodes q back into bits per second.
func (q Quantized) Value() uint64 {
	return uint64(q.Mantissa) << q.Exponent
}

// Quantize encodes value as mantissa * 2^exponent with a mantissa of at most
// mantissaBits bits.
//
// The exponent is the smallest one in [0, 63] for which
// value <= (2^mantissaBits - 1) << exponent, which keeps as many significant
// bits as possible. The mantissa is value >> exponent, so low bits are
// truncated, never rounded up.
//
// When no exponent in range can represent value, ok is false and the zero
// Quantized is returned. Widths above 32 bits panic.
func Quantize(value uint64, mantissaBits uint8) (q Quantized, ok bool) {
	if mantissaBits > 32 {
		panic(fmt.Sprintf("tmmbn: mantissa width %d exceeds 32 bits", mantissaBits))
	}

	mantissaMax := uint64(1)<<mantissaBits - 1
	// Shifts past this point carry mantissaMax beyond 64 bits, so any uint64
	// value fits.
	noOverflow := 64 - bits.Len64(mantissaMax)

	for exp := 0; exp < 64; exp++ {
		if exp > noOverflow || value <= mantissaMax<<exp {
			return Quantized{
				Mantissa: uint32(value >> exp), //nolint:gosec // bounded by mantissaMax
				Exponent: uint8(exp),
			}, true
		}
	}

	return Quantized{}, false
}
