// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mt

import (
	"fmt"
	"math"
)

const (
	floatSignMask     = 0x80000000
	floatExponentMask = 0x7F800000
	floatMantissaMask = 0x007FFFFF
	floatExponentBias = 127
	floatMantissaBits = 23
)

// DecodeFloat rebuilds a big-endian IEEE-754 single from its sign,
// exponent and mantissa bits.
//
//	value = (-1)^sign * 2^(exponent-127) * (1 + mantissa/2^23)
//
// Zero and subnormals decode to their exact value. Infinity and NaN
// return ErrNotRepresentable.
func DecodeFloat(b []byte) (float64, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("%w: float needs 4 bytes, got %d", ErrMalformedField, len(b))
	}
	bits := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])

	negative := bits&floatSignMask != 0
	exponent := int((bits & floatExponentMask) >> floatMantissaBits)
	mantissa := bits & floatMantissaMask

	var value float64
	switch exponent {
	case 0xFF:
		return 0, fmt.Errorf("%w: 0x%08X", ErrNotRepresentable, bits)
	case 0:
		// zero or subnormal, no implicit leading one
		value = math.Ldexp(float64(mantissa), 1-floatExponentBias-floatMantissaBits)
	default:
		value = math.Ldexp(float64(mantissa|1<<floatMantissaBits), exponent-floatExponentBias-floatMantissaBits)
	}

	if negative {
		value = -value
	}
	return value, nil
}

// EncodeFloat is the inverse of DecodeFloat for zero and normal values.
func EncodeFloat(v float32) ([4]byte, error) {
	var out [4]byte
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return out, fmt.Errorf("%w: %v", ErrNotRepresentable, v)
	}

	var bits uint32
	if math.Signbit(f) {
		bits = floatSignMask
		f = -f
	}

	if f != 0 {
		// f = frac * 2^exp with frac in [0.5, 1)
		frac, exp := math.Frexp(f)
		biased := exp - 1 + floatExponentBias
		if biased <= 0 || biased >= 0xFF {
			return out, fmt.Errorf("%w: %v is not a normal single", ErrNotRepresentable, v)
		}
		mantissa := uint32((frac*2 - 1) * (1 << floatMantissaBits))
		bits |= uint32(biased)<<floatMantissaBits | mantissa
	}

	out[0] = byte(bits >> 24)
	out[1] = byte(bits >> 16)
	out[2] = byte(bits >> 8)
	out[3] = byte(bits)
	return out, nil
}
