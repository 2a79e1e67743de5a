package mt

import (
	"errors"
	"math"
	"testing"

	"go.viam.com/test"
)

func bigEndian(bits uint32) []byte {
	return []byte{byte(bits >> 24), byte(bits >> 16), byte(bits >> 8), byte(bits)}
}

func TestDecodeFloatMatchesIEEE(t *testing.T) {
	for _, v := range []float32{
		1, -1, 0.5, 3.14159265, -273.15, 9.81, 1e-30, -1e30,
		math.MaxFloat32, math.SmallestNonzeroFloat32 * (1 << 23), 0.1, 57.2958,
	} {
		got, err := DecodeFloat(bigEndian(math.Float32bits(v)))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldEqual, float64(v))
	}
}

func TestDecodeFloatZero(t *testing.T) {
	got, err := DecodeFloat([]byte{0, 0, 0, 0})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldEqual, 0.0)

	got, err = DecodeFloat([]byte{0x80, 0, 0, 0})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldEqual, 0.0)
	test.That(t, math.Signbit(got), test.ShouldBeTrue)
}

func TestDecodeFloatSubnormal(t *testing.T) {
	got, err := DecodeFloat([]byte{0, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldEqual, float64(math.SmallestNonzeroFloat32))
}

func TestDecodeFloatNotRepresentable(t *testing.T) {
	for _, bits := range []uint32{0x7F800000, 0xFF800000, 0x7FC00000, 0x7F800001} {
		_, err := DecodeFloat(bigEndian(bits))
		test.That(t, errors.Is(err, ErrNotRepresentable), test.ShouldBeTrue)
	}
}

func TestDecodeFloatShortInput(t *testing.T) {
	_, err := DecodeFloat([]byte{0x3F, 0x80, 0x00})
	test.That(t, errors.Is(err, ErrMalformedField), test.ShouldBeTrue)
}

func TestEncodeFloatRoundTrip(t *testing.T) {
	for _, v := range []float32{
		1, -1, 0, 0.25, 1.5, -2.75, 123456.789, 1e-37, -3.4e38, 0.001, 6.02e23,
		math.MaxFloat32, -math.MaxFloat32,
	} {
		b, err := EncodeFloat(v)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, b[:], test.ShouldResemble, bigEndian(math.Float32bits(v)))

		got, err := DecodeFloat(b[:])
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldEqual, float64(v))
	}
}

func TestEncodeFloatRejectsNonNormal(t *testing.T) {
	for _, v := range []float32{
		float32(math.Inf(1)),
		float32(math.NaN()),
		math.SmallestNonzeroFloat32,
	} {
		_, err := EncodeFloat(v)
		test.That(t, errors.Is(err, ErrNotRepresentable), test.ShouldBeTrue)
	}
}
