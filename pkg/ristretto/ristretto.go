// Package ristretto wraps the Ristretto255 group for the DOPRF core.
//
// Point and Scalar are opaque newtypes over gtank/ristretto255: callers
// never see the underlying limb representation, only canonical 32-byte
// encodings and the handful of group operations the protocol needs.
package ristretto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/gtank/ristretto255"
	"golang.org/x/crypto/sha3"
)

// ErrInvalidPoint is returned when a 32-byte buffer does not decode to a
// canonical Ristretto255 element.
var ErrInvalidPoint = errors.New("ristretto: invalid point encoding")

// ErrInvalidScalar is returned when a 32-byte buffer does not decode to a
// canonical scalar (an element of Z/lZ in its unique minimal representation).
var ErrInvalidScalar = errors.New("ristretto: invalid scalar encoding")

// Point is a compressed Ristretto255 group element.
type Point struct {
	inner *ristretto255.Element
}

// Scalar is a canonical element of the Ristretto255 scalar field.
type Scalar struct {
	inner *ristretto255.Scalar
}

// IdentityPoint returns the group identity element.
func IdentityPoint() Point {
	return Point{inner: ristretto255.NewIdentityElement()}
}

// BasePoint returns the standard Ristretto255 base point.
func BasePoint() Point {
	return Point{inner: ristretto255.NewGeneratorElement()}
}

// ZeroScalar returns the additive identity of the scalar field.
func ZeroScalar() Scalar {
	return Scalar{inner: ristretto255.NewScalar()}
}

// OneScalar returns the multiplicative identity of the scalar field.
func OneScalar() Scalar {
	one := ristretto255.NewScalar()
	var buf [32]byte
	buf[0] = 1
	if _, err := one.SetCanonicalBytes(buf[:]); err != nil {
		panic("ristretto: 1 is always a canonical scalar encoding")
	}
	return Scalar{inner: one}
}

// RandomScalar draws a uniformly random scalar using a cryptographic RNG.
func RandomScalar() (Scalar, error) {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return Scalar{}, fmt.Errorf("ristretto: reading randomness: %w", err)
	}
	s := ristretto255.NewScalar()
	if _, err := s.SetUniformBytes(buf[:]); err != nil {
		return Scalar{}, fmt.Errorf("ristretto: reducing randomness: %w", err)
	}
	return Scalar{inner: s}, nil
}

// ScalarFromUint64 builds a small scalar from an unsigned integer. Used for
// party indices in Lagrange interpolation.
func ScalarFromUint64(v uint64) Scalar {
	var buf [32]byte
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
	buf[4] = byte(v >> 32)
	buf[5] = byte(v >> 40)
	buf[6] = byte(v >> 48)
	buf[7] = byte(v >> 56)
	s := ristretto255.NewScalar()
	if _, err := s.SetCanonicalBytes(buf[:]); err != nil {
		panic("ristretto: a uint64 zero-padded to 32 bytes is always canonical")
	}
	return Scalar{inner: s}
}

// HashToPoint maps an arbitrary byte string to a group element using a
// SHA3-512 XOF and the standard Ristretto hash-to-curve map (spec §4.1).
func HashToPoint(msg []byte) Point {
	h := sha3.Sum512(msg)
	e := ristretto255.NewIdentityElement()
	if _, err := e.SetUniformBytes(h[:]); err != nil {
		panic("ristretto: a 64-byte SHA3-512 digest is always a valid uniform input")
	}
	return Point{inner: e}
}

// HashToScalar reduces a SHA3-512 digest of msg into the scalar field
// (uniform reduction), used to derive the batch's random modifier ρ.
func HashToScalar(msg []byte) Scalar {
	h := sha3.Sum512(msg)
	s := ristretto255.NewScalar()
	if _, err := s.SetUniformBytes(h[:]); err != nil {
		panic("ristretto: a 64-byte SHA3-512 digest is always a valid uniform input")
	}
	return Scalar{inner: s}
}

// DecodePoint parses a canonical 32-byte compressed Ristretto255 encoding.
func DecodePoint(b []byte) (Point, error) {
	if len(b) != 32 {
		return Point{}, ErrInvalidPoint
	}
	e := ristretto255.NewIdentityElement()
	if _, err := e.SetCanonicalBytes(b); err != nil {
		return Point{}, ErrInvalidPoint
	}
	return Point{inner: e}, nil
}

// Encode returns the canonical 32-byte compressed encoding of p.
func (p Point) Encode() [32]byte {
	var out [32]byte
	copy(out[:], p.inner.Bytes())
	return out
}

// Bytes is a convenience wrapper over Encode returning a slice.
func (p Point) Bytes() []byte {
	b := p.Encode()
	return b[:]
}

// Equal reports whether p and q encode to the same group element.
func (p Point) Equal(q Point) bool {
	return p.inner.Equal(q.inner) == 1
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	r := ristretto255.NewIdentityElement()
	r.Add(p.inner, q.inner)
	return Point{inner: r}
}

// Mul returns s·p.
func (p Point) Mul(s Scalar) Point {
	r := ristretto255.NewIdentityElement()
	r.ScalarMult(s.inner, p.inner)
	return Point{inner: r}
}

// Negate returns -p.
func (p Point) Negate() Point {
	r := ristretto255.NewIdentityElement()
	r.Negate(p.inner)
	return Point{inner: r}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return p.Add(q.Negate())
}

// MulBase returns s·G for the standard base point G.
func MulBase(s Scalar) Point {
	r := ristretto255.NewIdentityElement()
	r.ScalarBaseMult(s.inner)
	return Point{inner: r}
}

// VartimeDoubleScalarMulBase computes a·p + b·G in variable time. Used for
// the active-security verification point, reusing the fast path with b=0.
func VartimeDoubleScalarMulBase(a Scalar, p Point, b Scalar) Point {
	r := ristretto255.NewIdentityElement()
	r.VarTimeDoubleScalarBaseMult(a.inner, p.inner, b.inner)
	return Point{inner: r}
}

// DecodeScalar parses a canonical 32-byte little-endian scalar encoding,
// rejecting any non-canonical representative.
func DecodeScalar(b []byte) (Scalar, error) {
	if len(b) != 32 {
		return Scalar{}, ErrInvalidScalar
	}
	s := ristretto255.NewScalar()
	if _, err := s.SetCanonicalBytes(b); err != nil {
		return Scalar{}, ErrInvalidScalar
	}
	return Scalar{inner: s}, nil
}

// Encode returns the canonical 32-byte little-endian encoding of s.
func (s Scalar) Encode() [32]byte {
	var out [32]byte
	copy(out[:], s.inner.Bytes())
	return out
}

// Bytes is a convenience wrapper over Encode returning a slice.
func (s Scalar) Bytes() []byte {
	b := s.Encode()
	return b[:]
}

// Equal reports whether s and t are the same field element.
func (s Scalar) Equal(t Scalar) bool {
	return s.inner.Equal(t.inner) == 1
}

// Add returns s + t.
func (s Scalar) Add(t Scalar) Scalar {
	r := ristretto255.NewScalar()
	r.Add(s.inner, t.inner)
	return Scalar{inner: r}
}

// Sub returns s - t.
func (s Scalar) Sub(t Scalar) Scalar {
	neg := ristretto255.NewScalar()
	neg.Negate(t.inner)
	r := ristretto255.NewScalar()
	r.Add(s.inner, neg)
	return Scalar{inner: r}
}

// Mul returns s * t.
func (s Scalar) Mul(t Scalar) Scalar {
	r := ristretto255.NewScalar()
	r.Multiply(s.inner, t.inner)
	return Scalar{inner: r}
}

// Invert returns s^-1. s must be nonzero.
func (s Scalar) Invert() Scalar {
	r := ristretto255.NewScalar()
	r.Invert(s.inner)
	return Scalar{inner: r}
}

// Zeroize overwrites the scalar's memory, best-effort. Callers that hold a
// blinding factor or key share must call this once the value is no longer
// needed (spec §9, "Ownership of blinding scalars").
func (s *Scalar) Zeroize() {
	if s.inner == nil {
		return
	}
	var zero [32]byte
	if _, err := s.inner.SetCanonicalBytes(zero[:]); err != nil {
		panic("ristretto: 0 is always a canonical scalar encoding")
	}
	s.inner = nil
}
