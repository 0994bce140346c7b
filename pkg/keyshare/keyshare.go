// Package keyshare holds a single keyserver's share of the committee secret.
package keyshare

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/dnascreen/doprf/pkg/ristretto"
)

// KeyShare is one keyserver's Shamir share of the committee's DOPRF
// secret: a scalar evaluated from the dealer's sharing polynomial.
type KeyShare struct {
	scalar ristretto.Scalar
}

// FromScalar wraps an existing scalar as a KeyShare.
func FromScalar(s ristretto.Scalar) KeyShare {
	return KeyShare{scalar: s}
}

// Apply evaluates the keyshare against an unblinded query point, returning
// this keyserver's raw contribution q^share.
func (k KeyShare) Apply(q ristretto.Point) ristretto.Point {
	return q.Mul(k.scalar)
}

// ApplyWithLagrangeCoefficient evaluates q^(share*coeff) in a single scalar
// multiplication, used when a keyserver folds its Lagrange weight into its
// response rather than exposing the raw share contribution.
func (k KeyShare) ApplyWithLagrangeCoefficient(q ristretto.Point, coeff ristretto.Scalar) ristretto.Point {
	return q.Mul(k.scalar.Mul(coeff))
}

// MultiplyByBase returns share·G, the keyserver's public verification point.
func (k KeyShare) MultiplyByBase() ristretto.Point {
	return ristretto.MulBase(k.scalar)
}

// Scalar exposes the underlying scalar value. Key material, handle with care.
func (k KeyShare) Scalar() ristretto.Scalar {
	return k.scalar
}

// String renders the keyshare as lowercase hex, matching the wire/CLI
// encoding used to move shares between the dealer and keyservers.
func (k KeyShare) String() string {
	b := k.scalar.Encode()
	return hex.EncodeToString(b[:])
}

// Parse decodes a hex-encoded keyshare produced by String.
func Parse(s string) (KeyShare, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return KeyShare{}, fmt.Errorf("keyshare: decoding hex: %w", err)
	}
	scalar, err := ristretto.DecodeScalar(raw)
	if err != nil {
		return KeyShare{}, fmt.Errorf("keyshare: %w", err)
	}
	return KeyShare{scalar: scalar}, nil
}

// MarshalCBOR encodes the keyshare as its canonical 32-byte scalar.
func (k KeyShare) MarshalCBOR() ([]byte, error) {
	b := k.scalar.Encode()
	return cbor.Marshal(b[:])
}

// UnmarshalCBOR decodes a keyshare from its canonical 32-byte scalar.
func (k *KeyShare) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("keyshare: decoding cbor: %w", err)
	}
	scalar, err := ristretto.DecodeScalar(raw)
	if err != nil {
		return fmt.Errorf("keyshare: %w", err)
	}
	k.scalar = scalar
	return nil
}
