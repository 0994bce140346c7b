// Package dealer implements centralized keyshare generation: an off-path
// utility for standing up a test committee or a single trusted-dealer
// deployment. Production committees should prefer a distributed key
// generation protocol; this package exists because tests and local
// simulation need a fast, deterministic way to produce a matching set of
// shares for a known secret.
package dealer

import (
	"fmt"

	"github.com/dnascreen/doprf/pkg/keyshare"
	"github.com/dnascreen/doprf/pkg/polynomial"
	"github.com/dnascreen/doprf/pkg/ristretto"
)

// UnreachableQuorumError reports that the requested committee size cannot
// satisfy its own quorum requirement.
type UnreachableQuorumError struct {
	RequiredKeyholders uint32
	NumKeyholders      uint32
}

func (e *UnreachableQuorumError) Error() string {
	return fmt.Sprintf("%d keyholders can't reach quorum of %d", e.NumKeyholders, e.RequiredKeyholders)
}

// GenerateKeyshares splits secret into numKeyholders shares such that any
// requiredKeyholders of them reconstruct it via Lagrange interpolation at
// x=0. Shares are assigned to keyservers 1..=numKeyholders in order.
func GenerateKeyshares(secret keyshare.KeyShare, requiredKeyholders, numKeyholders uint32) ([]keyshare.KeyShare, error) {
	if numKeyholders < requiredKeyholders {
		return nil, &UnreachableQuorumError{
			RequiredKeyholders: requiredKeyholders,
			NumKeyholders:      numKeyholders,
		}
	}
	if requiredKeyholders == 0 {
		return nil, fmt.Errorf("dealer: required keyholders must be at least 1")
	}

	controlPoints := make([]ristretto.Scalar, requiredKeyholders)
	controlPoints[0] = secret.Scalar()
	for i := uint32(1); i < requiredKeyholders; i++ {
		r, err := ristretto.RandomScalar()
		if err != nil {
			return nil, fmt.Errorf("dealer: drawing control point: %w", err)
		}
		controlPoints[i] = r
	}

	shares := make([]keyshare.KeyShare, numKeyholders)
	for x := uint32(1); x <= numKeyholders; x++ {
		var value ristretto.Scalar
		if int(x) < len(controlPoints) {
			value = controlPoints[x]
		} else {
			value = polynomial.EvaluateAtPoints(controlPoints, ristretto.ScalarFromUint64(uint64(x)))
		}
		shares[x-1] = keyshare.FromScalar(value)
	}

	return shares, nil
}
