package activesecurity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnascreen/doprf/pkg/activesecurity"
	"github.com/dnascreen/doprf/pkg/party"
	"github.com/dnascreen/doprf/pkg/polynomial"
	"github.com/dnascreen/doprf/pkg/ristretto"
)

func mustID(t *testing.T, v uint32) party.ID {
	t.Helper()
	id, err := party.NewID(v)
	require.NoError(t, err)
	return id
}

func mustScalar(t *testing.T) ristretto.Scalar {
	t.Helper()
	s, err := ristretto.RandomScalar()
	require.NoError(t, err)
	return s
}

// honestIndividualSum replays the per-keyserver accumulator from the
// batch's math: coeff_i·share_i·(S + C), computed without the blinding
// factors pkg/query introduces, to exercise the checksum algebra in
// isolation.
func honestIndividualSum(quorum party.Set, id party.ID, share ristretto.Scalar, sum, checksum ristretto.Point) ristretto.Point {
	coeff := polynomial.LagrangeCoefficient(quorum, id)
	return sum.Add(checksum).Mul(share.Mul(coeff))
}

func TestRandomizedTargetHonestQuorumValidates(t *testing.T) {
	secret := mustScalar(t)

	id1 := mustID(t, 1)
	id2 := mustID(t, 2)
	id3 := mustID(t, 3)
	quorum := party.NewSet(id1, id2, id3)

	shares := map[party.ID]ristretto.Scalar{
		id1: mustScalar(t),
		id2: mustScalar(t),
		id3: mustScalar(t),
	}
	// Force exact reconstruction: share_3 is whatever makes the quorum
	// reconstruct `secret` under its own Lagrange coefficients.
	coeffs := polynomial.LagrangeCoefficients(quorum)
	partial := shares[id1].Mul(coeffs[id1]).Add(shares[id2].Mul(coeffs[id2]))
	shares[id3] = secret.Sub(partial).Mul(coeffs[id3].Invert())

	key := activesecurity.NewKey(secret, shares)

	h1 := ristretto.HashToPoint([]byte("window-1"))
	h2 := ristretto.HashToPoint([]byte("window-2"))
	v1 := mustScalar(t)
	v2 := mustScalar(t)
	sum := h1.Mul(v1).Add(h2.Mul(v2))

	rho := mustScalar(t)
	target := key.RandomizedTarget(rho)

	checksum := target.ChecksumPointForValidation(sum)

	verifier := ristretto.IdentityPoint()
	for _, id := range quorum.IDs() {
		verifier = verifier.Add(honestIndividualSum(quorum, id, shares[id], sum, checksum))
	}

	assert.True(t, target.ValidateResponses(verifier))

	for _, id := range quorum.IDs() {
		individualSum := honestIndividualSum(quorum, id, shares[id], sum, checksum)
		assert.True(t, target.IsKeyserverResponseValid(quorum, id, individualSum))
	}
}

func TestRandomizedTargetDetectsDishonestKeyserver(t *testing.T) {
	secret := mustScalar(t)

	id1 := mustID(t, 1)
	id2 := mustID(t, 2)
	id3 := mustID(t, 3)
	quorum := party.NewSet(id1, id2, id3)

	shares := map[party.ID]ristretto.Scalar{
		id1: mustScalar(t),
		id2: mustScalar(t),
		id3: mustScalar(t),
	}
	coeffs := polynomial.LagrangeCoefficients(quorum)
	partial := shares[id1].Mul(coeffs[id1]).Add(shares[id2].Mul(coeffs[id2]))
	shares[id3] = secret.Sub(partial).Mul(coeffs[id3].Invert())

	key := activesecurity.NewKey(secret, shares)

	h1 := ristretto.HashToPoint([]byte("window-1"))
	v1 := mustScalar(t)
	sum := h1.Mul(v1)

	rho := mustScalar(t)
	target := key.RandomizedTarget(rho)
	checksum := target.ChecksumPointForValidation(sum)

	// id2 substitutes an unrelated share when answering.
	tamperedShare := mustScalar(t)
	validSum := honestIndividualSum(quorum, id2, shares[id2], sum, checksum)
	tamperedSum := honestIndividualSum(quorum, id2, tamperedShare, sum, checksum)
	assert.False(t, tamperedSum.Equal(validSum))

	assert.True(t, target.IsKeyserverResponseValid(quorum, id1, honestIndividualSum(quorum, id1, shares[id1], sum, checksum)))
	assert.False(t, target.IsKeyserverResponseValid(quorum, id2, tamperedSum))
}
