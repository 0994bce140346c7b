package polynomial_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dnascreen/doprf/pkg/party"
	"github.com/dnascreen/doprf/pkg/polynomial"
	"github.com/dnascreen/doprf/pkg/ristretto"
)

func partyIDs(n int) party.Set {
	ids := make([]party.ID, 0, n)
	for i := 1; i <= n; i++ {
		id, _ := party.NewID(uint32(i))
		ids = append(ids, id)
	}
	return party.NewSet(ids...)
}

func TestLagrangeCoefficientsSumToOne(t *testing.T) {
	full := partyIDs(10)
	short := partyIDs(9)

	one := ristretto.OneScalar()

	sumFull := ristretto.ZeroScalar()
	for _, c := range polynomial.LagrangeCoefficients(full) {
		sumFull = sumFull.Add(c)
	}
	sumShort := ristretto.ZeroScalar()
	for _, c := range polynomial.LagrangeCoefficients(short) {
		sumShort = sumShort.Add(c)
	}

	assert.True(t, sumFull.Equal(one))
	assert.True(t, sumShort.Equal(one))
}

func TestEvaluateAtPointsReproducesKnownPoint(t *testing.T) {
	secret, err := ristretto.RandomScalar()
	assert.NoError(t, err)
	r1, err := ristretto.RandomScalar()
	assert.NoError(t, err)

	points := []ristretto.Scalar{secret, r1}

	assert.True(t, polynomial.EvaluateAtPoints(points, ristretto.ScalarFromUint64(0)).Equal(secret))
	assert.True(t, polynomial.EvaluateAtPoints(points, ristretto.ScalarFromUint64(1)).Equal(r1))
}

func TestPolynomialEvaluateConstant(t *testing.T) {
	secret, err := ristretto.RandomScalar()
	assert.NoError(t, err)

	p := polynomial.New([]ristretto.Scalar{secret})

	assert.True(t, p.Evaluate(ristretto.ScalarFromUint64(42)).Equal(secret))
}
