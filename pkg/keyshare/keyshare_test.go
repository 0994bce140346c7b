package keyshare_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnascreen/doprf/pkg/keyshare"
	"github.com/dnascreen/doprf/pkg/ristretto"
)

func TestStringParseRoundTrip(t *testing.T) {
	scalar, err := ristretto.RandomScalar()
	require.NoError(t, err)
	share := keyshare.FromScalar(scalar)

	parsed, err := keyshare.Parse(share.String())
	require.NoError(t, err)

	assert.True(t, parsed.Scalar().Equal(scalar))
}

func TestApplyMatchesDirectMultiplication(t *testing.T) {
	scalar, err := ristretto.RandomScalar()
	require.NoError(t, err)
	share := keyshare.FromScalar(scalar)

	q := ristretto.HashToPoint([]byte("some query"))

	assert.True(t, share.Apply(q).Equal(q.Mul(scalar)))
}

func TestApplyWithLagrangeCoefficient(t *testing.T) {
	scalar, err := ristretto.RandomScalar()
	require.NoError(t, err)
	coeff, err := ristretto.RandomScalar()
	require.NoError(t, err)
	share := keyshare.FromScalar(scalar)

	q := ristretto.HashToPoint([]byte("another query"))

	got := share.ApplyWithLagrangeCoefficient(q, coeff)
	want := q.Mul(scalar.Mul(coeff))
	assert.True(t, got.Equal(want))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := keyshare.Parse("not hex")
	require.Error(t, err)
}
