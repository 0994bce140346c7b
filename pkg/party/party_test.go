package party_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnascreen/doprf/pkg/party"
)

func TestNewIDRejectsZero(t *testing.T) {
	_, err := party.NewID(0)
	require.ErrorIs(t, err, party.ErrZeroID)
}

func TestNewIDRejectsOutOfRange(t *testing.T) {
	_, err := party.NewID(256)
	require.Error(t, err)
}

func TestSetCanonicalOrder(t *testing.T) {
	a, _ := party.NewID(3)
	b, _ := party.NewID(1)
	c, _ := party.NewID(2)

	set := party.NewSet(a, b, c, b)

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []party.ID{b, c, a}, set.IDs())
	assert.True(t, set.Contains(a))
}

func TestSetContainsMissing(t *testing.T) {
	a, _ := party.NewID(5)
	b, _ := party.NewID(9)
	set := party.NewSet(a)

	assert.False(t, set.Contains(b))
}
