package tagged_test

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnascreen/doprf/pkg/ristretto"
	"github.com/dnascreen/doprf/pkg/tagged"
)

func TestHashTagRoundTrip(t *testing.T) {
	f := func(isFirst bool, offset uint8, record uint32) bool {
		tag := tagged.New(isFirst, offset, record)
		back := tagged.TagFromBytes(tag.AsBytes())
		return back.IsFirstWindow() == tag.IsFirstWindow() &&
			back.Offset() == tag.Offset() &&
			back.Record() == tag.Record()
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestHashTagOffsetTruncatedTo7Bits(t *testing.T) {
	tag := tagged.New(false, 0xff, 0)
	assert.Equal(t, uint8(0x7f), tag.Offset())
}

func TestHashTagFirstWindowFlag(t *testing.T) {
	b := tagged.New(true, 0, 0).AsBytes()
	assert.NotZero(t, b[0]&0x80)

	b = tagged.New(false, 0, 0).AsBytes()
	assert.Zero(t, b[0]&0x80)
}

func TestTaggedHashRoundTrip(t *testing.T) {
	tag := tagged.New(true, 5, 42)
	point := ristretto.HashToPoint([]byte("a window"))
	th := tagged.TaggedHash{Tag: tag, Hash: point}

	bytes := th.AsBytes()
	assert.Len(t, bytes, tagged.SIZE)

	back, err := tagged.FromBytes(bytes[:])
	require.NoError(t, err)
	assert.Equal(t, tag, back.Tag)
	assert.True(t, back.Hash.Equal(point))
}

func TestDecodeStreamRejectsNonMultiple(t *testing.T) {
	_, err := tagged.DecodeStream(make([]byte, tagged.SIZE+1))
	require.Error(t, err)
}

func TestEncodeDecodeStream(t *testing.T) {
	hashes := []tagged.TaggedHash{
		{Tag: tagged.New(true, 0, 1), Hash: ristretto.HashToPoint([]byte("w0"))},
		{Tag: tagged.New(false, 1, 1), Hash: ristretto.HashToPoint([]byte("w1"))},
	}

	stream := tagged.EncodeStream(hashes)
	assert.Len(t, stream, 2*tagged.SIZE)

	decoded, err := tagged.DecodeStream(stream)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	for i := range hashes {
		assert.Equal(t, hashes[i].Tag, decoded[i].Tag)
		assert.True(t, hashes[i].Hash.Equal(decoded[i].Hash))
	}
}
