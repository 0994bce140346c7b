package hdb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnascreen/doprf/pkg/activesecurity"
	"github.com/dnascreen/doprf/pkg/dealer"
	"github.com/dnascreen/doprf/pkg/hdb"
	"github.com/dnascreen/doprf/pkg/keyshare"
	"github.com/dnascreen/doprf/pkg/party"
	"github.com/dnascreen/doprf/pkg/polynomial"
	"github.com/dnascreen/doprf/pkg/query"
	"github.com/dnascreen/doprf/pkg/ristretto"
	"github.com/dnascreen/doprf/pkg/tagged"
	"github.com/dnascreen/doprf/pkg/zkvm"
)

type fakeIndex struct {
	hazardous map[[32]byte][]hdb.HazardMatch
}

func (f *fakeIndex) Lookup(_ context.Context, hash [32]byte) ([]hdb.HazardMatch, error) {
	return f.hazardous[hash], nil
}

func validBatch(t *testing.T, windows []query.Window, hazardMessage []byte) (hdb.ScreeningRequest, *fakeIndex) {
	t.Helper()

	secretScalar, err := ristretto.RandomScalar()
	require.NoError(t, err)
	secret := keyshare.FromScalar(secretScalar)

	shares, err := dealer.GenerateKeyshares(secret, 3, 5)
	require.NoError(t, err)

	scalars := make(map[party.ID]ristretto.Scalar, 5)
	byID := make(map[party.ID]keyshare.KeyShare, 5)
	for i := uint32(1); i <= 5; i++ {
		id, _ := party.NewID(i)
		byID[id] = shares[i-1]
		scalars[id] = shares[i-1].Scalar()
	}
	key := activesecurity.NewKey(secretScalar, scalars)

	factors, checksumFactors := drawBatchFactors(t, len(windows))
	ss, err := query.NewStateSetFromFactors(windows, 3, key, factors, checksumFactors)
	require.NoError(t, err)

	quorumIDs := make([]party.ID, 0, 3)
	for _, n := range []uint32{1, 2, 3} {
		id, _ := party.NewID(n)
		quorumIDs = append(quorumIDs, id)
	}
	quorum := party.NewSet(quorumIDs...)

	responses := make(map[party.ID][]ristretto.Point, len(quorumIDs))
	queries := ss.Queries()
	for _, id := range quorumIDs {
		coeffs := polynomial.LagrangeCoefficients(quorum)
		coeff := coeffs[id]
		parts := make([]ristretto.Point, len(queries))
		for i, q := range queries {
			parts[i] = byID[id].ApplyWithLagrangeCoefficient(q, coeff)
		}
		responses[id] = parts
	}

	blindingFactors := make([]ristretto.Scalar, len(factors))
	verifierSum := ristretto.IdentityPoint()
	for i, f := range factors {
		blindingFactors[i] = f.Blinding
		point := ristretto.HashToPoint(windows[i].Message)
		verifierSum = verifierSum.Add(ristretto.VartimeDoubleScalarMulBase(f.Verification, point, ristretto.ZeroScalar()))
	}
	hashProof, _, err := zkvm.ProveHashProof(zkvm.HashProofWitness{
		Windows:         windows,
		BlindingFactors: blindingFactors,
	})
	require.NoError(t, err)
	checksumProof, _, err := zkvm.ProveChecksumProof(zkvm.ChecksumProofWitness{
		Rho:                query.DeriveRho(queries[:len(queries)-1]),
		Key:                key,
		VerifierSum:        verifierSum,
		V0:                 checksumFactors.Verification,
		BlindingFactorZero: checksumFactors.Blinding,
	})
	require.NoError(t, err)

	proof, hashes, err := zkvm.ProveVerificationProof(zkvm.VerificationProofWitness{
		HashProof:          hashProof,
		ChecksumProof:      checksumProof,
		StateSet:           ss,
		KeyserverResponses: responses,
	})
	require.NoError(t, err)

	stream := tagged.EncodeStream(hashes)

	// The index holds hazards under their keyed DOPRF hash H(m)^s, the value
	// the client reconstructs and the HDB looks up.
	hazardHash := ristretto.HashToPoint(hazardMessage).Mul(secretScalar).Encode()
	index := &fakeIndex{hazardous: map[[32]byte][]hdb.HazardMatch{
		hazardHash: {{HazardID: "toxin-1", Region: "US"}},
	}}

	return hdb.ScreeningRequest{RistrettoData: stream, Proof: proof}, index
}

// drawBatchFactors draws the WindowFactors a real client would draw once per
// batch, so the hash-proof and checksum-proof built from them commit to the
// exact queries the matching StateSet will reconstruct from.
func drawBatchFactors(t *testing.T, numWindows int) ([]query.WindowFactors, query.WindowFactors) {
	t.Helper()
	factors := make([]query.WindowFactors, numWindows)
	for i := range factors {
		f, err := query.DrawWindowFactors()
		require.NoError(t, err)
		factors[i] = f
	}
	checksumFactors, err := query.DrawWindowFactors()
	require.NoError(t, err)
	return factors, checksumFactors
}

func TestScreenAcceptsValidBatch(t *testing.T) {
	windows := []query.Window{
		{Tag: tagged.New(true, 0, 7), Message: []byte("ACGT")},
		{Tag: tagged.New(false, 1, 7), Message: []byte("CGTA")},
	}
	req, index := validBatch(t, windows, []byte("ACGT"))

	v := hdb.NewVerifier(index, 8, 4)
	result, err := v.Screen(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, uint32(7), result.Records[0].Record)
	require.Len(t, result.Records[0].Matches, 1)
	assert.Equal(t, "toxin-1", result.Records[0].Matches[0].HazardID)
}

func TestScreenRejectsTamperedPayload(t *testing.T) {
	windows := []query.Window{{Tag: tagged.New(true, 0, 0), Message: []byte("ACGT")}}
	req, index := validBatch(t, windows, nil)

	req.RistrettoData = append([]byte{}, req.RistrettoData...)
	req.RistrettoData[0] ^= 0xff

	v := hdb.NewVerifier(index, 8, 4)
	_, err := v.Screen(context.Background(), req)
	require.ErrorIs(t, err, hdb.ErrBatchMismatch)
}

func TestScreenRejectsInvalidProof(t *testing.T) {
	windows := []query.Window{{Tag: tagged.New(true, 0, 0), Message: []byte("ACGT")}}
	req, index := validBatch(t, windows, nil)

	req.Proof.Digest[0] ^= 0xff

	v := hdb.NewVerifier(index, 8, 4)
	_, err := v.Screen(context.Background(), req)
	require.ErrorIs(t, err, hdb.ErrProofRejected)
}

func TestScreenRejectsEmptyBatch(t *testing.T) {
	index := &fakeIndex{}
	emptyReq := hdb.ScreeningRequest{RistrettoData: nil}
	v := hdb.NewVerifier(index, 8, 4)
	_, err := v.Screen(context.Background(), emptyReq)
	require.Error(t, err)
}
