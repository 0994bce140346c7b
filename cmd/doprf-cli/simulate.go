package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/zeebo/blake3"

	"github.com/dnascreen/doprf/pkg/hdb"
	"github.com/dnascreen/doprf/pkg/party"
	"github.com/dnascreen/doprf/pkg/polynomial"
	"github.com/dnascreen/doprf/pkg/query"
	"github.com/dnascreen/doprf/pkg/ristretto"
	"github.com/dnascreen/doprf/pkg/tagged"
	"github.com/dnascreen/doprf/pkg/zkvm"
)

// batchContentIDContext domain-separates the content-addressing hash below
// from any other key derived via blake3.DeriveKey in this program.
const batchContentIDContext = "github.com/dnascreen/doprf simulate 2026-01-01T00:00+00:00 batch content id"

// contentAddressBatch derives a key bound to the committee's public key and
// keyed-hashes the screened batch's tagged-hash stream, giving the
// simulation output a stable content id without reusing the key across
// unrelated committees.
func contentAddressBatch(publicKey [32]byte, stream []byte) ([]byte, error) {
	hashKey := make([]byte, 32)
	blake3.DeriveKey(batchContentIDContext, publicKey[:], hashKey)
	hasher, err := blake3.NewKeyed(hashKey)
	if err != nil {
		return nil, fmt.Errorf("content-addressing batch: %w", err)
	}
	if _, err := hasher.Write(stream); err != nil {
		return nil, fmt.Errorf("content-addressing batch: %w", err)
	}
	return hasher.Sum(nil), nil
}

// nullIndex reports every lookup as a miss; simulate exists to exercise the
// proof chain and reconstruction, not a hazard corpus.
type nullIndex struct{}

func (nullIndex) Lookup(context.Context, [32]byte) ([]hdb.HazardMatch, error) {
	return nil, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cf, shares, key, err := readCommitteeFile(inputFile)
	if err != nil {
		return err
	}

	quorum, err := parseQuorum(quorumFlag)
	if err != nil {
		return err
	}
	if quorum.Len() < cf.RequiredKeyholders {
		return fmt.Errorf("quorum has %d members, need at least %d", quorum.Len(), cf.RequiredKeyholders)
	}

	messages := windowsFlag
	if len(messages) == 0 {
		messages = []string{"ACGTACGT"}
	}
	windows := make([]query.Window, len(messages))
	for i, m := range messages {
		windows[i] = query.Window{Tag: tagged.New(i == 0, 0, uint32(i)), Message: []byte(m)}
	}

	factors := make([]query.WindowFactors, len(windows))
	for i := range windows {
		f, err := query.DrawWindowFactors()
		if err != nil {
			return fmt.Errorf("drawing window factors: %w", err)
		}
		factors[i] = f
	}
	checksumFactors, err := query.DrawWindowFactors()
	if err != nil {
		return fmt.Errorf("drawing checksum factors: %w", err)
	}

	ss, err := query.NewStateSetFromFactors(windows, cf.RequiredKeyholders, key, factors, checksumFactors)
	if err != nil {
		return fmt.Errorf("building batch: %w", err)
	}

	coeffs := polynomial.LagrangeCoefficients(quorum)
	queries := ss.Queries()
	responses := make(map[party.ID][]ristretto.Point, quorum.Len())
	for _, id := range quorum.IDs() {
		share, ok := shares[id]
		if !ok {
			return fmt.Errorf("no share on file for %s", id)
		}
		coeff := coeffs[id]
		parts := make([]ristretto.Point, len(queries))
		for i, q := range queries {
			parts[i] = share.ApplyWithLagrangeCoefficient(q, coeff)
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
	hashProof, _, err := zkvm.ProveHashProof(zkvm.HashProofWitness{Windows: windows, BlindingFactors: blindingFactors})
	if err != nil {
		return fmt.Errorf("hash-proof: %w", err)
	}
	checksumProof, _, err := zkvm.ProveChecksumProof(zkvm.ChecksumProofWitness{
		Rho:                query.DeriveRho(queries[:len(queries)-1]),
		Key:                key,
		VerifierSum:        verifierSum,
		V0:                 checksumFactors.Verification,
		BlindingFactorZero: checksumFactors.Blinding,
	})
	if err != nil {
		return fmt.Errorf("checksum-proof: %w", err)
	}

	proof, hashes, err := zkvm.ProveVerificationProof(zkvm.VerificationProofWitness{
		HashProof:          hashProof,
		ChecksumProof:      checksumProof,
		StateSet:           ss,
		KeyserverResponses: responses,
	})
	if err != nil {
		return fmt.Errorf("verification-proof: %w", err)
	}

	stream := tagged.EncodeStream(hashes)
	verifier := hdb.NewVerifier(nullIndex{}, 8, 4)
	result, err := verifier.Screen(context.Background(), hdb.ScreeningRequest{RistrettoData: stream, Proof: proof})
	if err != nil {
		return fmt.Errorf("screening: %w", err)
	}

	contentID, err := contentAddressBatch(cf.PublicKey, stream)
	if err != nil {
		return err
	}

	fmt.Printf("batch of %d windows reconstructed and validated\n", len(windows))
	fmt.Printf("batch content id: %x\n", contentID)
	for _, rec := range result.Records {
		fmt.Printf("record %d: %d hazard match(es)\n", rec.Record, len(rec.Matches))
	}
	return nil
}

func parseQuorum(raw []string) (party.Set, error) {
	ids := make([]party.ID, 0, len(raw))
	for _, s := range raw {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return party.Set{}, fmt.Errorf("invalid keyserver id %q: %w", s, err)
		}
		id, err := party.NewID(uint32(n))
		if err != nil {
			return party.Set{}, err
		}
		ids = append(ids, id)
	}
	return party.NewSet(ids...), nil
}
